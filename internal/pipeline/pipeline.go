// Package pipeline drives the canonicalize -> robots -> scrape ->
// extract -> classify -> consolidate -> outcome chain over an entire
// input, one worker per row up to a configured concurrency cap, with a
// rate limiter per host for politeness and a single run-context object
// holding every piece of cross-row shared state.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tariktz/contactminer/internal/canonical"
	"github.com/tariktz/contactminer/internal/classifier"
	"github.com/tariktz/contactminer/internal/config"
	"github.com/tariktz/contactminer/internal/consolidate"
	"github.com/tariktz/contactminer/internal/extractor"
	"github.com/tariktz/contactminer/internal/model"
	"github.com/tariktz/contactminer/internal/outcome"
	"github.com/tariktz/contactminer/internal/phone"
	"github.com/tariktz/contactminer/internal/robots"
	"github.com/tariktz/contactminer/internal/runctx"
	"github.com/tariktz/contactminer/internal/scraper"
)

// llmProcessingFailureTags are the error tags Classify emits when an
// entire attempt failed before any candidate could be resolved, as
// distinct from a per-item persistent mismatch.
var llmProcessingFailureTags = map[string]bool{
	classifier.ErrorTagPromptLoading: true,
	classifier.ErrorTagEmptyResponse: true,
	classifier.ErrorTagJSONParse:     true,
	classifier.ErrorTagNoJSONBlock:   true,
	classifier.ErrorTagCountMismatch: true,
}

// ReportRow is the per-input-row result the orchestrator hands to the
// report writer: the row's final outcome plus everything needed to
// render the Summary/Detailed/Top-Contacts views.
type ReportRow struct {
	RunID            string
	RowID            string
	CompanyName      string
	GivenURL         string
	CanonicalKey     model.CanonicalSiteKey
	LandedURL        string
	GivenPhoneStatus model.GivenPhoneStatus
	Outcome          model.RowOutcome
	SiteDetails      *model.SiteContactDetails
}

// Dependencies bundles the external collaborators Run needs: the
// resolved configuration, the classifier transport, the DNS resolver
// used for TLD probing, and the run context to accumulate state into.
type Dependencies struct {
	Config    config.Config
	Transport classifier.Transport
	Resolver  canonical.Resolver
	RunCtx    *runctx.RunContext
}

// Run processes every row, returning one ReportRow per input row (in
// input order) plus the final per-canonical SiteContactDetails map.
func Run(ctx context.Context, rows []model.InputRow, deps Dependencies) ([]ReportRow, map[model.CanonicalSiteKey]model.SiteContactDetails, error) {
	if deps.RunCtx == nil {
		return nil, nil, fmt.Errorf("pipeline: RunCtx is required")
	}
	deps.RunCtx.Metrics.RowsTotal = len(rows)

	results := make([]ReportRow, len(rows))

	limiters := newHostLimiters(deps.Config.Concurrency.RequestsPerHost)

	g, gctx := errgroup.WithContext(ctx)
	if deps.Config.Concurrency.RowWorkers > 0 {
		g.SetLimit(deps.Config.Concurrency.RowWorkers)
	}

	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			results[i] = processRow(gctx, row, deps, limiters)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	siteDetails := make(map[model.CanonicalSiteKey]model.SiteContactDetails)
	for _, r := range results {
		if r.SiteDetails != nil {
			siteDetails[r.CanonicalKey] = *r.SiteDetails
		}
	}

	return results, siteDetails, nil
}

func processRow(ctx context.Context, row model.InputRow, deps Dependencies, limiters *hostLimiters) ReportRow {
	rc := deps.RunCtx
	cfg := deps.Config

	report := ReportRow{
		RunID:            cfg.RunID,
		RowID:            row.RowID,
		CompanyName:      row.CompanyName,
		GivenURL:         row.GivenURL,
		GivenPhoneStatus: givenPhoneStatus(row, cfg),
	}

	canonResult, err := canonical.Canonicalize(ctx, row.GivenURL, cfg.Scraper.ProbeTLDs, deps.Resolver, 5*time.Second)
	if err != nil {
		report.Outcome = outcome.Classify(outcome.Input{InitialURLStatus: model.ScrapeStatusInvalidURL})
		recordFailure(rc, row, "URL_Validation_InvalidOrMissing", string(model.ScrapeStatusInvalidURL), err.Error())
		return report
	}
	report.CanonicalKey = canonResult.SiteKey

	state, createdNow := rc.CanonicalState(canonResult.SiteKey, row.RowID)
	if createdNow {
		scrapeAndClassifyCanonical(ctx, canonResult, row, deps, limiters, state)
		close(state.Done)
	} else {
		select {
		case <-state.Done:
		case <-ctx.Done():
		}
	}

	report.LandedURL = state.LandedURL
	if state.SiteDetails != nil {
		details := *state.SiteDetails
		report.SiteDetails = &details
	}

	in := outcome.Input{
		InitialURLStatus:                          state.ScrapeStatus,
		HasCanonicalKey:                           true,
		CanonicalScrapeStatus:                     state.ScrapeStatus,
		PathfulURLStatuses:                        state.PathfulURLStatuses,
		AlreadyProcessed:                          state.FirstSeenByRowID != row.RowID,
		HasCandidates:                             state.HasCandidates,
		HasSiteContactDetails:                     state.SiteDetails != nil,
		LLMPromptMissingOrError:                   state.LLMPromptMissingOrError,
		ConsolidatedCount:                         nonErrorCount(state.SiteDetails),
		EveryPathfulURLYieldedEmptyClassifiedList: state.AllClassifiedEmpty,
	}
	report.Outcome = outcome.Classify(in)

	if report.Outcome.Reason == model.OutcomeContactSuccessfullyExtracted {
		rc.Metrics.IncrContactsExtractedRows()
	} else if report.Outcome.FaultCategory != model.FaultNA {
		recordFailure(rc, row, string(report.Outcome.Reason), string(report.Outcome.Reason), "")
	}

	rc.Logger.Debug("row processed",
		zap.String("row_id", row.RowID),
		zap.String("canonical_key", string(report.CanonicalKey)),
		zap.String("outcome", string(report.Outcome.Reason)),
	)

	return report
}

func nonErrorCount(details *model.SiteContactDetails) int {
	if details == nil {
		return 0
	}
	n := 0
	for _, num := range details.ConsolidatedNumbers {
		if num.ErrorTag == "" {
			n++
		}
	}
	return n
}

func scrapeAndClassifyCanonical(ctx context.Context, canonResult canonical.Result, row model.InputRow, deps Dependencies, limiters *hostLimiters, state *runctx.CanonicalState) {
	rc := deps.RunCtx
	cfg := deps.Config

	limiters.wait(ctx, string(canonResult.SiteKey))

	opts := scraper.Options{
		UserAgent:              cfg.Scraper.UserAgent,
		PageTimeout:            cfg.Scraper.PageTimeout,
		NavigationTimeout:      cfg.Scraper.NavigationTimeout,
		NetworkIdleTimeout:     cfg.Scraper.NetworkIdleTimeout,
		MaxDepth:               cfg.Scraper.MaxDepth,
		MaxPagesPerCanonical:   cfg.Scraper.MaxPagesPerCanonical,
		MinLinkScore:           cfg.Scraper.MinLinkScore,
		BypassScoreThreshold:   cfg.Scraper.BypassScoreThreshold,
		CriticalKeywords:       cfg.Scraper.CriticalKeywords,
		HighKeywords:           cfg.Scraper.HighKeywords,
		GeneralKeywords:        cfg.Scraper.GeneralKeywords,
		ExcludePatterns:        cfg.Scraper.ExcludePatterns,
		QueryBlocklist:         cfg.Scraper.QueryBlocklist,
		IndexFilenames:         cfg.Scraper.IndexFilenames,
		MaxKeywordPathSegments: cfg.Scraper.MaxKeywordPathSegments,
		OutputDir:              cfg.Data.OutputDir,
		CompanyID:              row.CompanyName,
		Robots:                 robotsGate(deps),
		UseHeadlessFallback:    true,
	}

	rc.Metrics.IncrScrapesAttempted()
	result := scraper.Scrape(ctx, string(canonResult.PathfulURL), opts, rc.Processed)
	state.ScrapeStatus = result.Status
	state.LandedURL = result.LandedURL
	state.PathfulURLStatuses = append(state.PathfulURLStatuses, result.Status)

	if result.Status != model.ScrapeStatusSuccess {
		rc.Logger.Info("scrape failed",
			zap.String("canonical_key", string(canonResult.SiteKey)),
			zap.String("status", string(result.Status)),
		)
		return
	}
	rc.Metrics.IncrScrapesSucceeded()

	var candidates []model.PhoneCandidate
	extractOpts := extractor.Options{
		SnippetWindow:            cfg.Extractor.SnippetWindow,
		CompanyNameTriggerRadius: cfg.Extractor.CompanyNameTriggerRadius,
		TargetCountryCodes:       row.TargetCountryCodes,
		DefaultRegion:            cfg.Phone.DefaultRegion,
	}
	for _, page := range result.Pages {
		candidates = append(candidates, page.StructuredCandidates...)
		text, readErr := readCleanedPage(page.LocalTextPath)
		if readErr != nil {
			continue
		}
		candidates = append(candidates, extractor.Extract(text, page.LandedURL, row.CompanyName, extractOpts)...)
	}
	state.HasCandidates = len(candidates) > 0
	rc.Metrics.AddCandidates(len(candidates))

	if !state.HasCandidates {
		return
	}
	if !rc.TryStartClassification(canonResult.SiteKey) {
		return
	}
	rc.Metrics.IncrCanonicalsClassified()

	classifyOpts := classifier.Options{
		PromptTemplatePath:   cfg.LLM.PromptTemplatePath,
		ContextDir:           cfg.Data.OutputDir + "/llm_context",
		FilePrefix:           companySafePrefix(string(canonResult.SiteKey)),
		MaxRetriesOnMismatch: cfg.LLM.MaxRetriesOnMismatch,
	}
	classifyResult, _ := classifier.Classify(ctx, candidates, deps.Transport, classifyOpts)
	rc.Metrics.AddTokenUsage(classifyResult.Usage.InputTokens, classifyResult.Usage.OutputTokens)

	normalizePhoneNumbers(classifyResult.Results, row.TargetCountryCodes, cfg.Phone.DefaultRegion)

	state.LLMPromptMissingOrError = allResultsCarryProcessingFailureTag(classifyResult.Results)
	state.AllClassifiedEmpty = allClassifiedResultsEmpty(classifyResult.Results)

	// A classifier run that failed outright leaves no SiteContactDetails,
	// so the row outcome reports the processing error.
	if state.LLMPromptMissingOrError {
		return
	}

	details := consolidate.Consolidate(canonResult.SiteKey, row.CompanyName, []string{row.GivenURL}, classifyResult.Results)

	if cfg.LLM.EnableEnrichment {
		enrichOpts := classifyOpts
		enrichOpts.PromptTemplatePath = cfg.LLM.EnrichedTemplatePath
		enrichOpts.FilePrefix = classifyOpts.FilePrefix + "_enrich"
		enriched, err := classifier.ClassifyEnriched(ctx, candidates, deps.Transport, enrichOpts)
		if err != nil {
			rc.Logger.Info("enrichment failed",
				zap.String("canonical_key", string(canonResult.SiteKey)),
				zap.Error(err),
			)
		} else {
			details.HomepageSummary = enriched.HomepageSummary
			attachAdditionalInfo(details.ConsolidatedNumbers, enriched.AdditionalInfo)
			rc.Metrics.AddTokenUsage(enriched.Usage.InputTokens, enriched.Usage.OutputTokens)
		}
	}

	state.SiteDetails = &details
}

// attachAdditionalInfo tags each enrichment item onto the consolidated
// number it names, matching by the number the LLM echoed back.
func attachAdditionalInfo(numbers []model.ConsolidatedNumber, items []model.AdditionalContactInfo) {
	for _, item := range items {
		for i := range numbers {
			if numbers[i].Number == item.AssociatedNumber {
				numbers[i].AdditionalInfo = append(numbers[i].AdditionalInfo, item)
				break
			}
		}
	}
}

func normalizePhoneNumbers(results []model.ClassifiedPhone, regionHints []string, defaultRegion string) {
	for i := range results {
		if results[i].IsError() {
			continue
		}
		if normalized, ok := phone.Normalize(results[i].Number, regionHints, defaultRegion); ok && normalized != "" {
			results[i].Number = normalized
		}
	}
}

// allClassifiedResultsEmpty reports whether every classified phone
// produced for a canonical carries an error tag, i.e. the classifier
// ran but never produced a single usable number.
func allClassifiedResultsEmpty(results []model.ClassifiedPhone) bool {
	if len(results) == 0 {
		return true
	}
	for _, r := range results {
		if !r.IsError() {
			return false
		}
	}
	return true
}

func allResultsCarryProcessingFailureTag(results []model.ClassifiedPhone) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !llmProcessingFailureTags[r.ErrorTag] && !strings.HasPrefix(r.ErrorTag, "Error_InitialApiError_") {
			return false
		}
	}
	return true
}

func givenPhoneStatus(row model.InputRow, cfg config.Config) model.GivenPhoneStatus {
	if row.GivenPhoneNumber == "" {
		return model.GivenPhoneNotProvided
	}
	if _, ok := phone.Normalize(row.GivenPhoneNumber, row.TargetCountryCodes, cfg.Phone.DefaultRegion); ok {
		return model.GivenPhoneVerified
	}
	return model.GivenPhoneInvalid
}

func robotsGate(deps Dependencies) *robots.Gate {
	return deps.RunCtx.Robots
}

func recordFailure(rc *runctx.RunContext, row model.InputRow, stage, reason, details string) {
	rc.Metrics.RecordRowFailure(stage)
	if rc.Failures == nil {
		return
	}
	_ = rc.Failures.Append(model.FailureEvent{
		Timestamp:   failureTimestamp(),
		RowID:       row.RowID,
		CompanyName: row.CompanyName,
		GivenURL:    row.GivenURL,
		Stage:       stage,
		Reason:      reason,
		Details:     details,
	})
}

// hostLimiters lazily builds one rate.Limiter per host, guarded by a
// mutex (rate.Limiter itself is safe for concurrent use once built).
type hostLimiters struct {
	mu       sync.Mutex
	perHost  map[string]*rate.Limiter
	ratePerS float64
}

func newHostLimiters(requestsPerSecond float64) *hostLimiters {
	return &hostLimiters{perHost: make(map[string]*rate.Limiter), ratePerS: requestsPerSecond}
}

func (h *hostLimiters) wait(ctx context.Context, host string) {
	if h.ratePerS <= 0 {
		return
	}
	h.mu.Lock()
	l, ok := h.perHost[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(h.ratePerS), 1)
		h.perHost[host] = l
	}
	h.mu.Unlock()
	_ = l.Wait(ctx)
}

func readCleanedPage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("pipeline: read cleaned page %s: %w", path, err)
	}
	return string(data), nil
}

// companySafePrefix builds the context_dir file prefix from a
// canonical site key, stripping characters that don't belong in a
// filename.
func companySafePrefix(siteKey string) string {
	var b strings.Builder
	for _, r := range siteKey {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func failureTimestamp() time.Time {
	return time.Now()
}
