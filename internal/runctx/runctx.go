// Package runctx holds the single run-context object threaded through
// every pipeline stage: the cross-row processed-URL set, per-canonical
// caches, the robots gate, run metrics counters, and the failure-event
// writer. Encapsulating this state behind one object (rather than
// module globals) is what keeps the outcome and consolidation stages
// trivially testable as pure functions over recorded state.
package runctx

import (
	"encoding/csv"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/tariktz/contactminer/internal/model"
	"github.com/tariktz/contactminer/internal/robots"
	"github.com/tariktz/contactminer/internal/scraper"
)

// CanonicalState is the per-CanonicalSiteKey cache entry: scrape
// outcome, candidate/classification state, and the PathfulURL status of
// the single scrape made for this canonical by the first row that
// reached it; later rows sharing the canonical add no status.
type CanonicalState struct {
	ScrapeStatus            model.ScrapeStatus
	LandedURL               string
	PathfulURLStatuses      []model.ScrapeStatus
	HasCandidates           bool
	Classified              bool // C6 invoked at most once per canonical, observed here
	SiteDetails             *model.SiteContactDetails
	LLMPromptMissingOrError bool

	// AllClassifiedEmpty reports whether every ClassifiedPhone produced
	// by this canonical's classification carried an error tag
	// (i.e. the classifier never produced a single usable number),
	// distinguishing "no numbers found" from "numbers found but none
	// relevant" once consolidation is empty.
	AllClassifiedEmpty bool

	FirstSeenByRowID string

	// Done is closed once the first-seen row has finished scraping,
	// extracting, and classifying this canonical. Rows that find an
	// already-existing entry wait on Done before reading its fields.
	Done chan struct{}
}

// Metrics accumulates run-wide counters, read at the end to build
// run_metrics_<run_id>.md.
type Metrics struct {
	mu                    sync.Mutex
	RowsTotal             int
	ScrapesAttempted      int
	ScrapesSucceeded      int
	CanonicalsClassified  int
	CandidatesExtracted   int
	LLMTokensInput        int64
	LLMTokensOutput       int64
	RowFailuresByStage    map[string]int
	ContactsExtractedRows int
}

func newMetrics() *Metrics {
	return &Metrics{RowFailuresByStage: make(map[string]int)}
}

// RecordRowFailure increments the counter for stage under lock.
func (m *Metrics) RecordRowFailure(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RowFailuresByStage[stage]++
}

// IncrScrapesAttempted increments under lock.
func (m *Metrics) IncrScrapesAttempted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ScrapesAttempted++
}

// IncrScrapesSucceeded increments under lock.
func (m *Metrics) IncrScrapesSucceeded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ScrapesSucceeded++
}

// IncrCanonicalsClassified increments under lock.
func (m *Metrics) IncrCanonicalsClassified() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CanonicalsClassified++
}

// AddCandidates adds n under lock.
func (m *Metrics) AddCandidates(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CandidatesExtracted += n
}

// AddTokenUsage adds to the running token totals under lock.
func (m *Metrics) AddTokenUsage(in, out int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LLMTokensInput += in
	m.LLMTokensOutput += out
}

// IncrContactsExtractedRows increments under lock.
func (m *Metrics) IncrContactsExtractedRows() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ContactsExtractedRows++
}

// Snapshot returns a copy of the counters safe to read without holding
// the lock further.
func (m *Metrics) Snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	failures := make(map[string]int, len(m.RowFailuresByStage))
	for k, v := range m.RowFailuresByStage {
		failures[k] = v
	}
	return Metrics{
		RowsTotal:             m.RowsTotal,
		ScrapesAttempted:      m.ScrapesAttempted,
		ScrapesSucceeded:      m.ScrapesSucceeded,
		CanonicalsClassified:  m.CanonicalsClassified,
		CandidatesExtracted:   m.CandidatesExtracted,
		LLMTokensInput:        m.LLMTokensInput,
		LLMTokensOutput:       m.LLMTokensOutput,
		RowFailuresByStage:    failures,
		ContactsExtractedRows: m.ContactsExtractedRows,
	}
}

// FailureWriter appends FailureEvents to the row-failure CSV,
// single-writer guarded by a mutex (csv.Writer is not safe for
// concurrent use).
type FailureWriter struct {
	mu sync.Mutex
	w  *csv.Writer
}

// NewFailureWriter wraps dest, writing the header row immediately.
func NewFailureWriter(dest io.Writer) (*FailureWriter, error) {
	w := csv.NewWriter(dest)
	header := []string{"log_timestamp", "input_row_identifier", "CompanyName", "GivenURL", "stage_of_failure", "error_reason", "error_details"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("runctx: write failure-csv header: %w", err)
	}
	w.Flush()
	return &FailureWriter{w: w}, nil
}

// Append writes one failure event, flushing immediately so partial
// output survives an unclean exit.
func (f *FailureWriter) Append(ev model.FailureEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := []string{
		ev.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		ev.RowID,
		ev.CompanyName,
		ev.GivenURL,
		ev.Stage,
		ev.Reason,
		ev.Details,
	}
	if err := f.w.Write(row); err != nil {
		return fmt.Errorf("runctx: write failure row: %w", err)
	}
	f.w.Flush()
	return f.w.Error()
}

// RunContext is the single object threaded through every pipeline
// stage. Every field here is either single-writer or mutex-guarded;
// no component mutates another component's inputs.
type RunContext struct {
	RunID     string
	Processed *scraper.ProcessedURLs
	Robots    *robots.Gate
	Metrics   *Metrics
	Failures  *FailureWriter
	Logger    *zap.Logger

	mu         sync.Mutex
	canonicals map[model.CanonicalSiteKey]*CanonicalState
}

// New builds an empty RunContext for one pipeline run. Logger starts as
// zap.NewNop(), so every log call is a no-op until the caller replaces it.
func New(runID string, robotsGate *robots.Gate, failures *FailureWriter) *RunContext {
	return &RunContext{
		RunID:      runID,
		Processed:  scraper.NewProcessedURLs(),
		Robots:     robotsGate,
		Metrics:    newMetrics(),
		Failures:   failures,
		Logger:     zap.NewNop(),
		canonicals: make(map[model.CanonicalSiteKey]*CanonicalState),
	}
}

// CanonicalState returns the cache entry for key, creating it (and
// recording firstRowID as the row that first saw this canonical) if
// absent. createdNow reports whether this call created the entry.
func (r *RunContext) CanonicalState(key model.CanonicalSiteKey, firstRowID string) (state *CanonicalState, createdNow bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.canonicals[key]; ok {
		return existing, false
	}
	state = &CanonicalState{FirstSeenByRowID: firstRowID, Done: make(chan struct{})}
	r.canonicals[key] = state
	return state, true
}

// TryStartClassification marks key as classified if it isn't already,
// returning true only for the caller that wins the race — this is what
// makes "C6 invoked at most once per canonical" an observable property
// rather than a convention.
func (r *RunContext) TryStartClassification(key model.CanonicalSiteKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.canonicals[key]
	if !ok {
		state = &CanonicalState{Done: make(chan struct{})}
		r.canonicals[key] = state
	}
	if state.Classified {
		return false
	}
	state.Classified = true
	return true
}
