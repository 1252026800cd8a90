// Package outcome assigns each input row its final outcome reason and
// fault category. It is a pure function of statuses recorded by earlier
// stages: it never re-fetches a page or re-calls the classifier.
package outcome

import (
	"strings"

	"github.com/tariktz/contactminer/internal/model"
)

// Input bundles everything the decision tree needs for one row,
// recorded by the orchestrator during the scrape/classify passes.
type Input struct {
	// InitialURLStatus is the scrape status observed for this row's own
	// PathfulURL (the entry-point fetch), or "" if none was recorded.
	InitialURLStatus model.ScrapeStatus

	// HasCanonicalKey reports whether C1 derived a CanonicalSiteKey for
	// this row at all.
	HasCanonicalKey bool

	// CanonicalScrapeStatus is the status of the canonical site's own
	// scrape (may differ from InitialURLStatus when another row reached
	// the same canonical first).
	CanonicalScrapeStatus model.ScrapeStatus

	// PathfulURLStatuses lists the scrape statuses recorded for this
	// row's canonical. The orchestrator scrapes a canonical once, from the
	// first row that reaches it, so it holds that one scrape's status.
	PathfulURLStatuses []model.ScrapeStatus

	// AlreadyProcessed reports whether this row's canonical had already
	// been scraped by an earlier row in input order.
	AlreadyProcessed bool

	// HasCandidates reports whether the candidate extractor produced at
	// least one PhoneCandidate for this row's canonical.
	HasCandidates bool

	// HasSiteContactDetails reports whether a SiteContactDetails object
	// was built for this row's canonical (i.e. the classifier ran).
	HasSiteContactDetails bool

	// LLMPromptMissingOrError reports whether the classifier's run for
	// this canonical failed before producing any per-candidate results
	// (prompt-template load failure or a transport error exhausting
	// retries), as opposed to a successful run yielding zero or
	// non-relevant numbers.
	LLMPromptMissingOrError bool

	// ConsolidatedCount is the number of ConsolidatedNumbers present for
	// this row's canonical (0 if none or no SiteContactDetails exists).
	ConsolidatedCount int

	// EveryPathfulURLYieldedEmptyClassifiedList reports whether every
	// PathfulURL under this canonical produced zero classified phones,
	// used to distinguish "no numbers found" from "numbers found but
	// none relevant" once consolidation is empty.
	EveryPathfulURLYieldedEmptyClassifiedList bool
}

// Classify runs the ten-step decision tree against in, returning the
// row's outcome reason and fault category. Running Classify twice with
// the same Input always yields the same output.
func Classify(in Input) model.RowOutcome {
	if in.InitialURLStatus == model.ScrapeStatusInvalidURL {
		return model.RowOutcome{Reason: model.OutcomeInputURLInvalid, FaultCategory: model.FaultInputDataIssue}
	}

	if in.InitialURLStatus == model.ScrapeStatusMaxRedirects {
		return model.RowOutcome{Reason: model.OutcomeSkippedMaxRedirects, FaultCategory: model.FaultWebsiteIssue}
	}

	if in.ConsolidatedCount > 0 {
		return model.RowOutcome{Reason: model.OutcomeContactSuccessfullyExtracted, FaultCategory: model.FaultNA}
	}

	if !in.HasCanonicalKey {
		if in.InitialURLStatus != "" && in.InitialURLStatus != model.ScrapeStatusSuccess && in.InitialURLStatus != model.ScrapeStatusNotRun {
			return model.RowOutcome{
				Reason:        model.ScrapingFailureInputURLReason(in.InitialURLStatus),
				FaultCategory: model.FaultWebsiteIssue,
			}
		}
		return model.RowOutcome{Reason: model.OutcomeUnknownNoCanonical, FaultCategory: model.FaultUnknown}
	}

	if in.CanonicalScrapeStatus != model.ScrapeStatusSuccess {
		reason := classifyFailedCanonical(in.PathfulURLStatuses, in.CanonicalScrapeStatus)
		return model.RowOutcome{Reason: reason, FaultCategory: model.FaultWebsiteIssue}
	}

	if in.AlreadyProcessed {
		return model.RowOutcome{Reason: model.OutcomeCanonicalDuplicateSkipped, FaultCategory: model.FaultPipelineLogic}
	}

	if !in.HasCandidates {
		return model.RowOutcome{Reason: model.OutcomeCanonicalNoRegexCandidates, FaultCategory: model.FaultPipelineLogic}
	}

	if !in.HasSiteContactDetails {
		if in.LLMPromptMissingOrError {
			return model.RowOutcome{Reason: model.OutcomeLLMProcessingErrorAllAttempts, FaultCategory: model.FaultLLMIssue}
		}
		return model.RowOutcome{Reason: model.OutcomeLLMNoInputNoRegexCandidates, FaultCategory: model.FaultPipelineLogic}
	}

	if in.EveryPathfulURLYieldedEmptyClassifiedList {
		return model.RowOutcome{Reason: model.OutcomeLLMOutputNoNumbersFoundAll, FaultCategory: model.FaultLLMIssue}
	}
	return model.RowOutcome{Reason: model.OutcomeLLMOutputNumbersFoundNoneRelevant, FaultCategory: model.FaultLLMIssue}
}

// classifyFailedCanonical buckets a non-Success canonical scrape into
// the network/access-denied/not-found groups step 5 names, falling back
// to a status-specific reason when the group is mixed.
func classifyFailedCanonical(statuses []model.ScrapeStatus, canonicalStatus model.ScrapeStatus) model.OutcomeReason {
	if len(statuses) == 0 {
		return model.ScrapingFailedCanonicalReason(canonicalStatus)
	}

	allNetwork, allAccessDenied, allNotFound := true, true, true
	for _, s := range statuses {
		if !isNetworkFailure(s) {
			allNetwork = false
		}
		if !isAccessDenied(s) {
			allAccessDenied = false
		}
		if !isNotFound(s) {
			allNotFound = false
		}
	}

	switch {
	case allNetwork:
		return model.OutcomeScrapingAllAttemptsFailedNetwork
	case allAccessDenied:
		return model.OutcomeScrapingAllAttemptsFailedAccess
	case allNotFound:
		return model.OutcomeScrapingContentNotFoundAll
	default:
		return model.ScrapingFailedCanonicalReason(canonicalStatus)
	}
}

func isNetworkFailure(s model.ScrapeStatus) bool {
	switch s {
	case model.ScrapeStatusTimeout, model.ScrapeStatusDNSError, model.ScrapeStatusConnectionRefused, model.ScrapeStatusPlaywrightError:
		return true
	default:
		return false
	}
}

func isAccessDenied(s model.ScrapeStatus) bool {
	if s == model.ScrapeStatusRobotsDisallowed {
		return true
	}
	return s == model.HTTPErrorStatus(403)
}

func isNotFound(s model.ScrapeStatus) bool {
	return s == model.HTTPErrorStatus(404) || strings.HasPrefix(string(s), "HTTPError_404")
}
