// Package model defines the data types shared across every stage of the
// contact-extraction pipeline: input rows, canonical site identities,
// scraped pages, phone candidates, classified numbers, and the final
// per-row outcomes.
package model

import (
	"strconv"
	"time"
)

// InputRow is one row of the source spreadsheet. Immutable once read.
type InputRow struct {
	RowID              string
	CompanyName        string
	GivenURL           string
	GivenPhoneNumber   string
	Description        string
	TargetCountryCodes []string
}

// CanonicalSiteKey identifies a logical site: scheme + lowercased
// registered domain, www-stripped, no path/query. Many InputRows may
// share one CanonicalSiteKey.
type CanonicalSiteKey string

// PathfulURL is the URL actually handed to the scraper; it may carry a
// path and query distinct from its CanonicalSiteKey.
type PathfulURL string

// ScrapeStatus is the closed set of outcomes a fetch attempt can report.
// The scraper emits exactly one of these values per attempt, and the
// outcome classifier switches on the enum rather than probing status
// strings for substrings.
type ScrapeStatus string

const (
	ScrapeStatusNotRun             ScrapeStatus = "Not_Run"
	ScrapeStatusSuccess            ScrapeStatus = "Success"
	ScrapeStatusTimeout            ScrapeStatus = "TimeoutError"
	ScrapeStatusDNSError           ScrapeStatus = "DNSError"
	ScrapeStatusConnectionRefused  ScrapeStatus = "ConnectionRefused"
	ScrapeStatusPlaywrightError    ScrapeStatus = "PlaywrightError"
	ScrapeStatusNoContentScraped   ScrapeStatus = "NoContentScraped"
	ScrapeStatusRobotsDisallowed   ScrapeStatus = "RobotsDisallowed"
	ScrapeStatusInvalidURL         ScrapeStatus = "InvalidURL"
	ScrapeStatusMaxRedirects       ScrapeStatus = "MaxRedirects_InputURL"
	ScrapeStatusAlreadyProcessed   ScrapeStatus = "Already_Processed"
)

// HTTPErrorStatus builds the `HTTPError_<code>` status tag for a failed fetch.
func HTTPErrorStatus(code int) ScrapeStatus {
	return ScrapeStatus("HTTPError_" + strconv.Itoa(code))
}

// PageType tags a scraped page by the keyword tier that queued it.
type PageType string

const (
	PageTypeEntry    PageType = "entry"
	PageTypeCritical PageType = "critical"
	PageTypeHigh     PageType = "high"
	PageTypeGeneral  PageType = "general"
)

// ScrapedPage is one landed, cleaned page belonging to a crawl.
type ScrapedPage struct {
	LocalTextPath        string
	LandedURL            string
	PageType             PageType
	StructuredCandidates []PhoneCandidate
}

// PhoneCandidate is a regex/structured-data harvested phone-like
// substring with surrounding text context, pre-classification.
type PhoneCandidate struct {
	Number                   string
	SourceURL                string
	Snippet                  string
	OriginalInputCompanyName string
	CompanyNameAtTrigger     bool
}

// Classification is the LLM-assigned business-relevance tier.
type Classification string

const (
	ClassificationPrimary      Classification = "Primary"
	ClassificationSecondary    Classification = "Secondary"
	ClassificationSupport      Classification = "Support"
	ClassificationLowRelevance Classification = "Low Relevance"
	ClassificationNonBusiness  Classification = "Non-Business"
	ClassificationUnknown      Classification = "Unknown"
)

// ClassifiedPhone is a PhoneCandidate after LLM classification and
// phone-normalization post-processing.
type ClassifiedPhone struct {
	Number                   string
	Type                     string
	Classification           Classification
	SourceURL                string
	OriginalInputCompanyName string
	ErrorTag                 string
}

// IsError reports whether this record carries a processing error tag
// rather than a genuine classification.
func (c ClassifiedPhone) IsError() bool { return c.ErrorTag != "" }

// ConsolidatedSource is one origin (type + page) contributing to a
// ConsolidatedNumber.
type ConsolidatedSource struct {
	Type                     string
	SourcePath               string
	FullSourceURL            string
	OriginalInputCompanyName string
}

// ConsolidatedNumber is a unique phone number for a CanonicalSiteKey,
// carrying its best-priority classification/type and every source that
// contributed to it.
type ConsolidatedNumber struct {
	Number         string
	Classification Classification
	Type           string
	Sources        []ConsolidatedSource
	ErrorTag       string

	// AdditionalInfo is only populated when enrichment classification
	// is enabled, holding extra facts the LLM tied to this number.
	AdditionalInfo []AdditionalContactInfo
}

// SiteContactDetails is the per-canonical-site consolidation result.
type SiteContactDetails struct {
	CanonicalKey        CanonicalSiteKey
	CompanyName         string
	ConsolidatedNumbers []ConsolidatedNumber
	OriginalInputURLs   []string

	// HomepageSummary is only populated when enrichment classification
	// is enabled.
	HomepageSummary string
}

// FaultCategory is the coarse blame bucket attached to a RowOutcome.
type FaultCategory string

const (
	FaultInputDataIssue   FaultCategory = "Input Data Issue"
	FaultWebsiteIssue     FaultCategory = "Website Issue"
	FaultPipelineLogic    FaultCategory = "Pipeline Logic/Configuration"
	FaultLLMIssue         FaultCategory = "LLM Issue"
	FaultPipelineError    FaultCategory = "Pipeline Error"
	FaultUnknown          FaultCategory = "Unknown"
	FaultNA               FaultCategory = "N/A"
)

// OutcomeReason is the closed enumerated set of final row outcomes.
type OutcomeReason string

const (
	OutcomeInputURLInvalid                  OutcomeReason = "Input_URL_Invalid"
	OutcomeSkippedMaxRedirects               OutcomeReason = "Pipeline_Skipped_MaxRedirects_ForInputURL"
	OutcomeContactSuccessfullyExtracted      OutcomeReason = "Contact_Successfully_Extracted"
	OutcomeUnknownNoCanonical                OutcomeReason = "Unknown_NoCanonicalURLDetermined"
	OutcomeScrapingAllAttemptsFailedNetwork  OutcomeReason = "Scraping_AllAttemptsFailed_Network"
	OutcomeScrapingAllAttemptsFailedAccess   OutcomeReason = "Scraping_AllAttemptsFailed_AccessDenied"
	OutcomeScrapingContentNotFoundAll        OutcomeReason = "Scraping_ContentNotFound_AllAttempts"
	OutcomeCanonicalDuplicateSkipped         OutcomeReason = "Canonical_Duplicate_SkippedProcessing"
	OutcomeCanonicalNoRegexCandidates        OutcomeReason = "Canonical_NoRegexCandidatesFound"
	OutcomeLLMProcessingErrorAllAttempts     OutcomeReason = "LLM_Processing_Error_AllAttempts"
	OutcomeLLMNoInputNoRegexCandidates       OutcomeReason = "LLM_NoInput_NoRegexCandidates"
	OutcomeLLMOutputNoNumbersFoundAll        OutcomeReason = "LLM_Output_NoNumbersFound_AllAttempts"
	OutcomeLLMOutputNumbersFoundNoneRelevant OutcomeReason = "LLM_Output_NumbersFound_NoneRelevant_AllAttempts"
	OutcomeUnknownProcessingGap              OutcomeReason = "Unknown_Processing_Gap_NoContact"
)

// ScrapingFailureInputURLReason builds the `ScrapingFailure_InputURL_<status>` reason.
func ScrapingFailureInputURLReason(status ScrapeStatus) OutcomeReason {
	return OutcomeReason("ScrapingFailure_InputURL_" + string(status))
}

// ScrapingFailedCanonicalReason builds the `ScrapingFailed_Canonical_<status>` reason.
func ScrapingFailedCanonicalReason(status ScrapeStatus) OutcomeReason {
	return OutcomeReason("ScrapingFailed_Canonical_" + string(status))
}

// RowOutcome is the final, derived result for one InputRow.
type RowOutcome struct {
	RowID         string
	Reason        OutcomeReason
	FaultCategory FaultCategory
}

// GivenPhoneStatus reports the verification state of the row's original
// phone number (supplemented from original_source's PipelineOutputData,
// tracked independently of scrape/LLM outcome).
type GivenPhoneStatus string

const (
	GivenPhoneVerified    GivenPhoneStatus = "Verified"
	GivenPhoneInvalid     GivenPhoneStatus = "Invalid"
	GivenPhoneNotProvided GivenPhoneStatus = "Not Provided"
)

// FailureEvent is one row-level-failure CSV entry.
type FailureEvent struct {
	Timestamp   time.Time
	RowID       string
	CompanyName string
	GivenURL    string
	Stage       string
	Reason      string
	Details     string
}

// AdditionalContactInfo is an extra structured fact (an email, name,
// role, department, or location) tied to a consolidated number, only
// populated when enrichment classification is enabled.
type AdditionalContactInfo struct {
	InfoType          string
	Value             string
	AssociatedNumber  string
	SourceContext     string
	Confidence        float64
}
