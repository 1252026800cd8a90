package classifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tariktz/contactminer/internal/model"
)

// enrichedResponse is the wire shape for the optional enrichment pass:
// extra structured facts (email, name, role, department, location) tied
// to a phone number, plus a homepage summary and overall confidence.
type enrichedResponse struct {
	AdditionalInfo   []enrichedItem `json:"additional_info"`
	HomepageSummary  string         `json:"homepage_summary"`
	OverallConfidence float64       `json:"overall_confidence"`
}

type enrichedItem struct {
	InfoType         string  `json:"info_type"`
	Value            string  `json:"value"`
	AssociatedNumber string  `json:"associated_number"`
	SourceContext    string  `json:"source_context"`
	Confidence       float64 `json:"confidence"`
}

// EnrichedResult carries the optional enrichment pass's output,
// returned alongside a normal Classify Result when enrichment is
// enabled.
type EnrichedResult struct {
	AdditionalInfo    []model.AdditionalContactInfo
	HomepageSummary   string
	OverallConfidence float64
	RawResponse       string
	Usage             TokenUsage
}

// ClassifyEnriched renders opts.PromptTemplatePath against candidates and
// parses the response into the enrichment profile. It performs no
// alignment retry (the enrichment profile carries no per-candidate
// positional guarantee the way Classify's results do) and is only
// ever invoked when config.LLM.EnableEnrichment is set.
func ClassifyEnriched(ctx context.Context, candidates []model.PhoneCandidate, transport Transport, opts Options) (EnrichedResult, error) {
	if len(candidates) == 0 {
		return EnrichedResult{}, nil
	}

	prompt, err := renderPrompt(opts.PromptTemplatePath, candidates)
	if err != nil {
		return EnrichedResult{}, fmt.Errorf("classifier: enrichment prompt: %w", err)
	}

	raw, usage, err := sendWithRetry(ctx, transport, prompt, opts)
	if err != nil {
		return EnrichedResult{}, fmt.Errorf("classifier: enrichment transport: %w", err)
	}

	persistContext(opts.ContextDir, opts.FilePrefix+"_enriched", 0, prompt, raw)

	block, err := firstBalancedJSON(raw)
	if err != nil {
		return EnrichedResult{RawResponse: raw, Usage: usage}, fmt.Errorf("classifier: enrichment parse: %w", err)
	}

	var parsed enrichedResponse
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		return EnrichedResult{RawResponse: raw, Usage: usage}, fmt.Errorf("classifier: enrichment unmarshal: %w", err)
	}

	items := make([]model.AdditionalContactInfo, len(parsed.AdditionalInfo))
	for i, it := range parsed.AdditionalInfo {
		items[i] = model.AdditionalContactInfo{
			InfoType:         it.InfoType,
			Value:            it.Value,
			AssociatedNumber: it.AssociatedNumber,
			SourceContext:    it.SourceContext,
			Confidence:       it.Confidence,
		}
	}

	return EnrichedResult{
		AdditionalInfo:    items,
		HomepageSummary:   parsed.HomepageSummary,
		OverallConfidence: parsed.OverallConfidence,
		RawResponse:       raw,
		Usage:             usage,
	}, nil
}
