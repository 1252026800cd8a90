package classifier

import (
	"testing"

	"github.com/tariktz/contactminer/internal/model"
)

func TestClassifyEnriched_ParsesAdditionalInfo(t *testing.T) {
	candidates := []model.PhoneCandidate{
		{Number: "+4930123456", SourceURL: "https://example.com/kontakt"},
	}
	transport := &fakeTransport{
		responses: []string{`{"additional_info":[{"info_type":"email","value":"info@example.com","associated_number":"+4930123456","source_context":"footer","confidence":0.9}],"homepage_summary":"A widget maker.","overall_confidence":0.8}`},
	}

	got, err := ClassifyEnriched(t.Context(), candidates, transport, baseOpts(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.AdditionalInfo) != 1 {
		t.Fatalf("expected 1 additional info item, got %d", len(got.AdditionalInfo))
	}
	if got.AdditionalInfo[0].Value != "info@example.com" {
		t.Errorf("expected parsed email, got %q", got.AdditionalInfo[0].Value)
	}
	if got.HomepageSummary != "A widget maker." {
		t.Errorf("expected homepage summary, got %q", got.HomepageSummary)
	}
}

func TestClassifyEnriched_NoCandidatesReturnsEmpty(t *testing.T) {
	got, err := ClassifyEnriched(t.Context(), nil, &fakeTransport{}, baseOpts(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.AdditionalInfo) != 0 || got.HomepageSummary != "" {
		t.Errorf("expected zero-value result, got %+v", got)
	}
}
