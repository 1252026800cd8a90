package classifier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/tariktz/contactminer/internal/model"
)

// fakeTransport returns canned responses in sequence, one per Send call.
type fakeTransport struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeTransport) Send(ctx context.Context, prompt string) (string, TokenUsage, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return "", TokenUsage{}, err
	}
	if i >= len(f.responses) {
		return "", TokenUsage{}, fmt.Errorf("fakeTransport: no response queued for call %d", i)
	}
	return f.responses[i], TokenUsage{InputTokens: 10, OutputTokens: 10}, nil
}

func writeTemplate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.tmpl")
	if err := os.WriteFile(path, []byte("Classify: {{.CandidatesJSON}}"), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	return path
}

func baseOpts(t *testing.T) Options {
	return Options{
		PromptTemplatePath:   writeTemplate(t),
		ContextDir:           t.TempDir(),
		FilePrefix:           "acme",
		MaxRetriesOnMismatch: 2,
		TransportMaxAttempts: 1,
	}
}

func TestClassify_AlignedResponse(t *testing.T) {
	candidates := []model.PhoneCandidate{
		{Number: "+4930123456", SourceURL: "https://example.com/kontakt"},
	}
	transport := &fakeTransport{
		responses: []string{`{"extracted_numbers":[{"number":"+4930123456","type":"landline","classification":"Primary"}]}`},
	}

	got, err := Classify(t.Context(), candidates, transport, baseOpts(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got.Results))
	}
	if got.Results[0].Classification != model.ClassificationPrimary {
		t.Errorf("expected Primary classification, got %v", got.Results[0].Classification)
	}
	if got.Results[0].IsError() {
		t.Errorf("expected no error tag, got %q", got.Results[0].ErrorTag)
	}
}

func TestClassify_CodeFencedResponse(t *testing.T) {
	candidates := []model.PhoneCandidate{{Number: "+4930123456"}}
	transport := &fakeTransport{
		responses: []string{"```json\n{\"extracted_numbers\":[{\"number\":\"+4930123456\",\"type\":\"landline\",\"classification\":\"Support\"}]}\n```"},
	}

	got, err := Classify(t.Context(), candidates, transport, baseOpts(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Results[0].Classification != model.ClassificationSupport {
		t.Errorf("expected Support, got %v", got.Results[0].Classification)
	}
}

func TestClassify_MismatchRetriesThenSucceeds(t *testing.T) {
	candidates := []model.PhoneCandidate{
		{Number: "+4930111111"},
		{Number: "+4930222222"},
	}
	transport := &fakeTransport{
		responses: []string{
			// first pass: first number wrong, second echoed correctly
			`{"extracted_numbers":[{"number":"+4930999999","type":"x","classification":"Primary"},{"number":"+4930222222","type":"mobile","classification":"Secondary"}]}`,
			// retry batch contains only the mismatched one
			`{"extracted_numbers":[{"number":"+4930111111","type":"landline","classification":"Primary"}]}`,
		},
	}

	got, err := Classify(t.Context(), candidates, transport, baseOpts(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Results[1].Classification != model.ClassificationSecondary {
		t.Errorf("expected row 1 aligned on first pass, got %+v", got.Results[1])
	}
	if got.Results[0].Classification != model.ClassificationPrimary || got.Results[0].IsError() {
		t.Errorf("expected row 0 fixed by retry, got %+v", got.Results[0])
	}
}

func TestClassify_PersistentMismatchTaggedAfterRetries(t *testing.T) {
	candidates := []model.PhoneCandidate{{Number: "+4930111111"}}
	opts := baseOpts(t)
	opts.MaxRetriesOnMismatch = 1

	transport := &fakeTransport{
		responses: []string{
			`{"extracted_numbers":[{"number":"+4930999999","type":"x","classification":"Primary"}]}`,
			`{"extracted_numbers":[{"number":"+4930888888","type":"x","classification":"Primary"}]}`,
		},
	}

	got, err := Classify(t.Context(), candidates, transport, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Results[0].ErrorTag != ErrorTagPersistentMismatch {
		t.Errorf("expected persistent mismatch tag, got %+v", got.Results[0])
	}
	if got.Results[0].Number != "+4930111111" {
		t.Errorf("expected original candidate number preserved, got %q", got.Results[0].Number)
	}
}

func TestClassify_EmptyResponseTagged(t *testing.T) {
	candidates := []model.PhoneCandidate{{Number: "+4930111111"}}
	transport := &fakeTransport{responses: []string{""}}

	got, err := Classify(t.Context(), candidates, transport, baseOpts(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Results[0].ErrorTag != ErrorTagEmptyResponse {
		t.Errorf("expected empty response tag, got %q", got.Results[0].ErrorTag)
	}
}

func TestClassify_NoCandidatesReturnsEmpty(t *testing.T) {
	got, err := Classify(t.Context(), nil, &fakeTransport{}, baseOpts(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Results) != 0 {
		t.Errorf("expected no results, got %+v", got.Results)
	}
}

func TestClassify_PersistsPromptTemplateOnce(t *testing.T) {
	candidates := []model.PhoneCandidate{{Number: "+4930123456"}}
	opts := baseOpts(t)

	transport := &fakeTransport{
		responses: []string{
			`{"extracted_numbers":[{"number":"+4930123456","type":"landline","classification":"Primary"}]}`,
			`{"extracted_numbers":[{"number":"+4930123456","type":"landline","classification":"Primary"}]}`,
		},
	}

	if _, err := Classify(t.Context(), candidates, transport, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dest := filepath.Join(opts.ContextDir, "llm_prompt_template.txt")
	first, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("expected prompt template copy at %s: %v", dest, err)
	}
	want, _ := os.ReadFile(opts.PromptTemplatePath)
	if string(first) != string(want) {
		t.Errorf("copied template = %q, want %q", first, want)
	}

	if _, err := Classify(t.Context(), candidates, transport, opts); err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}
	second, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("re-read prompt template copy: %v", err)
	}
	if string(second) != string(first) {
		t.Errorf("second run altered the persisted template: %q vs %q", second, first)
	}
}

func TestFirstBalancedJSON_IgnoresBracesInStrings(t *testing.T) {
	raw := `noise {"a": "value with { and } inside", "b": [1,2,3]} trailing`
	block, err := firstBalancedJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"a": "value with { and } inside", "b": [1,2,3]}`
	if block != want {
		t.Errorf("firstBalancedJSON() = %q, want %q", block, want)
	}
}
