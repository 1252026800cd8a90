package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"text/template"

	"github.com/tariktz/contactminer/internal/model"
)

// candidateView is the JSON shape embedded into the rendered prompt,
// matching the field list exactly.
type candidateView struct {
	Number                   string `json:"number"`
	SourceURL                string `json:"source_url"`
	Snippet                  string `json:"snippet"`
	OriginalInputCompanyName string `json:"original_input_company_name"`
}

// renderPrompt loads the template at templatePath and substitutes a JSON
// serialization of candidates under the template field ".CandidatesJSON".
func renderPrompt(templatePath string, candidates []model.PhoneCandidate) (string, error) {
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return "", fmt.Errorf("classifier: load prompt template %s: %w", templatePath, err)
	}

	tmpl, err := template.New("classify").Parse(string(raw))
	if err != nil {
		return "", fmt.Errorf("classifier: parse prompt template %s: %w", templatePath, err)
	}

	views := make([]candidateView, len(candidates))
	for i, c := range candidates {
		views[i] = candidateView{
			Number:                   c.Number,
			SourceURL:                c.SourceURL,
			Snippet:                  c.Snippet,
			OriginalInputCompanyName: c.OriginalInputCompanyName,
		}
	}
	candidatesJSON, err := json.Marshal(views)
	if err != nil {
		return "", fmt.Errorf("classifier: marshal candidates: %w", err)
	}

	var buf bytes.Buffer
	data := struct {
		CandidatesJSON string
		CandidateCount int
	}{
		CandidatesJSON: string(candidatesJSON),
		CandidateCount: len(candidates),
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("classifier: render prompt template %s: %w", templatePath, err)
	}

	return buf.String(), nil
}
