package extractor

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tariktz/contactminer/internal/model"
)

// ExtractStructured harvests telephone numbers a page declares
// explicitly via schema.org markup: JSON-LD "telephone" fields (direct
// or nested under "contactPoint"/"@graph", as WordPress and most CMS
// templates emit them) and itemprop="telephone" microdata. These carry
// stronger provenance than a regex match over visible text, so every
// hit is marked CompanyNameAtTrigger regardless of proximity.
func ExtractStructured(doc *goquery.Document, sourceURL, companyName string) []model.PhoneCandidate {
	if doc == nil {
		return nil
	}

	seen := make(map[string]bool)
	var candidates []model.PhoneCandidate
	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" || seen[raw] {
			return
		}
		seen[raw] = true
		candidates = append(candidates, model.PhoneCandidate{
			Number:                   raw,
			SourceURL:                sourceURL,
			Snippet:                  "schema.org structured data",
			OriginalInputCompanyName: companyName,
			CompanyNameAtTrigger:     true,
		})
	}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}

		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			for _, tel := range telephonesFromJSONLD(obj) {
				add(tel)
			}
			return true
		}

		var arr []map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			for _, item := range arr {
				for _, tel := range telephonesFromJSONLD(item) {
					add(tel)
				}
			}
		}
		return true
	})

	doc.Find(`[itemprop="telephone"]`).Each(func(_ int, s *goquery.Selection) {
		if content, ok := s.Attr("content"); ok && content != "" {
			add(content)
			return
		}
		add(s.Text())
	})

	return candidates
}

// telephonesFromJSONLD pulls every "telephone" string reachable from
// obj, descending into "contactPoint" (single object or array) and
// "@graph".
func telephonesFromJSONLD(obj map[string]interface{}) []string {
	var out []string

	if val, ok := obj["telephone"]; ok {
		if s, ok := val.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}

	if cp, ok := obj["contactPoint"]; ok {
		switch v := cp.(type) {
		case map[string]interface{}:
			out = append(out, telephonesFromJSONLD(v)...)
		case []interface{}:
			for _, item := range v {
				if m, ok := item.(map[string]interface{}); ok {
					out = append(out, telephonesFromJSONLD(m)...)
				}
			}
		}
	}

	if graph, ok := obj["@graph"]; ok {
		if items, ok := graph.([]interface{}); ok {
			for _, item := range items {
				if m, ok := item.(map[string]interface{}); ok {
					out = append(out, telephonesFromJSONLD(m)...)
				}
			}
		}
	}

	return out
}
