package classifier

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// llmResponse is the expected response schema:
// `{ extracted_numbers: [ {number, type, classification, ...} ] }`.
type llmResponse struct {
	ExtractedNumbers []llmNumber `json:"extracted_numbers"`
}

type llmNumber struct {
	Number         string `json:"number"`
	Type           string `json:"type"`
	Classification string `json:"classification"`
}

// errNoJSONBlock signals that no balanced JSON object/array could be
// located in the raw response text.
var errNoJSONBlock = fmt.Errorf("classifier: no JSON object or array found in response")

// parseResponse strips markdown fences if present, extracts the first
// balanced JSON object or array, and unmarshals it; on failure it
// retries once after running the text through jsonrepair, matching
// the tolerant-parse requirement (grounded on
// leofalp-aigo/core/parse.ParseStringAs's unmarshal-then-repair flow).
func parseResponse(raw string) (llmResponse, error) {
	candidate := raw
	if m := codeFence.FindStringSubmatch(raw); m != nil {
		candidate = m[1]
	}

	block, err := firstBalancedJSON(candidate)
	if err != nil {
		return llmResponse{}, err
	}

	var out llmResponse
	if err := json.Unmarshal([]byte(block), &out); err == nil {
		return out, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(block)
	if repairErr != nil {
		return llmResponse{}, fmt.Errorf("classifier: unmarshal failed and repair failed: %w", repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return llmResponse{}, fmt.Errorf("classifier: unmarshal failed after repair: %w", err)
	}
	return out, nil
}

// firstBalancedJSON scans s for the first top-level balanced { } or [ ]
// span, honoring string-literal escaping so braces inside strings don't
// confuse the bracket count.
func firstBalancedJSON(s string) (string, error) {
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			if s[i] == '{' {
				open, close = '{', '}'
			} else {
				open, close = '[', ']'
			}
			break
		}
	}
	if start == -1 {
		return "", errNoJSONBlock
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case inString:
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
		case c == '"':
			inString = true
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("classifier: unbalanced JSON block starting at offset %d", start)
}

func isNoJSONBlockErr(err error) bool {
	return strings.Contains(err.Error(), errNoJSONBlock.Error())
}
