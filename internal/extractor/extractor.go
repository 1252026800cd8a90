// Package extractor harvests phone-like candidates out of a page's
// cleaned text. It is pure and deterministic: same
// text in, same candidates out.
package extractor

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/tariktz/contactminer/internal/model"
)

// numberLike matches number-like runs of digits, separators and an
// optional leading '+', generous enough to over-match (validation below
// narrows it down), grounded on the leniency pattern described in
// original_source's python-phonenumbers-extractor scratch scripts.
var numberLike = regexp.MustCompile(`\+?[\d][\d\-\s().\/]{5,}\d`)

// Options configures one Extract call.
type Options struct {
	SnippetWindow            int
	CompanyNameTriggerRadius int
	TargetCountryCodes       []string
	DefaultRegion            string
}

// Extract scans text for phone-like substrings plausible for
// targetCountryCodes, returning one PhoneCandidate per distinct raw
// number found on the page.
func Extract(text, sourceURL, originalCompanyName string, opts Options) []model.PhoneCandidate {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	regions := regionCandidates(opts.TargetCountryCodes, opts.DefaultRegion)

	matches := numberLike.FindAllStringIndex(text, -1)
	seen := make(map[string]bool, len(matches))
	var candidates []model.PhoneCandidate

	for _, loc := range matches {
		start, end := loc[0], loc[1]
		raw := text[start:end]

		normalized, plausible := plausibleForRegions(raw, regions)
		if !plausible {
			continue
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true

		snippet := window(text, start, end, opts.SnippetWindow)
		triggered := companyNameNearby(text, start, end, originalCompanyName, opts.CompanyNameTriggerRadius)

		candidates = append(candidates, model.PhoneCandidate{
			Number:                   normalized,
			SourceURL:                sourceURL,
			Snippet:                  snippet,
			OriginalInputCompanyName: originalCompanyName,
			CompanyNameAtTrigger:     triggered,
		})
	}

	return candidates
}

// plausibleForRegions reports whether raw could plausibly belong to one
// of regions: it only requires a possible-number shape (correct length
// and leading digits for the region), not full validity, so that a
// parseable-but-invalid candidate still reaches classification instead
// of being silently dropped here. Returns the raw number (caller
// normalizes downstream via internal/phone).
func plausibleForRegions(raw string, regions []string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	for _, region := range regions {
		num, err := phonenumbers.Parse(trimmed, region)
		if err != nil {
			continue
		}
		if phonenumbers.IsPossibleNumber(num) {
			return trimmed, true
		}
	}
	return "", false
}

func regionCandidates(targetCountryCodes []string, defaultRegion string) []string {
	var regions []string
	seen := make(map[string]bool)
	add := func(r string) {
		r = strings.ToUpper(strings.TrimSpace(r))
		if r == "" || seen[r] {
			return
		}
		seen[r] = true
		regions = append(regions, r)
	}
	for _, cc := range targetCountryCodes {
		add(cc)
	}
	add(defaultRegion)
	if len(regions) == 0 {
		regions = append(regions, "ZZ")
	}
	return regions
}

// window returns up to w characters on each side of [start,end), clamped
// to text bounds.
func window(text string, start, end, w int) string {
	if w <= 0 {
		return text[start:end]
	}
	lo := start - w
	if lo < 0 {
		lo = 0
	}
	hi := end + w
	if hi > len(text) {
		hi = len(text)
	}
	return strings.TrimSpace(text[lo:hi])
}

// companyNameNearby reports whether originalCompanyName appears within
// radius characters of the match, case-insensitively.
func companyNameNearby(text string, start, end int, companyName string, radius int) bool {
	companyName = strings.TrimSpace(companyName)
	if companyName == "" || radius <= 0 {
		return false
	}
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	hi := end + radius
	if hi > len(text) {
		hi = len(text)
	}
	return strings.Contains(strings.ToLower(text[lo:hi]), strings.ToLower(companyName))
}
