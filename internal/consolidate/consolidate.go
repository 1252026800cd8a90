// Package consolidate merges per-page classified phone numbers collected
// for one canonical site into a deduplicated, priority-ranked
// SiteContactDetails record. Pure functions, no I/O.
package consolidate

import (
	"sort"

	"github.com/tariktz/contactminer/internal/model"
)

var classificationTier = map[model.Classification]int{
	model.ClassificationPrimary:      1,
	model.ClassificationSecondary:    2,
	model.ClassificationSupport:      3,
	model.ClassificationLowRelevance: 4,
	model.ClassificationNonBusiness:  5,
	model.ClassificationUnknown:      6,
}

func classificationPriority(c model.Classification) int {
	if p, ok := classificationTier[c]; ok {
		return p
	}
	return classificationTier[model.ClassificationUnknown]
}

var typeTier = map[string]int{
	"main line":         1,
	"headquarters":      2,
	"reception":         3,
	"sales":             10,
	"customer service":  11,
	"support":           12,
	"fax":               80,
	"unknown":           99,
}

func typePriority(t string) int {
	if p, ok := typeTier[normalizeType(t)]; ok {
		return p
	}
	return typeTier["unknown"]
}

func normalizeType(t string) string {
	lower := make([]byte, 0, len(t))
	for i := 0; i < len(t); i++ {
		c := t[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		lower = append(lower, c)
	}
	return string(lower)
}

// priority reports the (lower-is-better) priority pair for (c, t),
// ordered classification-tier first then type-tier, as two ints:
// classification dominates, type breaks ties.
func priority(c model.Classification, t string) (int, int) {
	return classificationPriority(c), typePriority(t)
}

// higherPriority reports whether (c1, t1) outranks (c2, t2).
func higherPriority(c1 model.Classification, t1 string, c2 model.Classification, t2 string) bool {
	cp1, tp1 := priority(c1, t1)
	cp2, tp2 := priority(c2, t2)
	if cp1 != cp2 {
		return cp1 < cp2
	}
	return tp1 < tp2
}

// Consolidate merges every ClassifiedPhone recorded for one canonical
// site (across however many PathfulURLs shared it) into a
// SiteContactDetails: numbers deduped by value, each carrying the
// best-priority classification/type seen across all its sources, and
// sources deduplicated by (full source URL, type).
func Consolidate(key model.CanonicalSiteKey, companyName string, originalInputURLs []string, phones []model.ClassifiedPhone) model.SiteContactDetails {
	byNumber := make(map[string]*model.ConsolidatedNumber)
	order := make([]string, 0)

	for _, p := range phones {
		entry, ok := byNumber[p.Number]
		if !ok {
			entry = &model.ConsolidatedNumber{
				Number:         p.Number,
				Classification: p.Classification,
				Type:           p.Type,
				ErrorTag:       p.ErrorTag,
			}
			byNumber[p.Number] = entry
			order = append(order, p.Number)
		} else if !p.IsError() && higherPriority(p.Classification, p.Type, entry.Classification, entry.Type) {
			entry.Classification = p.Classification
			entry.Type = p.Type
		}

		if entry.ErrorTag != "" && !p.IsError() {
			entry.ErrorTag = ""
		}

		source := model.ConsolidatedSource{
			Type:                     p.Type,
			FullSourceURL:            p.SourceURL,
			OriginalInputCompanyName: p.OriginalInputCompanyName,
		}
		if !containsSource(entry.Sources, source) {
			entry.Sources = append(entry.Sources, source)
		}
	}

	numbers := make([]model.ConsolidatedNumber, 0, len(order))
	for _, num := range order {
		numbers = append(numbers, *byNumber[num])
	}

	sort.SliceStable(numbers, func(i, j int) bool {
		return higherPriority(numbers[i].Classification, numbers[i].Type, numbers[j].Classification, numbers[j].Type)
	})

	return model.SiteContactDetails{
		CanonicalKey:        key,
		CompanyName:         companyName,
		ConsolidatedNumbers: numbers,
		OriginalInputURLs:   originalInputURLs,
	}
}

func containsSource(sources []model.ConsolidatedSource, s model.ConsolidatedSource) bool {
	for _, existing := range sources {
		if existing.FullSourceURL == s.FullSourceURL && existing.Type == s.Type {
			return true
		}
	}
	return false
}
