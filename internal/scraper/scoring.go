package scraper

import (
	"net/url"
	"strings"
)

// Score tiers, highest first.
const (
	scoreCritical = 100
	scoreHigh     = 20
	scoreGeneral  = 5
)

// keywordTiers bundles the three configured keyword lists used by
// scoreLink's tiered matching.
type keywordTiers struct {
	Critical             []string
	High                 []string
	General              []string
	MaxKeywordPathSegments int
}

// scoreLink assigns a priority score to a candidate link using tiered
// keyword rules: critical/high keywords must appear as a standalone
// path segment within the first MaxKeywordPathSegments segments;
// general keywords qualify anywhere in the link text or href.
func scoreLink(target *url.URL, linkText string, tiers keywordTiers) int {
	segments := pathSegments(target.Path, tiers.MaxKeywordPathSegments)

	if matchesAnySegment(segments, tiers.Critical) {
		return scoreCritical
	}
	if matchesAnySegment(segments, tiers.High) {
		return scoreHigh
	}

	haystack := strings.ToLower(target.Path + " " + linkText)
	for _, kw := range tiers.General {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, kw) {
			return scoreGeneral
		}
	}

	return 0
}

func pathSegments(path string, limit int) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "/")
	if limit > 0 && len(parts) > limit {
		parts = parts[:limit]
	}
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	return parts
}

func matchesAnySegment(segments []string, keywords []string) bool {
	for _, seg := range segments {
		for _, kw := range keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if seg == kw {
				return true
			}
		}
	}
	return false
}

// pageTypeForScore maps a link's score tier to the ScrapedPage.PageType
// tag it will carry once fetched.
func pageTypeForScore(score int) string {
	switch {
	case score >= scoreCritical:
		return "critical"
	case score >= scoreHigh:
		return "high"
	case score >= scoreGeneral:
		return "general"
	default:
		return "general"
	}
}

// companySafeName sanitizes a company identifier for use as a filename
// prefix: lowercase, non-alphanumerics collapsed to underscores.
func companySafeName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		s = "company"
	}
	return s
}

// hostFragment returns a short sanitized host fragment used to prefix
// hashed filenames, keeping paths bounded.
func hostFragment(u *url.URL) string {
	host := u.Hostname()
	host = strings.TrimPrefix(host, "www.")
	frag := companySafeName(host)
	if len(frag) > 24 {
		frag = frag[:24]
	}
	return frag
}
