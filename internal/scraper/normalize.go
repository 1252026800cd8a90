package scraper

import (
	pathpkg "path"
	"net/url"
	"sort"
	"strings"
)

// normalizeURL canonicalizes a crawled URL for dedup purposes: lowercase
// scheme/host, strip www, strip fragment, strip a configured index
// filename, strip trailing slash (except root), sort query parameters,
// and drop a configured blocklist.
func normalizeURL(raw string, indexFilenames, queryBlocklist []string) (string, *url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", nil, err
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""

	host := parsed.Hostname()
	host = strings.TrimPrefix(host, "www.")
	if port := parsed.Port(); port != "" {
		parsed.Host = host + ":" + port
	} else {
		parsed.Host = host
	}

	parsed.Path = stripIndexFilename(parsed.Path, indexFilenames)
	if parsed.Path == "" {
		parsed.Path = "/"
	}
	if parsed.Path != "/" {
		parsed.Path = strings.TrimRight(parsed.Path, "/")
	}

	if parsed.RawQuery != "" {
		parsed.RawQuery = sortAndFilterQuery(parsed.RawQuery, queryBlocklist)
	}

	return parsed.String(), parsed, nil
}

// stripIndexFilename removes a trailing configured index filename
// (index.html, default.asp, ...) from a URL path, e.g. "/about/index.html"
// becomes "/about/".
func stripIndexFilename(path string, indexFilenames []string) string {
	base := pathpkg.Base(path)
	for _, idx := range indexFilenames {
		if strings.EqualFold(base, idx) {
			return strings.TrimSuffix(path, base)
		}
	}
	return path
}

// sortAndFilterQuery sorts query parameters by key and removes any key
// present in blocklist, preserving multi-value parameters.
func sortAndFilterQuery(rawQuery string, blocklist []string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}

	blocked := make(map[string]bool, len(blocklist))
	for _, b := range blocklist {
		blocked[strings.ToLower(b)] = true
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		if blocked[strings.ToLower(k)] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		for j, v := range values[k] {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// isInternal requires netloc equality after normalization.
func isInternal(root, candidate *url.URL) bool {
	if root == nil || candidate == nil {
		return false
	}
	return strings.EqualFold(root.Hostname(), candidate.Hostname())
}

// shouldExclude reports whether link matches any configured exclude
// pattern: a plain substring match for literal patterns, or path.Match
// against the full path and basename for glob patterns.
func shouldExclude(link string, patterns []string) bool {
	parsed, err := url.Parse(link)
	if err != nil {
		return false
	}
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if !strings.ContainsAny(pattern, "*?[") {
			if strings.Contains(parsed.Path, pattern) {
				return true
			}
			continue
		}
		if matched, _ := pathpkg.Match(pattern, parsed.Path); matched {
			return true
		}
		if matched, _ := pathpkg.Match(pattern, pathpkg.Base(parsed.Path)); matched {
			return true
		}
	}
	return false
}
