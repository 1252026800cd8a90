package scraper

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// extractVisibleText drops script/style content and collapses whitespace,
// matching the "extract visible text" requirement.
func extractVisibleText(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()
	raw := doc.Find("body").Text()
	if strings.TrimSpace(raw) == "" {
		raw = doc.Text()
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(raw, " "))
}

// cleanedPageFilename builds <company-safe>__<host-fragment>_<hash>.txt,
// the file name used under cleaned-pages/.
// FNV-1a keeps the filename short, stable, and unique per landed URL.
func cleanedPageFilename(companyID string, landed *url.URL) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(landed.String()))
	digest := fmt.Sprintf("%016x", h.Sum64())
	return fmt.Sprintf("%s__%s_%s.txt", companySafeName(companyID), hostFragment(landed), digest)
}

// writeCleanedPage persists text to <outputDir>/cleaned-pages/<filename>,
// creating the directory if needed, and returns the path written.
func writeCleanedPage(outputDir, companyID string, landed *url.URL, text string) (string, error) {
	dir := filepath.Join(outputDir, "cleaned-pages")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create cleaned-pages directory: %w", err)
	}

	name := cleanedPageFilename(companyID, landed)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write cleaned page %s: %w", path, err)
	}
	return path, nil
}
