package scraper

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/tariktz/contactminer/internal/model"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases host", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"strips www", "https://www.example.com/about", "https://example.com/about"},
		{"strips fragment", "https://example.com/about#team", "https://example.com/about"},
		{"strips index filename", "https://example.com/about/index.html", "https://example.com/about"},
		{"strips trailing slash", "https://example.com/about/", "https://example.com/about"},
		{"keeps root slash", "https://example.com/", "https://example.com/"},
		{"sorts query params", "https://example.com/?b=2&a=1", "https://example.com/?a=1&b=2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := normalizeURL(tt.in, []string{"index.html"}, nil)
			if err != nil {
				t.Fatalf("normalizeURL(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("normalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSortAndFilterQuery_DropsBlockedKeys(t *testing.T) {
	got, _, err := normalizeURL("https://example.com/?utm_source=x&a=1", nil, []string{"utm_source"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(got, "utm_source") {
		t.Errorf("expected utm_source to be filtered, got %q", got)
	}
	if !strings.Contains(got, "a=1") {
		t.Errorf("expected a=1 to survive, got %q", got)
	}
}

func TestShouldExclude(t *testing.T) {
	tests := []struct {
		name     string
		link     string
		patterns []string
		want     bool
	}{
		{"plain substring match", "https://example.com/en/blog/post-1", []string{"/blog/"}, true},
		{"plain substring no match", "https://example.com/about", []string{"/blog/"}, false},
		{"glob match full path", "https://example.com/assets/app.js", []string{"/assets/*.js"}, true},
		{"glob match basename only", "https://example.com/download/report.pdf", []string{"*.pdf"}, true},
		{"no patterns", "https://example.com/about", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldExclude(tt.link, tt.patterns); got != tt.want {
				t.Errorf("shouldExclude(%q, %v) = %v, want %v", tt.link, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestIsInternal(t *testing.T) {
	root, _ := url.Parse("https://example.com/")
	internal, _ := url.Parse("https://example.com/contact")
	external, _ := url.Parse("https://other.com/contact")

	if !isInternal(root, internal) {
		t.Error("expected same-host URL to be internal")
	}
	if isInternal(root, external) {
		t.Error("expected different-host URL to be external")
	}
}

func TestScoreLink(t *testing.T) {
	tiers := keywordTiers{
		Critical:               []string{"impressum", "kontakt"},
		High:                   []string{"about"},
		General:                []string{"team"},
		MaxKeywordPathSegments: 2,
	}

	tests := []struct {
		name string
		path string
		text string
		want int
	}{
		{"critical segment", "/de/impressum", "", scoreCritical},
		{"high segment", "/about", "", scoreHigh},
		{"general in linktext", "/company", "meet the team", scoreGeneral},
		{"no match", "/products/widget", "", 0},
		{"critical keyword beyond segment limit ignored", "/a/b/impressum", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &url.URL{Path: tt.path}
			if got := scoreLink(u, tt.text, tiers); got != tt.want {
				t.Errorf("scoreLink(%q, %q) = %d, want %d", tt.path, tt.text, got, tt.want)
			}
		})
	}
}

func TestCompanySafeName(t *testing.T) {
	tests := map[string]string{
		"Acme GmbH & Co. KG": "acme_gmbh_co_kg",
		"  already_clean  ":  "already_clean",
		"!!!":                "company",
	}
	for in, want := range tests {
		if got := companySafeName(in); got != want {
			t.Errorf("companySafeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanedPageFilename_StableAndUnique(t *testing.T) {
	u1, _ := url.Parse("https://example.com/contact")
	u2, _ := url.Parse("https://example.com/about")

	n1a := cleanedPageFilename("acme", u1)
	n1b := cleanedPageFilename("acme", u1)
	n2 := cleanedPageFilename("acme", u2)

	if n1a != n1b {
		t.Errorf("expected stable filename, got %q then %q", n1a, n1b)
	}
	if n1a == n2 {
		t.Errorf("expected distinct filenames for distinct URLs, got %q for both", n1a)
	}
}

func TestRedirectChainExceeds(t *testing.T) {
	tests := []struct {
		name  string
		chain map[string]string
		want  bool
	}{
		{"no redirect", map[string]string{}, false},
		{"short chain", map[string]string{"a": "b", "b": "c"}, false},
		{"cycle", map[string]string{"a": "b", "b": "a"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redirectChainExceeds("a", tt.chain, 3); got != tt.want {
				t.Errorf("redirectChainExceeds() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyFetchError_HTTPStatus(t *testing.T) {
	if got := classifyFetchError(nil, 404); got != model.HTTPErrorStatus(404) {
		t.Errorf("expected HTTP 404 mapping, got %v", got)
	}
}

// TestScrape_StaticSiteCrawl exercises the full colly-driven crawl loop
// against a local httptest server: one low-score page is skipped, one
// critical-keyword page is followed and its text saved.
func TestScrape_StaticSiteCrawl(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="/kontakt">Kontakt</a>
			<a href="/products">Products</a>
		</body></html>`))
	})
	mux.HandleFunc("/kontakt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>Call us at +49 30 1234567</body></html>`))
	})
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>Widget catalog</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opts := Options{
		UserAgent:              "contactminer-test/1.0",
		PageTimeout:            5 * time.Second,
		MaxDepth:               2,
		MaxPagesPerCanonical:   5,
		MinLinkScore:           scoreCritical,
		BypassScoreThreshold:   scoreCritical,
		CriticalKeywords:       []string{"kontakt"},
		MaxKeywordPathSegments: 2,
		OutputDir:              t.TempDir(),
		CompanyID:              "acme",
	}

	result := Scrape(t.Context(), srv.URL+"/", opts, NewProcessedURLs())

	if result.Status != model.ScrapeStatusSuccess {
		t.Fatalf("expected success status, got %v", result.Status)
	}
	if len(result.Pages) < 2 {
		t.Fatalf("expected entry page plus /kontakt page, got %d pages: %+v", len(result.Pages), result.Pages)
	}

	var foundKontakt bool
	for _, p := range result.Pages {
		if strings.Contains(p.LandedURL, "/kontakt") {
			foundKontakt = true
		}
		if strings.Contains(p.LandedURL, "/products") {
			t.Errorf("expected /products to be skipped (score below threshold), but it was scraped: %+v", p)
		}
	}
	if !foundKontakt {
		t.Errorf("expected /kontakt to be followed via critical keyword score, pages: %+v", result.Pages)
	}
}
