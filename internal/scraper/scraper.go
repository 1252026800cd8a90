// Package scraper implements a bounded, contact-relevance-scored crawl
// of one canonical site on a colly collector. Links are scored by
// keyword tier, low-score links are dropped, and a bypass-threshold link
// is fetched even once the per-host page cap is reached. Each kept link
// is visited as soon as it is found (colly's synchronous Visit), so the
// crawl is neither breadth-first nor ordered by score.
package scraper

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/tariktz/contactminer/internal/extractor"
	"github.com/tariktz/contactminer/internal/model"
	"github.com/tariktz/contactminer/internal/robots"
)

// Options configures one Scrape call.
type Options struct {
	UserAgent              string
	PageTimeout            time.Duration
	NavigationTimeout      time.Duration
	NetworkIdleTimeout     time.Duration
	MaxDepth               int
	MaxPagesPerCanonical   int // 0 = unlimited
	MinLinkScore           int
	BypassScoreThreshold   int
	CriticalKeywords       []string
	HighKeywords           []string
	GeneralKeywords        []string
	ExcludePatterns        []string
	QueryBlocklist         []string
	IndexFilenames         []string
	MaxKeywordPathSegments int
	OutputDir              string
	CompanyID              string
	Robots                 *robots.Gate
	UseHeadlessFallback    bool
}

// ProcessedURLs is the cross-row global dedup set guarding both "don't
// re-save a landed page" and "don't re-enqueue its links".
type ProcessedURLs struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewProcessedURLs builds an empty, run-lifetime dedup set.
func NewProcessedURLs() *ProcessedURLs {
	return &ProcessedURLs{seen: make(map[string]bool)}
}

// CheckAndMark reports whether url was already present, then marks it
// present either way (insert-if-absent).
func (p *ProcessedURLs) CheckAndMark(url string) (alreadyPresent bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	alreadyPresent = p.seen[url]
	p.seen[url] = true
	return alreadyPresent
}

// Result is one Scrape call's return value.
type Result struct {
	Pages     []model.ScrapedPage
	Status    model.ScrapeStatus
	LandedURL string // empty means "no landed URL could be determined"
}

// Scrape crawls a single-origin site starting at pathFulURL, following
// kept links in discovery order (not ordered by score), bounded by
// MaxDepth and MaxPagesPerCanonical, consulting the robots gate and the
// cross-row ProcessedURLs set.
func Scrape(ctx context.Context, pathFulURL string, opts Options, processed *ProcessedURLs) Result {
	root, err := url.Parse(pathFulURL)
	if err != nil || root.Hostname() == "" {
		return Result{Status: model.ScrapeStatusInvalidURL}
	}

	if opts.Robots != nil && !opts.Robots.Allowed(ctx, pathFulURL) {
		return Result{Status: model.ScrapeStatusRobotsDisallowed}
	}

	tiers := keywordTiers{
		Critical:               opts.CriticalKeywords,
		High:                   opts.HighKeywords,
		General:                opts.GeneralKeywords,
		MaxKeywordPathSegments: opts.MaxKeywordPathSegments,
	}

	st := &crawlState{
		opts:      opts,
		tiers:     tiers,
		root:      root,
		processed: processed,
		redirects: make(map[string]string),
	}

	collectorOpts := []colly.CollectorOption{
		colly.AllowedDomains(root.Hostname()),
	}
	if opts.MaxDepth > 0 {
		collectorOpts = append(collectorOpts, colly.MaxDepth(opts.MaxDepth))
	}
	c := colly.NewCollector(collectorOpts...)
	c.UserAgent = opts.UserAgent
	if opts.PageTimeout > 0 {
		c.SetRequestTimeout(opts.PageTimeout)
	}

	c.OnRequest(func(r *colly.Request) {
		if opts.Robots != nil && !opts.Robots.Allowed(ctx, r.URL.String()) {
			r.Abort()
			st.recordRobotsSkip(r.URL.String())
		}
	})

	c.OnResponse(func(r *colly.Response) {
		st.handleResponse(ctx, c, r)
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		st.handleLink(e)
	})

	c.OnError(func(r *colly.Response, fetchErr error) {
		st.recordError(r, fetchErr)
	})

	visitErr := c.Visit(root.String())
	c.Wait()

	if visitErr != nil && st.entryStatus == "" {
		status := classifyFetchError(visitErr, 0)
		return Result{Status: status, LandedURL: st.landedEntryURL}
	}

	// No collector callback writes to st.redirects, so this check finds
	// no chain and a live crawl never returns ScrapeStatusMaxRedirects.
	if redirectChainExceeds(root.String(), st.redirects, 0) {
		return Result{Status: model.ScrapeStatusMaxRedirects, LandedURL: st.landedEntryURL}
	}

	status := st.entryStatus
	if status == "" {
		if len(st.pages) == 0 {
			status = model.ScrapeStatusNoContentScraped
		} else {
			status = model.ScrapeStatusSuccess
		}
	}

	return Result{Pages: st.pages, Status: status, LandedURL: st.landedEntryURL}
}

// crawlState is the mutable, mutex-guarded state of one Scrape call.
type crawlState struct {
	opts  Options
	tiers keywordTiers
	root  *url.URL

	processed *ProcessedURLs

	mu             sync.Mutex
	pages          []model.ScrapedPage
	pageCount      int
	entryStatus    model.ScrapeStatus
	landedEntryURL string
	seenThisCrawl  map[string]bool
	redirects      map[string]string
	sawEntry       bool
}

func (st *crawlState) recordRobotsSkip(rawURL string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.sawEntry {
		st.entryStatus = model.ScrapeStatusRobotsDisallowed
		st.sawEntry = true
	}
}

func (st *crawlState) recordError(r *colly.Response, fetchErr error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	statusCode := 0
	if r != nil {
		statusCode = r.StatusCode
	}
	status := classifyFetchError(fetchErr, statusCode)

	isEntry := r != nil && r.Request != nil && r.Request.URL != nil && sameURL(r.Request.URL, st.root)
	if isEntry && !st.sawEntry {
		st.entryStatus = status
		st.sawEntry = true
	}
	// Sub-page failures never downgrade a successful entry-point scrape.
}

func (st *crawlState) handleResponse(ctx context.Context, c *colly.Collector, r *colly.Response) {
	landed, parsedLanded, err := normalizeURL(r.Request.URL.String(), st.opts.IndexFilenames, st.opts.QueryBlocklist)
	if err != nil {
		return
	}

	isEntry := sameURL(r.Request.URL, st.root)

	st.mu.Lock()
	if isEntry {
		st.landedEntryURL = landed
		st.sawEntry = true
		if r.StatusCode >= 400 {
			st.entryStatus = model.HTTPErrorStatus(r.StatusCode)
		}
	}
	alreadyGlobal := false
	if st.processed != nil {
		alreadyGlobal = st.processed.CheckAndMark(landed)
	}
	if alreadyGlobal {
		st.mu.Unlock()
		return
	}
	if st.seenThisCrawl == nil {
		st.seenThisCrawl = make(map[string]bool)
	}
	if st.seenThisCrawl[landed] {
		st.mu.Unlock()
		return
	}
	st.seenThisCrawl[landed] = true

	bypass := scoreLink(r.Request.URL, "", st.tiers) >= st.opts.BypassScoreThreshold
	if st.opts.MaxPagesPerCanonical > 0 && st.pageCount >= st.opts.MaxPagesPerCanonical && !isEntry && !bypass {
		st.mu.Unlock()
		return
	}
	st.pageCount++
	st.mu.Unlock()

	if r.StatusCode >= 400 {
		return // broken sub-page: don't save, don't enqueue its links (already visited via OnHTML anyway)
	}

	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(string(r.Body)))
	var text string
	var structured []model.PhoneCandidate
	if docErr == nil {
		text = extractVisibleText(doc)
		structured = extractor.ExtractStructured(doc, landed, st.opts.CompanyID)
	}

	if text == "" && st.opts.UseHeadlessFallback {
		if rendered, hErr := headlessFetch(ctx, landed, st.opts.UserAgent, st.opts.NavigationTimeout, st.opts.NetworkIdleTimeout); hErr == nil {
			text = rendered
		}
	}

	if text == "" {
		if isEntry {
			st.mu.Lock()
			if st.entryStatus == "" {
				st.entryStatus = model.ScrapeStatusNoContentScraped
			}
			st.mu.Unlock()
		}
		return
	}

	path, writeErr := writeCleanedPage(st.opts.OutputDir, st.opts.CompanyID, parsedLanded, text)
	if writeErr != nil {
		return
	}

	pageType := model.PageTypeEntry
	if !isEntry {
		pageType = model.PageType(pageTypeForScore(scoreLink(r.Request.URL, "", st.tiers)))
	}

	st.mu.Lock()
	st.pages = append(st.pages, model.ScrapedPage{
		LocalTextPath:        path,
		LandedURL:            landed,
		PageType:             pageType,
		StructuredCandidates: structured,
	})
	st.mu.Unlock()
}

func (st *crawlState) handleLink(e *colly.HTMLElement) {
	raw := strings.TrimSpace(e.Attr("href"))
	if raw == "" {
		return
	}
	absolute := e.Request.AbsoluteURL(raw)
	if absolute == "" {
		return
	}

	normalized, parsed, err := normalizeURL(absolute, st.opts.IndexFilenames, st.opts.QueryBlocklist)
	if err != nil {
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return
	}
	if !isInternal(st.root, parsed) {
		return
	}
	if shouldExclude(normalized, st.opts.ExcludePatterns) {
		return
	}

	score := scoreLink(parsed, e.Text, st.tiers)
	if score < st.opts.MinLinkScore {
		return
	}

	// Links are only followed from pages this crawl kept; a page already
	// in the cross-row ProcessedURLs set contributes no links.
	pageKey, _, pageErr := normalizeURL(e.Request.URL.String(), st.opts.IndexFilenames, st.opts.QueryBlocklist)

	st.mu.Lock()
	if pageErr != nil || !st.seenThisCrawl[pageKey] {
		st.mu.Unlock()
		return
	}
	atCap := st.opts.MaxPagesPerCanonical > 0 && st.pageCount >= st.opts.MaxPagesPerCanonical
	bypass := score >= st.opts.BypassScoreThreshold
	st.mu.Unlock()

	if atCap && !bypass {
		return
	}

	_ = e.Request.Visit(normalized)
}

func sameURL(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Hostname(), b.Hostname()) && trimSlash(a.Path) == trimSlash(b.Path)
}

func trimSlash(p string) string {
	if p == "" {
		return "/"
	}
	if p != "/" {
		return strings.TrimRight(p, "/")
	}
	return p
}

