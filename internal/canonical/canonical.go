// Package canonical derives a CanonicalSiteKey and scrape-ready PathfulURL
// from a raw, possibly malformed input URL string: net/url parsing with
// explicit error wrapping, a small self-contained normalization helper,
// and DNS-probed TLD repair for bare, dot-less hostnames. The
// redirect-chain walk lives in internal/scraper/redirects.go, not here;
// Scrape records no redirects into it, so a live crawl never reports
// MaxRedirects_InputURL.
package canonical

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/tariktz/contactminer/internal/model"
)

// ErrInvalidURL is returned for any input that cannot be turned into a
// usable PathfulURL, surfacing as the row-level Input_URL_Invalid reason.
var ErrInvalidURL = errors.New("canonical: Input_URL_Invalid")

// Resolver probes candidate TLDs via DNS. The production Resolver wraps
// net.DefaultResolver; tests substitute a fake.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

type netResolver struct{ r *net.Resolver }

func (n netResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	return n.r.LookupHost(ctx, host)
}

// DefaultResolver is the production DNS resolver.
var DefaultResolver Resolver = netResolver{r: net.DefaultResolver}

// Result is Canonicalize's output: the scrape-ready PathfulURL and the
// cross-row-dedup CanonicalSiteKey derived from it.
type Result struct {
	PathfulURL model.PathfulURL
	SiteKey    model.CanonicalSiteKey
}

// Canonicalize implements the step list: trim, default scheme,
// strip host spaces and lowercase the host, percent-encode path/query, probe TLDs for a
// dot-less non-local host, then derive the site key.
func Canonicalize(ctx context.Context, raw string, probeTLDs []string, resolver Resolver, probeTimeout time.Duration) (Result, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{}, ErrInvalidURL
	}

	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		candidate = "http://" + candidate
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return Result{}, wrapInvalid(err)
	}

	host := strings.ToLower(strings.ReplaceAll(parsed.Host, " ", ""))
	if host == "" {
		return Result{}, ErrInvalidURL
	}
	parsed.Host = host

	if resolver != nil && needsTLDProbe(host) {
		if resolved, ok := probeTLD(ctx, host, probeTLDs, resolver, probeTimeout); ok {
			parsed.Host = resolved
		}
	}

	parsed.Fragment = ""
	parsed.RawFragment = ""

	final := parsed.String()
	if !strings.HasPrefix(final, "http://") && !strings.HasPrefix(final, "https://") {
		return Result{}, ErrInvalidURL
	}

	key, err := deriveKey(parsed)
	if err != nil {
		return Result{}, wrapInvalid(err)
	}

	return Result{PathfulURL: model.PathfulURL(final), SiteKey: key}, nil
}

// Idempotent reports whether re-canonicalizing a successfully
// canonicalized PathfulURL yields the same site key.
func Idempotent(ctx context.Context, u model.PathfulURL, probeTLDs []string, resolver Resolver, probeTimeout time.Duration) bool {
	first, err := Canonicalize(ctx, string(u), probeTLDs, resolver, probeTimeout)
	if err != nil {
		return false
	}
	second, err := Canonicalize(ctx, string(first.PathfulURL), probeTLDs, resolver, probeTimeout)
	if err != nil {
		return false
	}
	return first.SiteKey == second.SiteKey
}

func needsTLDProbe(host string) bool {
	h := host
	if idx := strings.IndexByte(h, ':'); idx >= 0 {
		h = h[:idx]
	}
	if strings.Contains(h, ".") {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return false
	}
	if net.ParseIP(h) != nil {
		return false
	}
	return true
}

// probeTLD tries each candidate TLD from the authoritative ordered list,
// returning the first that resolves via DNS A-record lookup.
func probeTLD(ctx context.Context, host string, tlds []string, resolver Resolver, timeout time.Duration) (string, bool) {
	for _, tld := range tlds {
		tld = strings.TrimSpace(strings.TrimPrefix(tld, "."))
		if tld == "" {
			continue
		}
		candidate := host + "." + tld

		probeCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			probeCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		_, err := resolver.LookupHost(probeCtx, candidate)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return candidate, true
		}
	}
	return host, false
}

// deriveKey builds scheme://host-without-leading-www (plus non-default
// port, if any) with no path/query: the CanonicalSiteKey invariant.
func deriveKey(u *url.URL) (model.CanonicalSiteKey, error) {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", errors.New("scheme must be http or https")
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", errors.New("empty host")
	}
	host = strings.TrimPrefix(host, "www.")

	if port := u.Port(); port != "" {
		host = host + ":" + port
	}

	return model.CanonicalSiteKey(scheme + "://" + host), nil
}

func wrapInvalid(err error) error {
	return errSentinelDetail{sentinel: ErrInvalidURL, detail: err}
}

// errSentinelDetail lets errors.Is(err, ErrInvalidURL) keep matching after
// a parse-error detail is attached.
type errSentinelDetail struct {
	sentinel error
	detail   error
}

func (e errSentinelDetail) Error() string {
	return e.sentinel.Error() + ": " + e.detail.Error()
}

func (e errSentinelDetail) Unwrap() []error {
	return []error{e.sentinel, e.detail}
}
