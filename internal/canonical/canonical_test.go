package canonical

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tariktz/contactminer/internal/model"
)

// fakeResolver resolves only the hosts listed, used to simulate the DNS
// probe of the worked example (acme.de resolves, others don't).
type fakeResolver struct {
	resolvable map[string]bool
}

func (f fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	if f.resolvable[host] {
		return []string{"93.184.216.34"}, nil
	}
	return nil, errors.New("no such host")
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		resolver Resolver
		wantURL  model.PathfulURL
		wantKey  model.CanonicalSiteKey
		wantErr  bool
	}{
		{
			name:    "adds scheme and derives key",
			input:   "example.com",
			wantURL: "http://example.com",
			wantKey: "http://example.com",
		},
		{
			name:    "strips www from key but not from path",
			input:   "http://www.site.tld/contact",
			wantURL: "http://www.site.tld/contact",
			wantKey: "http://site.tld",
		},
		{
			name:    "case-insensitive host",
			input:   "EXAMPLE.COM",
			wantURL: "http://example.com",
			wantKey: "http://example.com",
		},
		{
			name:    "preserves given scheme",
			input:   "https://example.com/path",
			wantURL: "https://example.com/path",
			wantKey: "https://example.com",
		},
		{
			name:    "strips fragment",
			input:   "http://example.com/page#section",
			wantURL: "http://example.com/page",
			wantKey: "http://example.com",
		},
		{
			name:    "empty input is invalid",
			input:   "   ",
			wantErr: true,
		},
		{
			name:  "dotless host probes TLD list and picks first resolving",
			input: "acme",
			resolver: fakeResolver{resolvable: map[string]bool{
				"acme.de": true, "acme.com": true,
			}},
			wantURL: "http://acme.de",
			wantKey: "http://acme.de",
		},
		{
			name:     "dotless host with no resolving TLD keeps host unsuffixed",
			input:    "acme",
			resolver: fakeResolver{resolvable: map[string]bool{}},
			wantURL:  "http://acme",
			wantKey:  "http://acme",
		},
		{
			name:    "localhost is never probed",
			input:   "localhost:8080/x",
			wantURL: "http://localhost:8080/x",
			wantKey: "http://localhost:8080",
		},
	}

	probeTLDs := []string{"de", "com", "at", "ch"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := tt.resolver
			if resolver == nil {
				resolver = fakeResolver{resolvable: map[string]bool{}}
			}
			got, err := Canonicalize(context.Background(), tt.input, probeTLDs, resolver, time.Second)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidURL) {
					t.Fatalf("error = %v, want wrapping ErrInvalidURL", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.PathfulURL != tt.wantURL {
				t.Errorf("PathfulURL = %q, want %q", got.PathfulURL, tt.wantURL)
			}
			if got.SiteKey != tt.wantKey {
				t.Errorf("SiteKey = %q, want %q", got.SiteKey, tt.wantKey)
			}
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	resolver := fakeResolver{resolvable: map[string]bool{}}
	inputs := []string{
		"http://example.com/a/b?x=1",
		"https://www.site.tld/",
		"EXAMPLE.COM/Path",
	}
	for _, in := range inputs {
		if !Idempotent(context.Background(), model.PathfulURL(in), nil, resolver, time.Second) {
			t.Errorf("Canonicalize not idempotent for %q", in)
		}
	}
}

func TestCanonicalize_SameKeyWithAndWithoutWWW(t *testing.T) {
	resolver := fakeResolver{resolvable: map[string]bool{}}
	a, err := Canonicalize(context.Background(), "http://site.tld/contact", nil, resolver, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Canonicalize(context.Background(), "http://www.site.tld/", nil, resolver, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.SiteKey != b.SiteKey {
		t.Errorf("SiteKey mismatch: %q vs %q", a.SiteKey, b.SiteKey)
	}
}
