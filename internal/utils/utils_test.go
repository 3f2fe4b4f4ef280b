package utils_test

import (
	"net/url"
	"testing"

	"github.com/raysh454/regress/internal/utils"
)

// ─── CanonicalHost ─────────────────────────────────────────────────────

func TestCanonicalHost(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"Example.COM", "example.com"},
		{"example.com.", "example.com"},
		{"  example.com ", "example.com"},
		{"", ""},
		{"bücher.example", "xn--bcher-kva.example"},
	}
	for _, tt := range tests {
		if got := utils.CanonicalHost(tt.in); got != tt.want {
			t.Errorf("CanonicalHost(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ─── URLTools ──────────────────────────────────────────────────────────

func TestURLTools_ResolveRelative(t *testing.T) {
	t.Parallel()
	base, err := utils.NewURLTools("https://example.com/blog/post")
	if err != nil {
		t.Fatalf("NewURLTools: %v", err)
	}

	tests := []struct {
		href string
		want string
	}{
		{"other", "https://example.com/blog/other"},
		{"/about", "https://example.com/about"},
		{"//cdn.example.com/x", "https://cdn.example.com/x"},
		{"https://foo.com/y", "https://foo.com/y"},
	}
	for _, tt := range tests {
		got, err := base.Resolve(tt.href)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.href, err)
		}
		if got.String() != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.href, got.String(), tt.want)
		}
	}
}

func TestURLTools_DomainIsSame(t *testing.T) {
	t.Parallel()
	base, err := utils.NewURLTools("https://Example.com:443/")
	if err != nil {
		t.Fatalf("NewURLTools: %v", err)
	}

	same, _ := url.Parse("http://EXAMPLE.com:8080/page")
	other, _ := url.Parse("https://other.com/page")
	sub, _ := url.Parse("https://www.example.com/page")

	if !base.DomainIsSame(same) {
		t.Error("expected same host regardless of case, scheme and port")
	}
	if base.DomainIsSame(other) {
		t.Error("expected different host")
	}
	if base.DomainIsSame(sub) {
		t.Error("subdomains are different hosts")
	}
	if base.DomainIsSame(nil) {
		t.Error("nil target is never the same host")
	}
}

func TestURLTools_EmptyBaseMatchesNothing(t *testing.T) {
	t.Parallel()
	base, err := utils.NewURLTools("")
	if err != nil {
		t.Fatalf("NewURLTools: %v", err)
	}
	u, _ := url.Parse("https://example.com")
	if base.DomainIsSame(u) {
		t.Error("empty base must not match any host")
	}
}

// ─── Canonicalize ──────────────────────────────────────────────────────

func TestCanonicalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		scheme  string
		want    string
		wantErr bool
	}{
		{"https://Example.com:443/", "", "https://example.com", false},
		{"example.com", "https", "https://example.com", false},
		{"http://user:pw@example.com:8080/blog/?a=1#x", "", "http://example.com:8080/blog", false},
		{"", "https", "", true},
		{"/relative/only", "", "", true},
	}
	for _, tt := range tests {
		got, err := utils.Canonicalize(tt.in, tt.scheme)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Canonicalize(%q): expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Canonicalize(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
