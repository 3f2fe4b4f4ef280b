package utils

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/idna"
)

// URLTools wraps a parsed, normalized base URL (typically the site URL)
// and answers "same host?" questions about links found in documents.
type URLTools struct {
	URL *url.URL
}

func NewURLTools(raw string) (*URLTools, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("couldn't parse url %s: %w", raw, err)
	}

	urlTools := &URLTools{
		URL: u,
	}
	urlTools.normalize()

	return urlTools, nil
}

func (u *URLTools) normalize() {
	u.URL.Fragment = ""
	u.URL.Scheme = strings.ToLower(u.URL.Scheme)
	u.URL.Host = strings.ToLower(u.URL.Host)

	if (u.URL.Scheme == "http" && strings.HasSuffix(u.URL.Host, ":80")) ||
		(u.URL.Scheme == "https" && strings.HasSuffix(u.URL.Host, ":443")) {
		u.URL.Host, _, _ = strings.Cut(u.URL.Host, ":")
	}
}

// Hostname returns the canonical hostname of the base URL ("" when the
// base has no host).
func (u *URLTools) Hostname() string {
	return CanonicalHost(u.URL.Hostname())
}

// DomainIsSame reports whether both URLs share a canonical hostname.
func (u *URLTools) DomainIsSame(target *url.URL) bool {
	if target == nil {
		return false
	}
	return u.Hostname() != "" && u.Hostname() == CanonicalHost(target.Hostname())
}

// Resolve resolves href against the base URL.
//
// Examples:
//
//	Base: https://example.com/blog/post
//	Resolve("other")             → https://example.com/blog/other
//	Resolve("/about")            → https://example.com/about
//	Resolve("//cdn.example.com") → https://cdn.example.com
func (u *URLTools) Resolve(href string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, fmt.Errorf("couldn't parse href %s: %w", href, err)
	}
	return u.URL.ResolveReference(ref), nil
}

// CanonicalHost lowercases a hostname, strips a trailing dot and converts
// IDN to punycode. Unconvertible names are returned lowercased.
func CanonicalHost(host string) string {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" {
		return ""
	}
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		return puny
	}
	return host
}

// Canonicalize returns a deterministic form of a site URL: lowercase scheme,
// canonical host, default port dropped, no credentials, query or fragment.
// defaultScheme is prepended to schemeless input when non-empty.
func Canonicalize(raw, defaultScheme string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &url.Error{Op: "parse", URL: raw, Err: ErrEmptyURL}
	}

	if defaultScheme != "" && !strings.Contains(raw, "://") {
		raw = defaultScheme + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", &url.Error{Op: "parse", URL: raw, Err: ErrMissingHost}
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := CanonicalHost(u.Hostname())

	// Preserve non-default port only
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") || port == "" {
		u.Host = host
	} else {
		u.Host = net.JoinHostPort(host, port)
	}

	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""

	cleanPath := path.Clean(u.Path)
	if cleanPath == "." || cleanPath == "/" {
		cleanPath = ""
	}
	u.Path = cleanPath

	return u.String(), nil
}

// Errors
var (
	ErrEmptyURL    = &url.Error{Op: "canonicalize", URL: "", Err: &errStr{"empty url"}}
	ErrMissingHost = &url.Error{Op: "canonicalize", URL: "", Err: &errStr{"missing host"}}
)

type errStr struct{ s string }

func (e *errStr) Error() string { return e.s }
