package analyzer

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/regress/internal/model"
)

const siteURL = "https://example.com"

func TestAnalyze_WordCount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		markup string
		want   int
	}{
		{"plain text", "one two three", 3},
		{"adjacent blocks do not glue", "<p>alpha</p><p>beta</p>", 2},
		{"script and style ignored", `<p>one</p><script>var a = 1;</script><style>p{}</style><p>two</p>`, 2},
		{"punctuation is not a word", "<p>hello — world !</p>", 2},
		{"empty", "", 0},
		{"markup only", "<div><br/><hr/></div>", 0},
		{"digits count", "<p>top 10 list</p>", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := Analyze(tt.markup, Config{})
			assert.Equal(t, tt.want, m.WordCount)
			assert.False(t, m.AnalysisFailed)
		})
	}
}

func TestAnalyze_ShortcodesExcluded(t *testing.T) {
	t.Parallel()
	markup := `<p>intro words</p>[gallery ids="1,2"]caption text here[/gallery]<p>outro</p>[button url="/x" /]`

	with := Analyze(markup, Config{ExcludeShortcodes: true})
	without := Analyze(markup, Config{})

	assert.Equal(t, 3, with.WordCount)
	assert.Greater(t, without.WordCount, with.WordCount)
}

func TestAnalyze_InternalLinks(t *testing.T) {
	t.Parallel()
	markup := `
		<a href="/about">about</a>
		<a href="contact">contact</a>
		<a href="https://EXAMPLE.com/blog">blog</a>
		<a href="http://example.com:8080/x">other port same host</a>
		<a href="https://other.com/">external</a>
		<a href="//cdn.example.com/a">subdomain</a>
		<a href="#top">fragment</a>
		<a href="mailto:me@example.com">mail</a>
		<a href="javascript:void(0)">js</a>
		<a>no href</a>
		<a href="/follow" rel="nofollow noopener">nofollow</a>
	`

	m := Analyze(markup, Config{SiteURL: siteURL})
	assert.Equal(t, 5, m.InternalLinkCount)

	m = Analyze(markup, Config{SiteURL: siteURL, ExcludeNofollowLinks: true})
	assert.Equal(t, 4, m.InternalLinkCount)
}

func TestAnalyze_InternalLinks_NoSiteURL(t *testing.T) {
	t.Parallel()
	markup := `<a href="/a">a</a><a href="b">b</a><a href="https://example.com/c">c</a>`

	m := Analyze(markup, Config{})
	assert.Equal(t, 2, m.InternalLinkCount, "only relative links are internal without a site URL")
}

func TestAnalyze_HeadingOutlineVerbatim(t *testing.T) {
	t.Parallel()
	markup := `<h1>t</h1><div><h2>a</h2><section><h4>deep</h4></section></div><h2>b</h2><h1>again</h1><h6>x</h6>`

	m := Analyze(markup, Config{})
	assert.Equal(t, []int{1, 2, 4, 2, 1, 6}, m.HeadingOutline)
}

func TestAnalyze_MalformedMarkupDegradesGracefully(t *testing.T) {
	t.Parallel()
	markup := `<div><p>unclosed <span>text <h2>heading</h2> <a href="/x">link</a></div></div></p> tail words <<<>>>`

	m := Analyze(markup, Config{SiteURL: siteURL})
	assert.False(t, m.AnalysisFailed)
	assert.Equal(t, 1, m.InternalLinkCount)
	assert.Equal(t, []int{2}, m.HeadingOutline)
	assert.Greater(t, m.WordCount, 0)
}

func TestAnalyze_Deterministic(t *testing.T) {
	t.Parallel()
	markup := `<h1>Title</h1><p>Some <a href="/a">text</a></p>`
	cfg := Config{SiteURL: siteURL, ExcludeShortcodes: true}

	assert.Equal(t, Analyze(markup, cfg), Analyze(markup, cfg))
}

func TestContentHash_IgnoresWhitespaceLayout(t *testing.T) {
	t.Parallel()
	a := ContentHash("<p>hello   world</p>\n")
	b := ContentHash("  <p>hello world</p>")
	c := ContentHash("<p>hello world!</p>")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestAnalyzeDocument_StampsIdentity(t *testing.T) {
	t.Parallel()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	m := AnalyzeDocument(model.Document{ID: "doc-1", Markup: "<p>a b</p>"}, Config{}, ts)
	assert.Equal(t, "doc-1", m.DocumentID)
	assert.Equal(t, ts, m.Timestamp)
	assert.Equal(t, 2, m.WordCount)
}

// Not parallel: swaps the package-level parser.
func TestAnalyze_ParserFailureReturnsZeroedMetrics(t *testing.T) {
	orig := parseDocument
	t.Cleanup(func() { parseDocument = orig })

	parseDocument = func(io.Reader) (*goquery.Document, error) {
		return nil, errors.New("boom")
	}
	m := Analyze("<h1>x</h1><p>words here</p>", Config{})
	require.True(t, m.AnalysisFailed)
	assert.Zero(t, m.WordCount)
	assert.Zero(t, m.InternalLinkCount)
	assert.Empty(t, m.HeadingOutline)
	assert.NotEmpty(t, m.ContentHash)

	parseDocument = func(io.Reader) (*goquery.Document, error) {
		panic("parser exploded")
	}
	m = Analyze("<p>x</p>", Config{})
	assert.True(t, m.AnalysisFailed)
}
