// Package analyzer turns raw document markup into a structural Metrics
// snapshot. Analysis is pure: the same markup and Config always produce the
// same Metrics, and nothing here touches storage.
package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/raysh454/regress/internal/model"
	"github.com/raysh454/regress/internal/utils"
)

// parseDocument is swapped in tests to simulate parser failures.
var parseDocument = func(r io.Reader) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(r)
}

// AnalyzeDocument analyzes doc.Markup and stamps the result with the
// document id and the caller-supplied timestamp.
func AnalyzeDocument(doc model.Document, cfg Config, ts time.Time) model.Metrics {
	m := Analyze(doc.Markup, cfg)
	m.DocumentID = doc.ID
	m.Timestamp = ts
	return m
}

// Analyze computes word count, internal link count, heading outline and
// content hash for rawMarkup. It never fails: markup the tokenizer cannot
// make sense of is read as text, and an irrecoverable failure yields zero
// counts with AnalysisFailed set.
func Analyze(rawMarkup string, cfg Config) (m model.Metrics) {
	m.ContentHash = ContentHash(rawMarkup)
	m.HeadingOutline = []int{}

	defer func() {
		if r := recover(); r != nil {
			m = degraded(m.ContentHash)
		}
	}()

	doc, err := parseDocument(strings.NewReader(rawMarkup))
	if err != nil {
		return degraded(m.ContentHash)
	}

	m.InternalLinkCount = countInternalLinks(doc, cfg)
	m.HeadingOutline = headingOutline(doc)

	textDoc := doc
	if cfg.ExcludeShortcodes {
		if stripped := stripShortcodes(rawMarkup); stripped != rawMarkup {
			textDoc, err = parseDocument(strings.NewReader(stripped))
			if err != nil {
				return degraded(m.ContentHash)
			}
		}
	}
	m.WordCount = countWords(visibleText(textDoc))

	return m
}

func degraded(hash string) model.Metrics {
	return model.Metrics{
		ContentHash:    hash,
		HeadingOutline: []int{},
		AnalysisFailed: true,
	}
}

// ContentHash returns the hex sha256 of raw with whitespace runs collapsed,
// so re-indenting a document does not look like a content change.
func ContentHash(raw string) string {
	normalized := strings.Join(strings.Fields(raw), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func countInternalLinks(doc *goquery.Document, cfg Config) int {
	site, err := utils.NewURLTools(cfg.SiteURL)
	if err != nil {
		// An unusable site URL leaves only relative links countable.
		site, _ = utils.NewURLTools("")
	}

	count := 0
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if cfg.ExcludeNofollowLinks && hasNofollow(sel) {
			return
		}
		href, _ := sel.Attr("href")
		if isInternalHref(site, href) {
			count++
		}
	})
	return count
}

func isInternalHref(site *utils.URLTools, href string) bool {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return false
	}
	if ref.Scheme != "" && ref.Scheme != "http" && ref.Scheme != "https" {
		// mailto:, tel:, javascript:, data: and friends.
		return false
	}

	resolved, err := site.Resolve(href)
	if err != nil {
		return false
	}
	if resolved.Host == "" {
		return ref.Host == "" && ref.Scheme == ""
	}
	return site.DomainIsSame(resolved)
}

func hasNofollow(sel *goquery.Selection) bool {
	rel, ok := sel.Attr("rel")
	if !ok {
		return false
	}
	for _, token := range strings.Fields(strings.ToLower(rel)) {
		if token == "nofollow" {
			return true
		}
	}
	return false
}

// headingOutline records h1..h6 levels in document order, verbatim.
func headingOutline(doc *goquery.Document) []int {
	outline := []int{}
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		name := goquery.NodeName(sel)
		if len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6' {
			outline = append(outline, int(name[1]-'0'))
		}
	})
	return outline
}

// visibleText joins text nodes with spaces so adjacent blocks
// (<p>a</p><p>b</p>) do not glue into one word.
func visibleText(doc *goquery.Document) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return b.String()
}

// countWords counts whitespace-separated tokens holding at least one
// letter or digit; stray punctuation is not a word.
func countWords(text string) int {
	n := 0
	for _, token := range strings.Fields(text) {
		if strings.IndexFunc(token, func(r rune) bool {
			return unicode.IsLetter(r) || unicode.IsDigit(r)
		}) >= 0 {
			n++
		}
	}
	return n
}
