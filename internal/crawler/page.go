package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is the loaded document of one page lifetime.
type Page struct {
	URL string
	Doc *goquery.Document
}

// NewPage parses body as HTML for the page at rawURL.
func NewPage(rawURL string, body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", rawURL, err)
	}
	if parsed, perr := url.Parse(rawURL); perr == nil {
		doc.Url = parsed
	}
	return &Page{URL: rawURL, Doc: doc}, nil
}

// Text returns the trimmed text of the first match for selector, or
// Unavailable when nothing matches.
func (p *Page) Text(selector string) string {
	if p == nil || p.Doc == nil {
		return Unavailable
	}
	sel := p.Doc.Find(selector).First()
	if sel.Length() == 0 {
		return Unavailable
	}
	return strings.TrimSpace(sel.Text())
}

// Attr returns attribute attr of the first match for selector, or
// Unavailable when the element or attribute is missing or empty.
func (p *Page) Attr(selector, attr string) string {
	if p == nil || p.Doc == nil {
		return Unavailable
	}
	val, ok := p.Doc.Find(selector).First().Attr(attr)
	if !ok || strings.TrimSpace(val) == "" {
		return Unavailable
	}
	return val
}

// Resolve turns href into an absolute URL relative to the page.
func (p *Page) Resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || p == nil {
		return href
	}
	base, err := url.Parse(p.URL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
