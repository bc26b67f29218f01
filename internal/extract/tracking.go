package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/titanous/json5"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

var trackingItem = regexp.MustCompile(`var item = (\{[\s\S]*?\});`)

// Tracking reads the product object an analytics snippet pushes on load.
// The object is a script literal, so it is parsed as JSON5.
type Tracking struct{}

// NewTracking returns the tracking-script source.
func NewTracking() Tracking { return Tracking{} }

// Name implements Extractor.
func (Tracking) Name() string { return "tracking" }

// TryResolve implements Extractor.
func (Tracking) TryResolve(page *crawler.Page) (Partial, error) {
	out := Partial{}
	var body string
	page.Doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if strings.Contains(text, "klaviyo.push") && strings.Contains(text, "var item =") {
			body = text
			return false
		}
		return true
	})
	if body == "" {
		return out, nil
	}
	m := trackingItem.FindStringSubmatch(body)
	if m == nil {
		return out, nil
	}
	var item map[string]any
	if err := json5.Unmarshal([]byte(m[1]), &item); err != nil {
		return nil, fmt.Errorf("decode tracking item: %w", err)
	}

	id := scalar(item["ProductID"])
	if id == "" {
		id = scalar(item["SKU"])
	}
	out.set(crawler.FieldProductID, id)
	out.set(crawler.FieldImageURL, scalar(item["ImageURL"]))

	switch c := item["Categories"].(type) {
	case []any:
		parts := make([]string, 0, len(c))
		for _, v := range c {
			if s := scalar(v); s != "" {
				parts = append(parts, s)
			}
		}
		out.set(crawler.FieldStyle, strings.Join(parts, ", "))
	default:
		out.set(crawler.FieldStyle, scalar(c))
	}
	return out, nil
}
