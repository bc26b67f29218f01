package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

const jsonLDSelector = `script[type="application/ld+json"]`

// JSONLD reads schema.org Product data.
type JSONLD struct{}

// NewJSONLD returns the structured-data source.
func NewJSONLD() JSONLD { return JSONLD{} }

// Name implements Extractor.
func (JSONLD) Name() string { return "jsonld" }

// TryResolve implements Extractor. The first script describing a Product is
// used; unparsable scripts are skipped unless none parse at all.
func (JSONLD) TryResolve(page *crawler.Page) (Partial, error) {
	out := Partial{}
	var firstErr error
	found := false
	page.Doc.Find(jsonLDSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		doc, err := decodeLoose([]byte(s.Text()))
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("decode ld+json: %w", err)
			}
			return true
		}
		product := findProduct(doc)
		if product == nil {
			return true
		}
		found = true
		readProduct(product, out)
		return false
	})
	if !found && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func decodeLoose(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// findProduct walks a top-level object, array or @graph for a Product node.
func findProduct(v any) map[string]any {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			if p := findProduct(item); p != nil {
				return p
			}
		}
	case map[string]any:
		if isProduct(node["@type"]) {
			return node
		}
		if graph, ok := node["@graph"]; ok {
			return findProduct(graph)
		}
	}
	return nil
}

func isProduct(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "Product"
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == "Product" {
				return true
			}
		}
	}
	return false
}

func readProduct(p map[string]any, out Partial) {
	out.set(crawler.FieldName, scalar(p["name"]))
	out.set(crawler.FieldDescription, scalar(p["description"]))

	switch b := p["brand"].(type) {
	case map[string]any:
		out.set(crawler.FieldBrand, scalar(b["name"]))
	default:
		out.set(crawler.FieldBrand, scalar(b))
	}

	sku := scalar(p["sku"])
	if sku == "" {
		sku = idSegment(scalar(p["@id"]))
	}
	out.set(crawler.FieldProductID, sku)

	switch img := p["image"].(type) {
	case []any:
		if len(img) > 0 {
			out.set(crawler.FieldImageURL, imageURL(img[0]))
		}
	default:
		out.set(crawler.FieldImageURL, imageURL(img))
	}

	offer := firstOffer(p["offers"])
	if offer == nil {
		return
	}
	if price := scalar(offer["price"]); price != "" {
		out.set(crawler.FieldNonMemberPrice, "$"+price)
	}
	switch availability(scalar(offer["availability"])) {
	case "InStock":
		out.set(crawler.FieldStock, crawler.StockIn)
	case "OutOfStock":
		out.set(crawler.FieldStock, crawler.StockOut)
	}
}

func firstOffer(v any) map[string]any {
	switch o := v.(type) {
	case []any:
		if len(o) > 0 {
			m, _ := o[0].(map[string]any)
			return m
		}
	case map[string]any:
		return o
	}
	return nil
}

func imageURL(v any) string {
	if m, ok := v.(map[string]any); ok {
		return scalar(m["url"])
	}
	return scalar(v)
}

// idSegment returns the last path segment of an @id before any fragment.
func idSegment(id string) string {
	id, _, _ = strings.Cut(id, "#")
	id = strings.TrimRight(id, "/")
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	return id
}

func availability(v string) string {
	for _, prefix := range []string{"http://schema.org/", "https://schema.org/"} {
		v = strings.TrimPrefix(v, prefix)
	}
	return v
}

// scalar renders strings and numbers; anything else is unresolved.
func scalar(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}
