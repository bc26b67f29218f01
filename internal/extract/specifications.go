package extract

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

var specKeys = map[string]crawler.Field{
	"brandname":      crawler.FieldBrand,
	"alcoholcontent": crawler.FieldABV,
	"style":          crawler.FieldStyle,
	"size":           crawler.FieldSize,
	"type":           crawler.FieldType,
	"country":        crawler.FieldCountry,
	"region":         crawler.FieldRegion,
	"barcode":        crawler.FieldBarcode,
}

// Specifications reads the two-column product specification table.
type Specifications struct {
	selector string
}

// NewSpecifications returns the table source for the table at selector.
func NewSpecifications(selector string) Specifications {
	return Specifications{selector: selector}
}

// Name implements Extractor.
func (Specifications) Name() string { return "specifications" }

// TryResolve implements Extractor. Only rows of exactly two cells count and
// the first row naming a field wins.
func (s Specifications) TryResolve(page *crawler.Page) (Partial, error) {
	out := Partial{}
	if s.selector == "" {
		return out, nil
	}
	page.Doc.Find(s.selector).First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() != 2 {
			return
		}
		field, ok := specKeys[normalizeKey(cells.Eq(0).Text())]
		if !ok {
			return
		}
		if _, seen := out[field]; seen {
			return
		}
		out.set(field, cells.Eq(1).Text())
	})
	return out, nil
}

func normalizeKey(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}
