package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

var bundleCount = regexp.MustCompile(`\b(\d+)\b`)

// Variant is one purchasable option of a product. Prices are in cents.
type Variant struct {
	SKU            string   `json:"sku"`
	Title          string   `json:"title"`
	Available      bool     `json:"available"`
	Price          float64  `json:"price"`
	CompareAtPrice *float64 `json:"compare_at_price"`
}

// parseVariants reads the variant list embedded in the variant picker. A page
// without a picker or without its data script has no variants.
func parseVariants(page *crawler.Page, profile crawler.SiteProfile) ([]Variant, error) {
	if profile.VariantPicker == "" || profile.VariantData == "" {
		return nil, nil
	}
	script := page.Doc.Find(profile.VariantPicker).First().Find(profile.VariantData).First()
	if script.Length() == 0 {
		return nil, nil
	}
	var variants []Variant
	if err := json.Unmarshal([]byte(script.Text()), &variants); err != nil {
		return nil, fmt.Errorf("decode variants: %w", err)
	}
	return variants, nil
}

// apply derives the record of this variant from the merged base record.
func (v Variant) apply(base crawler.ProductRecord) crawler.ProductRecord {
	rec := base
	if sku := strings.TrimSpace(v.SKU); sku != "" {
		rec.ProductID = sku
	}
	if v.Available {
		rec.Stock = crawler.StockIn
	} else {
		rec.Stock = crawler.StockOut
	}
	rec.Bundle = ClassifyBundle(v.Title)

	price := cents(v.Price)
	rec.NonMemberPrice = crawler.FormatCents(price)
	if v.CompareAtPrice != nil {
		if compare := cents(*v.CompareAtPrice); compare > price {
			rec.MemberPrice = crawler.FormatCents(price)
			rec.NonMemberPrice = crawler.FormatCents(compare)
		}
	}
	return rec
}

func cents(v float64) int64 {
	return int64(math.Round(v))
}

// ClassifyBundle derives the bundle label of a variant from its title.
// A count with "case" or "pack" is labelled accordingly; a bare count of 12
// or more is a case and anything smaller a pack. Without a count the label
// falls back to a standard case of 24, a standard pack of 6, or the title.
func ClassifyBundle(title string) string {
	lower := strings.ToLower(title)
	isCase := strings.Contains(lower, "case")
	isPack := strings.Contains(lower, "pack")

	if m := bundleCount.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			switch {
			case isCase:
				return fmt.Sprintf("Case (%d)", n)
			case isPack:
				return fmt.Sprintf("Pack (%d)", n)
			case n >= 12:
				return fmt.Sprintf("Case (%d)", n)
			default:
				return fmt.Sprintf("Pack (%d)", n)
			}
		}
	}
	switch {
	case isCase:
		return "Case (24)"
	case isPack:
		return "Pack (6)"
	case strings.TrimSpace(title) == "":
		return crawler.Unavailable
	default:
		return title
	}
}
