package crawler

import (
	"fmt"
	"time"
)

// Unavailable marks a record field that no extraction source could resolve.
const Unavailable = "N/A"

// ProcessState holds the two phase flags. At most one of them is true.
type ProcessState struct {
	CrawlInProgress      bool `json:"crawl_in_progress"`
	NavigationInProgress bool `json:"navigation_in_progress"`
}

// Idle reports whether neither phase is active.
func (s ProcessState) Idle() bool {
	return !s.CrawlInProgress && !s.NavigationInProgress
}

// ProductRecord is one extracted row. Every field carries either a value or
// Unavailable.
type ProductRecord struct {
	ProductID      string `json:"productId"`
	ProductURL     string `json:"productUrl"`
	ImageURL       string `json:"imageUrl"`
	Name           string `json:"name"`
	Brand          string `json:"brand"`
	Style          string `json:"style"`
	ABV            string `json:"abv"`
	Description    string `json:"description"`
	Rating         string `json:"rating"`
	Review         string `json:"review"`
	Bundle         string `json:"bundle"`
	Stock          string `json:"stock"`
	NonMemberPrice string `json:"nonMemberPrice"`
	PromoPrice     string `json:"promoPrice"`
	DiscountPrice  string `json:"discountPrice"`
	MemberPrice    string `json:"memberPrice"`
	Size           string `json:"size"`
	Type           string `json:"type"`
	Country        string `json:"country"`
	Region         string `json:"region"`
	Barcode        string `json:"barcode"`
}

// NewProductRecord returns a record for pageURL with every other field unavailable.
func NewProductRecord(pageURL string) ProductRecord {
	rec := ProductRecord{}
	for _, f := range AllFields {
		rec.Set(f, Unavailable)
	}
	rec.ProductURL = pageURL
	if rec.ProductURL == "" {
		rec.ProductURL = Unavailable
	}
	return rec
}

// Stock status values.
const (
	StockIn  = "In Stock"
	StockOut = "Out of Stock"
)

// BundleSingle labels the only record of a product without variants.
const BundleSingle = "Single"

// RunInfo describes one crawl run; it travels with published signals.
type RunInfo struct {
	RunID      string    `json:"run_id"`
	Links      int       `json:"links"`
	Pages      int       `json:"pages"`
	Records    int       `json:"records"`
	FinishedAt time.Time `json:"finished_at"`
}

// FormatCents renders an amount in cents as a dollar price.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
