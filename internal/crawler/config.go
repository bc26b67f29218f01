package crawler

import (
	"fmt"
	"strings"
	"time"
)

// SiteProfile captures the markup conventions of the catalog being read.
// Every selector is a CSS selector evaluated with goquery.
type SiteProfile struct {
	StartURL       string   `mapstructure:"start_url"`
	ListingPattern string   `mapstructure:"listing_pattern"`
	ProductPattern string   `mapstructure:"product_pattern"`
	CardSelector   string   `mapstructure:"card_selector"`
	CardLink       string   `mapstructure:"card_link"`
	NextPage       string   `mapstructure:"next_page"`
	SpecTable      string   `mapstructure:"spec_table"`
	TitleSelectors []string `mapstructure:"title_selectors"`
	Description    string   `mapstructure:"description"`
	Image          string   `mapstructure:"image"`
	ReviewBadge    string   `mapstructure:"review_badge"`
	AddToCart      string   `mapstructure:"add_to_cart"`
	VariantData    string   `mapstructure:"variant_data"`
	VariantPicker  string   `mapstructure:"variant_picker"`
	RegularPrice   string   `mapstructure:"regular_price"`
	SalePrice      string   `mapstructure:"sale_price"`
}

// DefaultSiteProfile returns the selectors of the Shopify "Dawn" theme used
// by the bottle-stop.com.au catalog.
func DefaultSiteProfile() SiteProfile {
	return SiteProfile{
		ListingPattern: "/collections/",
		ProductPattern: "/products/",
		CardSelector:   "li.grid__item",
		CardLink:       "h3.card__heading a",
		NextPage:       `a[aria-label="Next page"].pagination__item`,
		SpecTable:      ".product__accordion table",
		TitleSelectors: []string{".product__title h1", "h1.product__title"},
		Description:    ".product__description.rte",
		Image:          ".product__media img",
		ReviewBadge:    ".jdgm-prev-badge",
		AddToCart:      ".product-form__submit",
		VariantPicker:  "variant-radios",
		VariantData:    `script[type="application/json"]`,
		RegularPrice:   ".price-item--regular",
		SalePrice:      ".price-item--sale",
	}
}

// IsListing reports whether rawURL is a paginated listing page.
func (p SiteProfile) IsListing(rawURL string) bool {
	return p.ListingPattern != "" && strings.Contains(rawURL, p.ListingPattern)
}

// IsProduct reports whether rawURL is a product page.
func (p SiteProfile) IsProduct(rawURL string) bool {
	return p.ProductPattern != "" && strings.Contains(rawURL, p.ProductPattern)
}

// Validate checks that the selectors the controllers depend on are set.
func (p SiteProfile) Validate() error {
	switch {
	case strings.TrimSpace(p.ListingPattern) == "":
		return fmt.Errorf("site.listing_pattern must be set")
	case strings.TrimSpace(p.ProductPattern) == "":
		return fmt.Errorf("site.product_pattern must be set")
	case strings.TrimSpace(p.CardSelector) == "" || strings.TrimSpace(p.CardLink) == "":
		return fmt.Errorf("site.card_selector and site.card_link must be set")
	case strings.TrimSpace(p.NextPage) == "":
		return fmt.Errorf("site.next_page must be set")
	}
	return nil
}

// Timing holds the fixed delays of the state machine.
type Timing struct {
	// Settle is waited on every fresh page before the dispatcher runs.
	Settle time.Duration `mapstructure:"settle"`
	// Click is waited before clicking the next-page control.
	Click time.Duration `mapstructure:"click"`
	// Dwell is waited on each product page before advancing.
	Dwell time.Duration `mapstructure:"dwell"`
}

// DefaultTiming mirrors the pacing of a person browsing the catalog.
func DefaultTiming() Timing {
	return Timing{
		Settle: 1500 * time.Millisecond,
		Click:  500 * time.Millisecond,
		Dwell:  3 * time.Second,
	}
}

// Validate rejects negative delays.
func (t Timing) Validate() error {
	if t.Settle < 0 || t.Click < 0 || t.Dwell < 0 {
		return fmt.Errorf("timing delays must be >= 0")
	}
	return nil
}
