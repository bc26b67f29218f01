package extract

import (
	"strings"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

// DOM reads the visible product markup.
type DOM struct {
	profile crawler.SiteProfile
}

// NewDOM returns the markup source for profile.
func NewDOM(profile crawler.SiteProfile) DOM {
	return DOM{profile: profile}
}

// Name implements Extractor.
func (DOM) Name() string { return "dom" }

// TryResolve implements Extractor.
func (d DOM) TryResolve(page *crawler.Page) (Partial, error) {
	out := Partial{}
	for _, sel := range d.profile.TitleSelectors {
		if title := page.Text(sel); title != crawler.Unavailable && title != "" {
			out.set(fieldTitle, title)
			break
		}
	}
	if d.profile.Description != "" {
		out.set(crawler.FieldDescription, page.Text(d.profile.Description))
	}
	if d.profile.Image != "" {
		src := page.Attr(d.profile.Image, "src")
		if strings.HasPrefix(src, "//") {
			src = "https:" + src
		}
		out.set(crawler.FieldImageURL, src)
	}
	if d.profile.ReviewBadge != "" {
		out.set(crawler.FieldReview, page.Attr(d.profile.ReviewBadge, "data-number-of-reviews"))
		out.set(crawler.FieldRating, page.Attr(d.profile.ReviewBadge, "data-average-rating"))
	}
	if d.profile.AddToCart != "" {
		button := page.Doc.Find(d.profile.AddToCart).First()
		if button.Length() > 0 {
			if _, disabled := button.Attr("disabled"); disabled {
				out.set(crawler.FieldStock, crawler.StockOut)
			} else {
				out.set(crawler.FieldStock, crawler.StockIn)
			}
		}
	}
	return out, nil
}
