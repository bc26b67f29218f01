package extract

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
)

// fieldTitle carries the visible product title between the DOM source and
// name assembly. It is not a record column.
const fieldTitle crawler.Field = "title"

// Partial is the set of fields one source resolved.
type Partial map[crawler.Field]string

func (p Partial) set(f crawler.Field, value string) {
	value = strings.TrimSpace(value)
	if value == "" || value == crawler.Unavailable {
		return
	}
	p[f] = value
}

// Extractor is one independent extraction source.
type Extractor interface {
	Name() string
	TryResolve(page *crawler.Page) (Partial, error)
}

// DefaultExtractors returns the sources in precedence order.
func DefaultExtractors(profile crawler.SiteProfile) []Extractor {
	return []Extractor{
		NewJSONLD(),
		NewTracking(),
		NewSpecifications(profile.SpecTable),
		NewDOM(profile),
	}
}

// Resolver merges extraction sources into product records.
type Resolver struct {
	profile crawler.SiteProfile
	sources []Extractor
	logger  *zap.Logger
}

// NewResolver builds a resolver over the default sources for profile.
func NewResolver(profile crawler.SiteProfile, logger *zap.Logger) *Resolver {
	return NewResolverWithSources(profile, logger, DefaultExtractors(profile)...)
}

// NewResolverWithSources builds a resolver over the given sources, in order.
func NewResolverWithSources(profile crawler.SiteProfile, logger *zap.Logger, sources ...Extractor) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		profile: profile,
		sources: sources,
		logger:  logger.Named("extract"),
	}
}

// Resolve returns at least one record for page. A failing source is logged
// and contributes nothing; it never fails the whole page.
func (r *Resolver) Resolve(page *crawler.Page) []crawler.ProductRecord {
	base := crawler.NewProductRecord(page.URL)
	title := ""
	for _, src := range r.sources {
		partial, err := r.try(src, page)
		if err != nil {
			r.fail(src.Name(), page, err)
			continue
		}
		for _, f := range crawler.AllFields {
			if v, ok := partial[f]; ok && !base.Resolved(f) {
				base.Set(f, v)
			}
		}
		if v, ok := partial[fieldTitle]; ok && title == "" {
			title = v
		}
	}
	if !base.Resolved(crawler.FieldName) && title != "" {
		base.Name = brandedName(base.Brand, title)
	}

	variants, err := parseVariants(page, r.profile)
	if err != nil {
		r.fail("variants", page, err)
		variants = nil
	}
	if len(variants) == 0 {
		return []crawler.ProductRecord{r.single(page, base)}
	}
	out := make([]crawler.ProductRecord, 0, len(variants))
	for _, v := range variants {
		out = append(out, v.apply(base))
	}
	return out
}

func (r *Resolver) try(src Extractor, page *crawler.Page) (partial Partial, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return src.TryResolve(page)
}

func (r *Resolver) fail(source string, page *crawler.Page, err error) {
	r.logger.Warn("extraction source failed",
		zap.String("source", source),
		zap.String("url", page.URL),
		zap.Error(err),
	)
	metrics.ObserveExtractorFailure(source)
}

// single builds the record of a product without a variant list, priced from
// the displayed regular and sale prices.
func (r *Resolver) single(page *crawler.Page, base crawler.ProductRecord) crawler.ProductRecord {
	rec := base
	rec.Bundle = crawler.BundleSingle
	regular := displayedPrice(page, r.profile.RegularPrice)
	sale := displayedPrice(page, r.profile.SalePrice)
	switch {
	case regular != "" && sale != "":
		rec.NonMemberPrice = regular
		rec.MemberPrice = sale
	case regular != "":
		rec.NonMemberPrice = regular
	case sale != "":
		rec.NonMemberPrice = sale
	}
	return rec
}

func displayedPrice(page *crawler.Page, selector string) string {
	if selector == "" {
		return ""
	}
	v := strings.Join(strings.Fields(page.Text(selector)), " ")
	if v == crawler.Unavailable {
		return ""
	}
	return v
}

// brandedName prefixes title with brand unless it already mentions it.
func brandedName(brand, title string) string {
	if brand == "" || brand == crawler.Unavailable {
		return title
	}
	if strings.Contains(strings.ToLower(title), strings.ToLower(brand)) {
		return title
	}
	return brand + " " + title
}
