package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

type stubExtractor struct {
	name    string
	partial Partial
	err     error
	panics  bool
}

func (s stubExtractor) Name() string { return s.name }

func (s stubExtractor) TryResolve(*crawler.Page) (Partial, error) {
	if s.panics {
		panic("boom")
	}
	return s.partial, s.err
}

func TestResolveExpandsVariants(t *testing.T) {
	t.Parallel()

	page := mustPage(t, productURL, ldProduct, trackingScript, specTable, domBlock, twoVariants)
	records := NewResolver(crawler.DefaultSiteProfile(), nil).Resolve(page)
	require.Len(t, records, 2)

	for _, rec := range records {
		assert.Equal(t, "Bentspoke Crankshaft IPA", rec.Name)
		assert.Equal(t, "Bentspoke", rec.Brand, "structured data wins over the table")
		assert.Equal(t, "Hazy and bitter.", rec.Description)
		assert.Equal(t, "IPA, Pale Ale", rec.Style)
		assert.Equal(t, "7.2%", rec.ABV)
		assert.Equal(t, "https://cdn.test/crank.jpg", rec.ImageURL)
		assert.Equal(t, productURL, rec.ProductURL)
		assert.Equal(t, "12", rec.Review)
		assert.Equal(t, "4.50", rec.Rating)
		assert.Equal(t, "375ml", rec.Size)
		assert.Equal(t, "Australia", rec.Country)
		assert.Equal(t, crawler.Unavailable, rec.Region)
		assert.Equal(t, crawler.Unavailable, rec.Type)
		assert.Equal(t, "9300000000001", rec.Barcode)
		assert.Equal(t, crawler.Unavailable, rec.PromoPrice)
		assert.Equal(t, crawler.Unavailable, rec.DiscountPrice)
	}

	assert.Equal(t, "CRANK-4", records[0].ProductID)
	assert.Equal(t, "Pack (4)", records[0].Bundle)
	assert.Equal(t, crawler.StockIn, records[0].Stock)
	assert.Equal(t, "$23.99", records[0].NonMemberPrice)
	assert.Equal(t, crawler.Unavailable, records[0].MemberPrice)

	assert.Equal(t, "CRANK-1", records[1].ProductID, "empty variant sku falls back to the base id")
	assert.Equal(t, "Case (16)", records[1].Bundle)
	assert.Equal(t, crawler.StockOut, records[1].Stock)
	assert.Equal(t, "$89.99", records[1].NonMemberPrice)
	assert.Equal(t, "$79.99", records[1].MemberPrice)
}

func TestResolveSingleProductPrices(t *testing.T) {
	t.Parallel()

	profile := crawler.DefaultSiteProfile()

	t.Run("RegularAndSale", func(t *testing.T) {
		records := NewResolver(profile, nil).Resolve(mustPage(t, productURL, ldProduct, displayedPrices))
		require.Len(t, records, 1)
		assert.Equal(t, crawler.BundleSingle, records[0].Bundle)
		assert.Equal(t, "$25.00", records[0].NonMemberPrice)
		assert.Equal(t, "$21.00", records[0].MemberPrice)
	})

	t.Run("RegularOnly", func(t *testing.T) {
		page := mustPage(t, productURL, `<span class="price-item--regular">$30.00</span>`)
		records := NewResolver(profile, nil).Resolve(page)
		require.Len(t, records, 1)
		assert.Equal(t, "$30.00", records[0].NonMemberPrice)
		assert.Equal(t, crawler.Unavailable, records[0].MemberPrice)
	})

	t.Run("SaleOnly", func(t *testing.T) {
		page := mustPage(t, productURL, `<span class="price-item--sale">$18.00</span>`)
		records := NewResolver(profile, nil).Resolve(page)
		require.Len(t, records, 1)
		assert.Equal(t, "$18.00", records[0].NonMemberPrice)
		assert.Equal(t, crawler.Unavailable, records[0].MemberPrice)
	})

	t.Run("NoDisplayedPriceKeepsStructuredPrice", func(t *testing.T) {
		records := NewResolver(profile, nil).Resolve(mustPage(t, productURL, ldProduct))
		require.Len(t, records, 1)
		assert.Equal(t, "$23.99", records[0].NonMemberPrice)
		assert.Equal(t, crawler.StockIn, records[0].Stock)
	})

	t.Run("MalformedVariantList", func(t *testing.T) {
		page := mustPage(t, productURL, ldProduct, displayedPrices,
			`<variant-radios><script type="application/json">[{"sku": </script></variant-radios>`)
		records := NewResolver(profile, nil).Resolve(page)
		require.Len(t, records, 1)
		assert.Equal(t, crawler.BundleSingle, records[0].Bundle)
		assert.Equal(t, "$25.00", records[0].NonMemberPrice)
	})

	t.Run("EmptyVariantList", func(t *testing.T) {
		page := mustPage(t, productURL, ldProduct,
			`<variant-radios><script type="application/json">[]</script></variant-radios>`)
		records := NewResolver(profile, nil).Resolve(page)
		require.Len(t, records, 1)
		assert.Equal(t, crawler.BundleSingle, records[0].Bundle)
	})
}

func TestResolveEmptyPageYieldsUnavailableRecord(t *testing.T) {
	t.Parallel()

	records := NewResolver(crawler.DefaultSiteProfile(), nil).Resolve(mustPage(t, productURL))
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, productURL, rec.ProductURL)
	assert.Equal(t, crawler.BundleSingle, rec.Bundle)
	for _, f := range crawler.AllFields {
		if f == crawler.FieldProductURL || f == crawler.FieldBundle {
			continue
		}
		assert.Equal(t, crawler.Unavailable, rec.Get(f), string(f))
	}
}

func TestResolveDegradesFailingSources(t *testing.T) {
	t.Parallel()

	broken := `<script type="application/ld+json">{"@type": "Product", "name": </script>`
	page := mustPage(t, productURL, broken, trackingScript, specTable, domBlock)
	records := NewResolver(crawler.DefaultSiteProfile(), nil).Resolve(page)
	require.Len(t, records, 1)
	rec := records[0]

	assert.Equal(t, "884422", rec.ProductID)
	assert.Equal(t, "Someone Else", rec.Brand)
	assert.Equal(t, "Someone Else Crankshaft IPA", rec.Name)
	assert.Equal(t, "https://cdn.test/tracking.jpg", rec.ImageURL)
	assert.Equal(t, "Visible description.", rec.Description)
	assert.Equal(t, crawler.StockOut, rec.Stock)
}

func TestResolveIsolatesErrorsAndPanics(t *testing.T) {
	t.Parallel()

	resolver := NewResolverWithSources(crawler.DefaultSiteProfile(), nil,
		stubExtractor{name: "errors", err: errors.New("bad markup"), partial: Partial{crawler.FieldBrand: "ignored"}},
		stubExtractor{name: "panics", panics: true},
		stubExtractor{name: "first", partial: Partial{crawler.FieldBrand: "Winner", crawler.FieldABV: "5%"}},
		stubExtractor{name: "second", partial: Partial{crawler.FieldBrand: "Loser", crawler.FieldStyle: "Lager"}},
	)
	records := resolver.Resolve(mustPage(t, productURL))
	require.Len(t, records, 1)
	assert.Equal(t, "Winner", records[0].Brand)
	assert.Equal(t, "5%", records[0].ABV)
	assert.Equal(t, "Lager", records[0].Style)
}

func TestBrandedName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Stone & Wood Pacific Ale", brandedName("Stone & Wood", "Pacific Ale"))
	assert.Equal(t, "STONE & WOOD Pacific Ale", brandedName("Stone & Wood", "STONE & WOOD Pacific Ale"))
	assert.Equal(t, "Pacific Ale", brandedName(crawler.Unavailable, "Pacific Ale"))
}
