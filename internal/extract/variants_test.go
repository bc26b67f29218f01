package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

func TestClassifyBundle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		title string
		want  string
	}{
		{"6 Pack", "Pack (6)"},
		{"Case of 24", "Case (24)"},
		{"30", "Case (30)"},
		{"4", "Pack (4)"},
		{"12", "Case (12)"},
		{"Case", "Case (24)"},
		{"Pack", "Pack (6)"},
		{"Half case 12 pack", "Case (12)"},
		{"6pack", "Pack (6)"},
		{"Magnum", "Magnum"},
		{"", crawler.Unavailable},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyBundle(tt.title))
		})
	}
}

func TestVariantApplyPrices(t *testing.T) {
	t.Parallel()

	base := crawler.NewProductRecord(productURL)
	base.ProductID = "BASE"

	equal := 1500.0
	rec := Variant{Title: "Single", Available: true, Price: 1500, CompareAtPrice: &equal}.apply(base)
	assert.Equal(t, "BASE", rec.ProductID)
	assert.Equal(t, "$15.00", rec.NonMemberPrice)
	assert.Equal(t, crawler.Unavailable, rec.MemberPrice, "compare-at equal to price is not a discount")

	lower := 1000.0
	rec = Variant{SKU: "V1", Title: "24 Case", Price: 1500, CompareAtPrice: &lower}.apply(base)
	assert.Equal(t, "V1", rec.ProductID)
	assert.Equal(t, crawler.StockOut, rec.Stock)
	assert.Equal(t, "$15.00", rec.NonMemberPrice)
	assert.Equal(t, crawler.Unavailable, rec.MemberPrice)
}
