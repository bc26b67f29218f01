package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

const productURL = "https://shop.test/products/crankshaft-ipa"

const ldProduct = `<script type="application/ld+json">
{
  "@context": "http://schema.org/",
  "@type": "Product",
  "@id": "https://shop.test/products/crankshaft-ipa#product",
  "name": "Bentspoke Crankshaft IPA",
  "sku": "CRANK-1",
  "description": "Hazy and bitter.",
  "brand": {"@type": "Brand", "name": "Bentspoke"},
  "image": ["https://cdn.test/crank.jpg", "https://cdn.test/crank-2.jpg"],
  "offers": [{"@type": "Offer", "price": "23.99", "availability": "http://schema.org/InStock"}]
}
</script>`

const trackingScript = `<script>
  var _learnq = _learnq || [];
  var item = {
    Name: "Crankshaft IPA",
    ProductID: 884422,
    Categories: ["IPA", "Pale Ale",],
    ImageURL: "https://cdn.test/tracking.jpg",
  };
  klaviyo.push(["track", "Viewed Product", item]);
</script>`

const specTable = `<div class="product__accordion"><table>
  <tr><td>Brand Name</td><td>Someone Else</td></tr>
  <tr><td>Alcohol Content</td><td>7.2%</td></tr>
  <tr><td>Size</td><td>375ml</td></tr>
  <tr><td>Country</td><td>Australia</td></tr>
  <tr><td>Region</td><td></td></tr>
  <tr><td>Type</td><td>Can</td><td>extra cell</td></tr>
  <tr><td>Bar code</td><td>9300000000001</td></tr>
</table></div>`

const domBlock = `<div class="product__title"><h1>Crankshaft IPA</h1></div>
<div class="product__description rte">Visible description.</div>
<div class="product__media"><img src="//cdn.test/dom.jpg"></div>
<div class="jdgm-prev-badge" data-number-of-reviews="12" data-average-rating="4.50"></div>
<button class="product-form__submit" disabled>Sold out</button>`

const twoVariants = `<variant-radios><script type="application/json">[
  {"sku": "CRANK-4", "title": "4 Pack", "available": true, "price": 2399, "compare_at_price": null},
  {"sku": "", "title": "Case of 16", "available": false, "price": 7999, "compare_at_price": 8999}
]</script></variant-radios>`

const displayedPrices = `<div class="price">
  <span class="price-item price-item--regular"> $25.00 </span>
  <span class="price-item price-item--sale">$21.00</span>
</div>`

func html(parts ...string) string {
	return "<html><head></head><body>" + strings.Join(parts, "\n") + "</body></html>"
}

func mustPage(t *testing.T, rawURL string, parts ...string) *crawler.Page {
	t.Helper()
	page, err := crawler.NewPage(rawURL, []byte(html(parts...)))
	require.NoError(t, err)
	return page
}
