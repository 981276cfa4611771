package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var testCtx = ProductContext{Brand: "Acme", MainCategory: "Chairs", SubCategory: "Office Chairs"}

func TestProducts_StructuredContainers(t *testing.T) {
	t.Parallel()

	html := `<ul>
		<li class="product">
			<h2 class="woocommerce-loop-product__title">Aeron Chair</h2>
			<img src="/media/aeron-front.jpg">
			<a href="/product/aeron/">View</a>
		</li>
		<li class="product">
			<h2>Embody Chair</h2>
			<img src="/media/embody-side.jpg">
			<a href="/product/embody/">View</a>
		</li>
		<li class="product">
			<h2>Nav Decoy</h2>
			<img src="/assets/logo.png">
			<a href="/product/decoy/">View</a>
		</li>
	</ul>`
	doc := mustParse(t, html, "https://example.com/")

	recs, seen := Products(doc, testCtx)
	require.Len(t, recs, 2)

	first := recs[0]
	require.Equal(t, "Aeron Chair", first.Name)
	require.Equal(t, "Aeron Chair", first.Description)
	require.Equal(t, "Acme", first.Brand)
	require.Equal(t, "Chairs", first.MainCategory)
	require.Equal(t, "Office Chairs", first.SubCategory)
	require.Equal(t, "https://example.com/media/aeron-front.jpg", first.ImageURL)
	require.Equal(t, "https://example.com/product/aeron/", first.ProductURL)

	require.True(t, seen.Has("Aeron Chair"))
	require.True(t, seen.Has("https://example.com/product/embody/"))
	// The logo card was rejected, so its title was never claimed.
	require.False(t, seen.Has("Nav Decoy"))
}

func TestProducts_FirstContainerSelectorWins(t *testing.T) {
	t.Parallel()

	// li.product outranks .product-card; the card must not contribute.
	html := `
		<li class="product">
			<h2>Chair One</h2><img src="/media/chair-one.jpg"><a href="/p/1">go</a>
		</li>
		<div class="product-card">
			<h2>Card Chair</h2><img src="/media/card-chair.jpg"><a href="/p/2">go</a>
		</div>`
	doc := mustParse(t, html, "https://example.com/")

	recs, _ := Products(doc, testCtx)
	names := make([]string, 0, len(recs))
	for _, r := range recs {
		names = append(names, r.Name)
	}
	require.Contains(t, names, "Chair One")
	// Strategy B may still pick the card up since A found <5 products, but
	// Strategy A itself only saw li.product containers.
	require.Equal(t, "Chair One", recs[0].Name)
}

func TestProducts_GenericBlocksGatedByStructuredCount(t *testing.T) {
	t.Parallel()

	// Five structured products suppress the generic scan entirely.
	html := `<ul>
		<li class="product"><h2>P1</h2><img src="/media/p1-photo.jpg"><a href="/p/1">v</a></li>
		<li class="product"><h2>P2</h2><img src="/media/p2-photo.jpg"><a href="/p/2">v</a></li>
		<li class="product"><h2>P3</h2><img src="/media/p3-photo.jpg"><a href="/p/3">v</a></li>
		<li class="product"><h2>P4</h2><img src="/media/p4-photo.jpg"><a href="/p/4">v</a></li>
		<li class="product"><h2>P5</h2><img src="/media/p5-photo.jpg"><a href="/p/5">v</a></li>
	</ul>
	<div class="promo"><h3>Extra Item</h3><img src="/media/extra-photo.jpg"><a href="/p/extra">v</a></div>`
	doc := mustParse(t, html, "https://example.com/")

	recs, _ := Products(doc, testCtx)
	require.Len(t, recs, 5)
	for _, r := range recs {
		require.NotEqual(t, "Extra Item", r.Name)
	}
}

func TestProducts_GenericBlocksRunWhenStructuredSparse(t *testing.T) {
	t.Parallel()

	html := `<div class="showcase">
		<h3>Lounge Set</h3>
		<img src="/media/lounge-set.jpg">
		<a href="/products/lounge-set">Discover</a>
	</div>`
	doc := mustParse(t, html, "https://example.com/")

	recs, _ := Products(doc, testCtx)
	require.Len(t, recs, 1)
	require.Equal(t, "Lounge Set", recs[0].Name)
	require.Equal(t, "https://example.com/products/lounge-set", recs[0].ProductURL)
}

func TestProducts_GenericAnchorTitleLengthGate(t *testing.T) {
	t.Parallel()

	// No heading; anchor text "More" is too short to serve as a title.
	html := `<div><img src="/media/mystery-item.jpg"><a href="/p/9">More</a></div>`
	doc := mustParse(t, html, "https://example.com/")

	recs, _ := Products(doc, testCtx)
	require.Empty(t, recs)
}

func TestProducts_StructuredDataProduct(t *testing.T) {
	t.Parallel()

	html := `<script type="application/ld+json">
	{
		"@context": "https://schema.org",
		"@type": "Product",
		"name": "Wishbone Chair",
		"description": "An icon of Danish design.",
		"image": ["https://cdn.example.com/media/wishbone.jpg"],
		"url": "/products/wishbone",
		"offers": {"@type": "Offer", "price": "545.00", "priceCurrency": "EUR"}
	}
	</script>`
	doc := mustParse(t, html, "https://example.com/")

	recs, _ := Products(doc, testCtx)
	require.Len(t, recs, 1)
	rec := recs[0]
	require.Equal(t, "Wishbone Chair", rec.Name)
	require.Equal(t, "An icon of Danish design.", rec.Description)
	require.Equal(t, "https://cdn.example.com/media/wishbone.jpg", rec.ImageURL)
	require.Equal(t, "https://example.com/products/wishbone", rec.ProductURL)
	require.InDelta(t, 545.0, rec.Price, 0.001)
}

func TestProducts_StructuredDataItemList(t *testing.T) {
	t.Parallel()

	html := `<script type="application/ld+json">
	{
		"@type": "ItemList",
		"itemListElement": [
			{"@type": "ListItem", "position": 1,
			 "item": {"@type": "Product", "name": "Panton Chair", "url": "/p/panton",
			          "offers": {"price": 310.5}}},
			{"@type": "ListItem", "position": 2,
			 "item": {"@type": "Product", "name": "", "url": "/p/unnamed"}},
			{"@type": "ListItem", "position": 3}
		]
	}
	</script>`
	doc := mustParse(t, html, "https://example.com/")

	recs, _ := Products(doc, testCtx)
	require.Len(t, recs, 1)
	require.Equal(t, "Panton Chair", recs[0].Name)
	require.InDelta(t, 310.5, recs[0].Price, 0.001)
}

func TestProducts_StructuredDataMalformedBlockSkipped(t *testing.T) {
	t.Parallel()

	html := `<script type="application/ld+json">{not json</script>
	<script type="application/ld+json">
	[{"@type": "Product", "name": "Valid One", "url": "/p/valid"}]
	</script>`
	doc := mustParse(t, html, "https://example.com/")

	recs, _ := Products(doc, testCtx)
	require.Len(t, recs, 1)
	require.Equal(t, "Valid One", recs[0].Name)
}

func TestContainerImage_SrcsetFallback(t *testing.T) {
	t.Parallel()

	html := `<li class="product">
		<h2>Srcset Chair</h2>
		<img srcset="/media/chair-400.jpg 400w, /media/chair-800.jpg 800w">
		<a href="/p/srcset">v</a>
	</li>`
	doc := mustParse(t, html, "https://example.com/")

	recs, _ := Products(doc, testCtx)
	require.Len(t, recs, 1)
	require.Equal(t, "https://example.com/media/chair-400.jpg", recs[0].ImageURL)
}

func TestSeenSet_CaseInsensitive(t *testing.T) {
	t.Parallel()

	s := make(SeenSet)
	s.Mark("Aeron Chair")
	require.True(t, s.Has("aeron chair"))
	require.True(t, s.Has("AERON CHAIR"))
	require.False(t, s.Has("Embody"))
}
