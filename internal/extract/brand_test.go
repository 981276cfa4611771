package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boqlabs/catalog-crawler/internal/page"
)

func mustParse(t *testing.T, html, base string) *page.Document {
	t.Helper()
	doc, err := page.Parse([]byte(html), base)
	require.NoError(t, err)
	return doc
}

func TestBrand_FromHeading(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `<h1>Vitra</h1>`, "https://vitra.example.com/")
	require.Equal(t, "Vitra", Brand(doc).Name)
}

func TestBrand_HeadingBoilerplateStripped(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `<h1>Collections by Herman Miller</h1>`, "https://example.com/")
	require.Equal(t, "Herman Miller", Brand(doc).Name)
}

func TestBrand_HeadingOnlyBoilerplateFallsThrough(t *testing.T) {
	t.Parallel()

	html := `<h1>Products</h1>
		<ul class="breadcrumbs"><a>Home</a><a>Brands</a><a>Knoll</a></ul>`
	doc := mustParse(t, html, "https://example.com/")
	require.Equal(t, "Knoll", Brand(doc).Name)
}

func TestBrand_BreadcrumbsSkipGenericFromEnd(t *testing.T) {
	t.Parallel()

	html := `<ol><li class="breadcrumb-item">Home</li>
		<li class="breadcrumb-item">Steelcase</li>
		<li class="breadcrumb-item">Products</li></ol>`
	doc := mustParse(t, html, "https://example.com/")
	require.Equal(t, "Steelcase", Brand(doc).Name)
}

func TestBrand_TitleBeforeSeparator(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `<head><title>Fritz Hansen | Official Store</title></head>`, "https://example.com/")
	require.Equal(t, "Fritz Hansen", Brand(doc).Name)

	doc = mustParse(t, `<head><title>Muuto - Scandinavian Design</title></head>`, "https://example.com/")
	require.Equal(t, "Muuto", Brand(doc).Name)
}

func TestBrand_UnknownWhenNothingUsable(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `<body><p>nothing here</p></body>`, "https://example.com/")
	require.Equal(t, UnknownBrand, Brand(doc).Name)
}

func TestBrand_SingleCharCandidateRejected(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `<h1>X</h1><head><title>Cassina</title></head>`, "https://example.com/")
	require.Equal(t, "Cassina", Brand(doc).Name)
}

func TestBrand_LogoFromSelector(t *testing.T) {
	t.Parallel()

	html := `<h1>Artek</h1><div class="logo"><img src="/assets/artek.svg"></div>`
	doc := mustParse(t, html, "https://example.com/")
	require.Equal(t, "https://example.com/assets/artek.svg", Brand(doc).LogoURL)
}

func TestBrand_LogoFromAltFallback(t *testing.T) {
	t.Parallel()

	html := `<h1>Artek</h1><img alt="Artek Logo" src="/img/mark.png">`
	doc := mustParse(t, html, "https://example.com/")
	require.Equal(t, "https://example.com/img/mark.png", Brand(doc).LogoURL)
}
