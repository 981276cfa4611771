package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPagination_BasicLinks(t *testing.T) {
	t.Parallel()

	html := `<div class="pagination">
		<a href="?page=2">2</a>
		<a href="?page=3">3</a>
		<a href="?page=2">2 again</a>
		<a href="https://other.com/?page=2">offsite</a>
	</div>`
	doc := mustParse(t, html, "https://example.com/shop/chairs/")

	links := Pagination(doc)
	require.Equal(t, []string{
		"https://example.com/shop/chairs/?page=2",
		"https://example.com/shop/chairs/?page=3",
	}, links)
}

func TestPagination_CapAtTen(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString(`<div class="pagination">`)
	for i := 2; i <= 20; i++ {
		fmt.Fprintf(&b, `<a href="?page=%d">%d</a>`, i, i)
	}
	b.WriteString(`</div>`)
	doc := mustParse(t, b.String(), "https://example.com/shop/")

	links := Pagination(doc)
	require.Len(t, links, 10)
}

func TestPagination_RelNextFallback(t *testing.T) {
	t.Parallel()

	html := `<a rel="next" href="/shop/page/2/">Next</a>`
	doc := mustParse(t, html, "https://example.com/shop/")

	links := Pagination(doc)
	require.Equal(t, []string{"https://example.com/shop/page/2/"}, links)
}

func TestPagination_NoLinks(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `<p>single page</p>`, "https://example.com/")
	require.Empty(t, Pagination(doc))
}
