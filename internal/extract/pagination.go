package extract

import "github.com/boqlabs/catalog-crawler/internal/page"

// maxPaginationLinks bounds the links returned from any single page.
const maxPaginationLinks = 10

// Pagination-pattern selectors, tried in order.
var paginationSelectors = []string{
	".pagination a",
	"nav.pagination a",
	".page-numbers a",
	`a[rel="next"]`,
	`a[href*="page="]`,
	`a[href*="/page/"]`,
}

// Pagination returns absolute same-origin continuation links found on the
// page, deduplicated, capped at maxPaginationLinks.
func Pagination(doc *page.Document) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, sel := range paginationSelectors {
		doc.Each(sel, func(a page.Node) {
			if len(out) >= maxPaginationLinks {
				return
			}
			href := a.Resolve(a.Attr("href"))
			if href == "" || !doc.SameOrigin(href) {
				return
			}
			if _, dup := seen[href]; dup {
				return
			}
			seen[href] = struct{}{}
			out = append(out, href)
		})
		if len(out) >= maxPaginationLinks {
			break
		}
	}
	return out
}
