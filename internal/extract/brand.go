package extract

import (
	"strings"

	"github.com/boqlabs/catalog-crawler/internal/catalog"
	"github.com/boqlabs/catalog-crawler/internal/page"
)

// UnknownBrand is the sentinel used when no candidate survives the chain.
const UnknownBrand = "Unknown Brand"

// headingBoilerplate is stripped from h1 text before it is considered a
// brand name ("Collections by Vitra" -> "Vitra").
var headingBoilerplate = []string{
	"Collections by",
	"Products by",
	"Collections",
	"Products",
}

// genericCrumbs never name a brand on their own.
var genericCrumbs = map[string]struct{}{
	"home":        {},
	"brands":      {},
	"products":    {},
	"collections": {},
}

var breadcrumbSelectors = []string{
	".breadcrumb-item",
	`[class*="breadcrumb"] li`,
	".breadcrumbs a",
}

var logoSelectors = []string{
	".logo img",
	".brand-logo img",
	"header .site-logo img",
	"header img",
}

// Brand extracts brand name and logo from a landing page. Pure function of
// the page: candidates are tried in priority order and the first one with
// length >= 2 that is not a generic placeholder wins.
func Brand(doc *page.Document) catalog.BrandInfo {
	name := brandFromHeading(doc)
	if !brandUsable(name) {
		name = brandFromBreadcrumbs(doc)
	}
	if !brandUsable(name) {
		name = brandFromTitle(doc)
	}
	if !brandUsable(name) {
		name = UnknownBrand
	}
	return catalog.BrandInfo{
		Name:    name,
		LogoURL: brandLogo(doc),
	}
}

func brandUsable(name string) bool {
	return len(name) >= 2 && strings.ToLower(name) != "brands"
}

func brandFromHeading(doc *page.Document) string {
	text := doc.Text("h1")
	for _, b := range headingBoilerplate {
		text = strings.ReplaceAll(text, b, "")
	}
	return strings.TrimSpace(text)
}

func brandFromBreadcrumbs(doc *page.Document) string {
	for _, sel := range breadcrumbSelectors {
		crumbs := doc.AllText(sel)
		for i := len(crumbs) - 1; i >= 0; i-- {
			crumb := strings.TrimSpace(crumbs[i])
			if crumb == "" {
				continue
			}
			if _, generic := genericCrumbs[strings.ToLower(crumb)]; generic {
				continue
			}
			return crumb
		}
	}
	return ""
}

// brandFromTitle takes the title segment before the first separator and
// strips site-name noise ("Aeron Chairs | Shop - Herman Miller" -> "Aeron Chairs").
func brandFromTitle(doc *page.Document) string {
	title := doc.Title()
	if title == "" {
		return ""
	}
	segment := title
	if i := strings.IndexAny(segment, "|"); i >= 0 {
		segment = segment[:i]
	}
	if i := strings.Index(segment, " - "); i >= 0 {
		segment = segment[:i]
	}
	return strings.TrimSpace(segment)
}

func brandLogo(doc *page.Document) string {
	for _, sel := range logoSelectors {
		if src := doc.Attr(sel, "src"); src != "" {
			return doc.Resolve(src)
		}
	}
	// Fall back to any image whose alt names a logo.
	var logo string
	doc.Each("img", func(n page.Node) {
		if logo != "" {
			return
		}
		if strings.Contains(strings.ToLower(n.Attr("alt")), "logo") {
			if src := n.Attr("src"); src != "" {
				logo = n.Resolve(src)
			}
		}
	})
	return logo
}
