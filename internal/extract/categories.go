package extract

import (
	"net/url"
	"strings"

	"github.com/boqlabs/catalog-crawler/internal/catalog"
	"github.com/boqlabs/catalog-crawler/internal/page"
)

// Top-level navigation item selectors, tried in order. The first selector
// that yields any descriptors wins; later ones are not merged in.
var navItemSelectors = []string{
	"nav ul.menu > li",
	"header nav > ul > li",
	".main-menu > li",
	"ul.navbar-nav > li",
	"nav > ul > li",
}

// Nested submenu selectors searched inside a top-level item for children.
var submenuSelectors = []string{
	".sub-menu a",
	".dropdown-menu a",
	"ul a",
}

// Product-signal keywords admitting an anchor as a category candidate.
var categoryKeywords = []string{
	"product",
	"shop",
	"collection",
	"category",
	"catalog",
	"store",
}

// Exclusion keywords for legal/social/account pages.
var categoryExclusions = []string{
	"about", "contact", "login", "register", "account", "cart", "checkout",
	"wishlist", "privacy", "terms", "policy", "blog", "news", "career",
	"faq", "help", "support", "search",
	"facebook", "instagram", "twitter", "linkedin", "youtube", "pinterest",
}

// Conventional listing paths synthesized when nothing else is found.
var conventionalPaths = []string{
	"/products/",
	"/shop/",
	"/collections/",
	"/catalog/",
	"/store/",
	"/product-category/",
}

// Categories discovers the site's category hierarchy from a landing page:
// hierarchical menu first, then a flat keyword scan over all anchors, then
// a fixed list of conventional paths.
func Categories(doc *page.Document) []catalog.CategoryDescriptor {
	if out := hierarchicalMenu(doc); len(out) > 0 {
		return out
	}
	if out := flatAnchorScan(doc); len(out) > 0 {
		return out
	}
	return conventionalFallback(doc)
}

func hierarchicalMenu(doc *page.Document) []catalog.CategoryDescriptor {
	for _, sel := range navItemSelectors {
		var out []catalog.CategoryDescriptor
		doc.Each(sel, func(item page.Node) {
			out = append(out, descriptorsFromNavItem(item)...)
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func descriptorsFromNavItem(item page.Node) []catalog.CategoryDescriptor {
	parent, ok := item.First("a")
	if !ok {
		return nil
	}
	parentText := parent.Text()
	parentURL := parent.Resolve(parent.Attr("href"))
	if parentText == "" {
		return nil
	}

	children := navChildren(item, parentURL)
	if len(children) == 0 {
		if parentURL == "" {
			return nil
		}
		return []catalog.CategoryDescriptor{{
			URL:          parentURL,
			Title:        parentText,
			MainCategory: parentText,
			SubCategory:  parentText,
		}}
	}

	out := make([]catalog.CategoryDescriptor, 0, len(children))
	for _, child := range children {
		out = append(out, catalog.CategoryDescriptor{
			URL:          child.url,
			Title:        child.text,
			MainCategory: parentText,
			SubCategory:  child.text,
		})
	}
	return out
}

type childLink struct {
	url  string
	text string
}

func navChildren(item page.Node, parentURL string) []childLink {
	for _, sel := range submenuSelectors {
		var children []childLink
		seen := make(map[string]struct{})
		item.Each(sel, func(a page.Node) {
			text := a.Text()
			href := a.Resolve(a.Attr("href"))
			if text == "" || href == "" || href == parentURL {
				return
			}
			if _, dup := seen[href]; dup {
				return
			}
			seen[href] = struct{}{}
			children = append(children, childLink{url: href, text: text})
		})
		if len(children) > 0 {
			return children
		}
	}
	return nil
}

func flatAnchorScan(doc *page.Document) []catalog.CategoryDescriptor {
	base := strings.TrimRight(doc.BaseURL().String(), "/")
	seen := make(map[string]struct{})
	var out []catalog.CategoryDescriptor

	doc.Each("a", func(a page.Node) {
		href := a.Resolve(a.Attr("href"))
		if href == "" || strings.TrimRight(href, "/") == base {
			return
		}
		text := a.Text()
		probe := strings.ToLower(href + " " + text)
		if !containsAny(probe, categoryKeywords) || containsAny(probe, categoryExclusions) {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}

		label := text
		if label == "" {
			label = "Products"
		}
		out = append(out, catalog.CategoryDescriptor{
			URL:          href,
			Title:        label,
			MainCategory: label,
			SubCategory:  label,
		})
	})
	return out
}

func conventionalFallback(doc *page.Document) []catalog.CategoryDescriptor {
	out := make([]catalog.CategoryDescriptor, 0, len(conventionalPaths))
	for _, path := range conventionalPaths {
		u := doc.Resolve(path)
		if u == "" {
			continue
		}
		label := humanizeSegment(strings.Trim(path, "/"))
		out = append(out, catalog.CategoryDescriptor{
			URL:          u,
			Title:        label,
			MainCategory: label,
			SubCategory:  label,
		})
	}
	return out
}

// Subcategories performs second-level discovery scoped to a category's own
// page. The child-of-parent admission is deliberately approximate: a URL
// prefixed by the category URL, or one sharing the category's slug, is
// admitted even though that can let through unrelated links.
func Subcategories(doc *page.Document, parent catalog.CategoryDescriptor) []catalog.CategoryDescriptor {
	slug := lastPathSegment(parent.URL)
	seen := make(map[string]struct{})
	var out []catalog.CategoryDescriptor

	doc.Each("a", func(a page.Node) {
		href := a.Resolve(a.Attr("href"))
		text := a.Text()
		if href == "" || text == "" || href == parent.URL {
			return
		}
		// Pagination links share the parent prefix but are continuations,
		// not subcategories; they are followed by the pagination pass.
		if strings.Contains(href, "page=") || strings.Contains(href, "/page/") {
			return
		}
		if !strings.HasPrefix(href, parent.URL) && (slug == "" || !strings.Contains(href, slug)) {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		out = append(out, catalog.CategoryDescriptor{
			URL:          href,
			Title:        text,
			MainCategory: parent.MainCategory,
			SubCategory:  text,
		})
	})
	return out
}

// Listing prefixes skipped before reading (main, sub) labels from a path.
var listingPrefixes = map[string]struct{}{
	"product-category": {},
	"collections":      {},
	"collection":       {},
	"category":         {},
	"categories":       {},
	"shop":             {},
	"products":         {},
	"store":            {},
	"c":                {},
}

// CategoryLabelsFromPath reads (mainCategory, subCategory) from a URL whose
// path follows a .../<main>/<sub>/ shape. The labels override menu-derived
// ones only when both segments are present and differ.
func CategoryLabelsFromPath(rawURL string) (string, string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", false
	}
	segments := nonEmptySegments(u.Path)

	rest := segments
	found := false
	for i, seg := range segments {
		if _, ok := listingPrefixes[strings.ToLower(seg)]; ok {
			rest = segments[i+1:]
			found = true
			break
		}
	}
	if !found && len(segments) != 2 {
		return "", "", false
	}
	if len(rest) < 2 || strings.EqualFold(rest[0], rest[1]) {
		return "", "", false
	}
	return humanizeSegment(rest[0]), humanizeSegment(rest[1]), true
}

func nonEmptySegments(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// humanizeSegment turns "executive-chairs" into "Executive Chairs".
func humanizeSegment(seg string) string {
	seg = strings.NewReplacer("-", " ", "_", " ").Replace(seg)
	words := strings.Fields(seg)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func lastPathSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := nonEmptySegments(u.Path)
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
