package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/boqlabs/catalog-crawler/internal/catalog"
	"github.com/boqlabs/catalog-crawler/internal/page"
)

// structuredMinResults gates the generic block scan: when structured
// containers yield at least this many products the expensive scan is skipped.
const structuredMinResults = 5

// minAnchorTitleLen filters out "More"/"View" style anchor text when the
// generic scan falls back to link text for a title.
const minAnchorTitleLen = 5

// ProductContext carries the labels stamped onto every record from a page.
type ProductContext struct {
	Brand        string
	MainCategory string
	SubCategory  string
}

// SeenSet tracks lowercased titles and resolved URLs already claimed by an
// extraction pass.
type SeenSet map[string]struct{}

// Has reports whether key was already claimed (case-insensitive).
func (s SeenSet) Has(key string) bool {
	_, ok := s[strings.ToLower(key)]
	return ok
}

// Mark claims key (case-insensitive).
func (s SeenSet) Mark(key string) {
	s[strings.ToLower(key)] = struct{}{}
}

// Container selectors for common catalog-grid markup, most specific first.
var containerSelectors = []string{
	"li.product",
	".product-card",
	".product-item",
	".product-tile",
	".collection-item",
	"article.product",
	`[class*="product-card"]`,
	".grid-product",
}

// Title selectors tried inside a matched container before link text.
var titleSelectors = []string{
	".woocommerce-loop-product__title",
	".product-title",
	".product-name",
	".card-title",
	"h2",
	"h3",
	".title",
	".name",
}

// Products runs the three extraction strategies in fixed order and
// concatenates their output. A failing strategy contributes zero results;
// true duplicates are resolved by the orchestrator-level dedup.
func Products(doc *page.Document, pctx ProductContext) ([]catalog.ProductRecord, SeenSet) {
	seen := make(SeenSet)
	var out []catalog.ProductRecord

	structured, err := structuredContainers(doc, pctx, seen)
	if err == nil {
		out = append(out, structured...)
	}

	if len(structured) < structuredMinResults {
		generic, gerr := genericBlocks(doc, pctx, seen)
		if gerr == nil {
			out = append(out, generic...)
		}
	}

	// Structured data is higher-confidence than heuristics and cheap to
	// check, so it always runs.
	data, err := structuredData(doc, pctx)
	if err == nil {
		out = append(out, data...)
	}

	return out, seen
}

// structuredContainers is Strategy A: recognized catalog-grid markup.
// The first container selector with any matches wins.
func structuredContainers(doc *page.Document, pctx ProductContext, seen SeenSet) ([]catalog.ProductRecord, error) {
	var containers []page.Node
	for _, sel := range containerSelectors {
		doc.Each(sel, func(n page.Node) {
			containers = append(containers, n)
		})
		if len(containers) > 0 {
			break
		}
	}

	var out []catalog.ProductRecord
	for _, c := range containers {
		rec, ok := recordFromContainer(c, pctx, seen)
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func recordFromContainer(c page.Node, pctx ProductContext, seen SeenSet) (catalog.ProductRecord, bool) {
	title := containerTitle(c)
	if title == "" || seen.Has(title) {
		return catalog.ProductRecord{}, false
	}

	imageURL := c.Resolve(containerImage(c))
	if imageURL == "" || !IsValidProductImage(imageURL) {
		return catalog.ProductRecord{}, false
	}

	anchor, ok := c.First("a")
	if !ok {
		return catalog.ProductRecord{}, false
	}
	productURL := c.Resolve(anchor.Attr("href"))
	if productURL == "" {
		return catalog.ProductRecord{}, false
	}

	seen.Mark(title)
	seen.Mark(productURL)
	return catalog.ProductRecord{
		MainCategory: pctx.MainCategory,
		SubCategory:  pctx.SubCategory,
		Brand:        pctx.Brand,
		Name:         title,
		Description:  title,
		ImageURL:     imageURL,
		ProductURL:   productURL,
	}, true
}

func containerTitle(c page.Node) string {
	for _, sel := range titleSelectors {
		if n, ok := c.First(sel); ok {
			if t := n.Text(); t != "" {
				return t
			}
		}
	}
	if a, ok := c.First("a"); ok {
		return a.Text()
	}
	return ""
}

// containerImage prefers eager/lazy src attributes and falls back to the
// first URL token of a srcset.
func containerImage(c page.Node) string {
	img, ok := c.First("img")
	if !ok {
		return ""
	}
	for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
		if v := img.Attr(attr); v != "" {
			return v
		}
	}
	if srcset := img.Attr("srcset"); srcset != "" {
		fields := strings.Fields(srcset)
		if len(fields) > 0 {
			return strings.TrimSuffix(fields[0], ",")
		}
	}
	return ""
}

// genericBlocks is Strategy B: block-level elements holding both an image
// and an anchor. Only consulted when Strategy A found too few products.
func genericBlocks(doc *page.Document, pctx ProductContext, seen SeenSet) ([]catalog.ProductRecord, error) {
	var out []catalog.ProductRecord
	ownURLs := make(map[string]struct{})

	doc.Each("div, li, article, section", func(c page.Node) {
		if c.Count("img") == 0 || c.Count("a") == 0 {
			return
		}

		title := genericTitle(c)
		if title == "" || seen.Has(title) {
			return
		}

		imageURL := c.Resolve(containerImage(c))
		if imageURL == "" || !IsValidProductImage(imageURL) {
			return
		}

		anchor, _ := c.First("a")
		productURL := c.Resolve(anchor.Attr("href"))
		if productURL == "" {
			return
		}
		if _, dup := ownURLs[productURL]; dup {
			return
		}

		ownURLs[productURL] = struct{}{}
		seen.Mark(title)
		seen.Mark(productURL)
		out = append(out, catalog.ProductRecord{
			MainCategory: pctx.MainCategory,
			SubCategory:  pctx.SubCategory,
			Brand:        pctx.Brand,
			Name:         title,
			Description:  title,
			ImageURL:     imageURL,
			ProductURL:   productURL,
		})
	})
	return out, nil
}

func genericTitle(c page.Node) string {
	for _, sel := range []string{"h2", "h3", "h4", `[class*="title"]`, `[class*="name"]`} {
		if n, ok := c.First(sel); ok {
			if t := n.Text(); t != "" {
				return t
			}
		}
	}
	if a, ok := c.First("a"); ok {
		if t := a.Text(); len(t) > minAnchorTitleLen {
			return t
		}
	}
	return ""
}

// structuredData is Strategy C: embedded schema.org JSON. Each script block
// is parsed independently; a malformed block is skipped silently.
func structuredData(doc *page.Document, pctx ProductContext) ([]catalog.ProductRecord, error) {
	var out []catalog.ProductRecord
	doc.Each(`script[type="application/ld+json"]`, func(n page.Node) {
		var node any
		if err := json.Unmarshal([]byte(n.Text()), &node); err != nil {
			return
		}
		out = append(out, recordsFromJSONNode(doc, node, pctx)...)
	})
	return out, nil
}

func recordsFromJSONNode(doc *page.Document, node any, pctx ProductContext) []catalog.ProductRecord {
	switch v := node.(type) {
	case []any:
		var out []catalog.ProductRecord
		for _, item := range v {
			out = append(out, recordsFromJSONNode(doc, item, pctx)...)
		}
		return out
	case map[string]any:
		switch jsonNodeType(v) {
		case "Product":
			if rec, ok := recordFromProductNode(doc, v, pctx); ok {
				return []catalog.ProductRecord{rec}
			}
		case "ItemList":
			return recordsFromItemList(doc, v, pctx)
		}
	}
	return nil
}

func jsonNodeType(node map[string]any) string {
	switch t := node["@type"].(type) {
	case string:
		return t
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				return s
			}
		}
	}
	return ""
}

func recordsFromItemList(doc *page.Document, node map[string]any, pctx ProductContext) []catalog.ProductRecord {
	elements, _ := node["itemListElement"].([]any)
	var out []catalog.ProductRecord
	for _, el := range elements {
		entry, ok := el.(map[string]any)
		if !ok {
			continue
		}
		item, ok := entry["item"].(map[string]any)
		if !ok {
			continue
		}
		if rec, ok := recordFromProductNode(doc, item, pctx); ok {
			out = append(out, rec)
		}
	}
	return out
}

func recordFromProductNode(doc *page.Document, node map[string]any, pctx ProductContext) (catalog.ProductRecord, bool) {
	name, _ := node["name"].(string)
	name = strings.TrimSpace(name)
	rawURL, _ := node["url"].(string)
	productURL := doc.Resolve(rawURL)
	if name == "" || productURL == "" {
		return catalog.ProductRecord{}, false
	}

	description, _ := node["description"].(string)
	if description == "" {
		description = name
	}

	return catalog.ProductRecord{
		MainCategory: pctx.MainCategory,
		SubCategory:  pctx.SubCategory,
		Brand:        pctx.Brand,
		Name:         name,
		Description:  strings.TrimSpace(description),
		ImageURL:     doc.Resolve(jsonImage(node["image"])),
		ProductURL:   productURL,
		Price:        jsonPrice(node["offers"]),
	}, true
}

// jsonImage accepts a bare string, the first element of an array, or a
// nested object's url property.
func jsonImage(v any) string {
	switch img := v.(type) {
	case string:
		return img
	case []any:
		if len(img) > 0 {
			return jsonImage(img[0])
		}
	case map[string]any:
		if u, ok := img["url"].(string); ok {
			return u
		}
	}
	return ""
}

func jsonPrice(v any) float64 {
	switch offers := v.(type) {
	case map[string]any:
		switch p := offers["price"].(type) {
		case float64:
			return p
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(p), 64); err == nil {
				return f
			}
		}
	case []any:
		if len(offers) > 0 {
			return jsonPrice(offers[0])
		}
	}
	return 0
}
