// Package page normalizes access to a fetched, rendered page: CSS selection,
// text and attribute lookup, and URL resolution against the page base.
package page

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a parsed page anchored to a base URL.
type Document struct {
	doc  *goquery.Document
	base *url.URL
}

// Parse builds a Document from raw HTML. baseURL anchors relative links and
// must be absolute.
func Parse(body []byte, baseURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url %q is not absolute", baseURL)
	}
	return &Document{doc: doc, base: base}, nil
}

// BaseURL returns the document's base URL.
func (d *Document) BaseURL() *url.URL {
	return d.base
}

// Root returns the document root as a Node.
func (d *Document) Root() Node {
	return Node{sel: d.doc.Selection, d: d}
}

// First returns the first node matching sel.
func (d *Document) First(sel string) (Node, bool) {
	return d.Root().First(sel)
}

// Each calls fn for every node matching sel.
func (d *Document) Each(sel string, fn func(Node)) {
	d.Root().Each(sel, fn)
}

// Count reports how many nodes match sel.
func (d *Document) Count(sel string) int {
	return d.doc.Find(sel).Length()
}

// Text returns the trimmed text of the first node matching sel.
func (d *Document) Text(sel string) string {
	return strings.TrimSpace(d.doc.Find(sel).First().Text())
}

// AllText returns the trimmed text of every node matching sel,
// dropping empty entries.
func (d *Document) AllText(sel string) []string {
	var out []string
	d.doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

// Attr returns the first non-empty value of name across nodes matching sel.
func (d *Document) Attr(sel, name string) string {
	var out string
	d.doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr(name); ok && strings.TrimSpace(v) != "" {
			out = strings.TrimSpace(v)
			return false
		}
		return true
	})
	return out
}

// Title returns the trimmed <title> text.
func (d *Document) Title() string {
	return d.Text("title")
}

// Resolve turns ref into an absolute URL against the page base. Fragment-only
// and javascript: links resolve to the empty string.
func (d *Document) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(ref), "javascript:") {
		return ""
	}
	u, err := d.base.Parse(ref)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

// SameOrigin reports whether abs shares the page base's host.
func (d *Document) SameOrigin(abs string) bool {
	u, err := url.Parse(abs)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, d.base.Host)
}

// Node is a positioned selection inside a Document.
type Node struct {
	sel *goquery.Selection
	d   *Document
}

// Text returns the node's trimmed text content.
func (n Node) Text() string {
	return strings.TrimSpace(n.sel.Text())
}

// Attr returns the trimmed attribute value, or "" when absent.
func (n Node) Attr(name string) string {
	v, _ := n.sel.Attr(name)
	return strings.TrimSpace(v)
}

// First returns the first descendant matching sel.
func (n Node) First(sel string) (Node, bool) {
	found := n.sel.Find(sel).First()
	if found.Length() == 0 {
		return Node{}, false
	}
	return Node{sel: found, d: n.d}, true
}

// Each calls fn for every descendant matching sel.
func (n Node) Each(sel string, fn func(Node)) {
	n.sel.Find(sel).Each(func(_ int, s *goquery.Selection) {
		fn(Node{sel: s, d: n.d})
	})
}

// Count reports how many descendants match sel.
func (n Node) Count(sel string) int {
	return n.sel.Find(sel).Length()
}

// Resolve resolves ref against the owning document's base.
func (n Node) Resolve(ref string) string {
	if n.d == nil {
		return ""
	}
	return n.d.Resolve(ref)
}
