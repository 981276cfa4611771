// Package crawl sequences the extraction components over a bounded frontier
// of pages: landing page, discovered categories, in-flight subcategories and
// pagination continuations.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/boqlabs/catalog-crawler/internal/catalog"
	"github.com/boqlabs/catalog-crawler/internal/extract"
	"github.com/boqlabs/catalog-crawler/internal/page"
)

// ErrCancelled reports that a cancellation request was observed at a
// checkpoint. The crawl stops without running further extraction.
var ErrCancelled = errors.New("crawl cancelled")

// homeLabel is the category pair stamped on landing-page products.
const homeLabel = "Homepage"

// Config bounds the crawl frontier.
type Config struct {
	// MaxCategories caps distinct category URLs processed per crawl.
	MaxCategories int
	// MaxPagination caps pagination follow-throughs per category.
	MaxPagination int
}

func (c Config) withDefaults() Config {
	if c.MaxCategories <= 0 {
		c.MaxCategories = 30
	}
	if c.MaxPagination <= 0 {
		c.MaxPagination = 3
	}
	return c
}

// Hooks let the caller observe progress and request cooperative
// cancellation. Cancellation is checked only between fetches; an in-flight
// fetch is never preempted.
type Hooks struct {
	Progress  func(stage string, percent int)
	Cancelled func() bool
}

func (h Hooks) progress(stage string, percent int) {
	if h.Progress != nil {
		h.Progress(stage, percent)
	}
}

func (h Hooks) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return h.Cancelled != nil && h.Cancelled()
}

// Result is the final deduplicated product set plus brand info.
type Result struct {
	Products []catalog.ProductRecord
	Brand    catalog.BrandInfo
}

// Engine runs one crawl end-to-end as a single sequential unit of work.
// Each Run owns its visited set and aggregate list; Engines are safe to
// share across concurrent jobs.
type Engine struct {
	fetcher catalog.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(fetcher catalog.Fetcher, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		fetcher: fetcher,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// Run crawls siteURL and returns the deduplicated products and brand info.
// A failed landing fetch is the only fatal error; any other page failure is
// logged and skipped.
func (e *Engine) Run(ctx context.Context, siteURL string, hooks Hooks) (Result, error) {
	if hooks.cancelled(ctx) {
		return Result{}, ErrCancelled
	}

	landing, err := e.fetcher.Fetch(ctx, siteURL)
	if err != nil {
		return Result{}, fmt.Errorf("landing page fetch: %w", err)
	}

	brand := extract.Brand(landing)
	hooks.progress("Landing page loaded", 20)
	e.logger.Info("brand identified", zap.String("brand", brand.Name), zap.String("url", siteURL))

	visited := newVisitedSet()
	visited.mark(siteURL)

	var products []catalog.ProductRecord
	homeRecs, seen := extract.Products(landing, extract.ProductContext{
		Brand:        brand.Name,
		MainCategory: homeLabel,
		SubCategory:  homeLabel,
	})
	products = append(products, homeRecs...)
	visited.absorb(seen)

	frontier := extract.Categories(landing)
	e.logger.Info("categories discovered", zap.Int("count", len(frontier)))

	products, err = e.crawlFrontier(ctx, frontier, brand, visited, products, hooks)
	if err != nil {
		return Result{}, err
	}

	hooks.progress("Finalizing results...", 90)
	final := Dedupe(products)
	e.logger.Info("crawl finished",
		zap.Int("raw_products", len(products)),
		zap.Int("unique_products", len(final)),
	)
	return Result{Products: final, Brand: brand}, nil
}

func (e *Engine) crawlFrontier(
	ctx context.Context,
	frontier []catalog.CategoryDescriptor,
	brand catalog.BrandInfo,
	visited *visitedSet,
	products []catalog.ProductRecord,
	hooks Hooks,
) ([]catalog.ProductRecord, error) {
	processed := 0
	for i := 0; i < len(frontier) && processed < e.cfg.MaxCategories; i++ {
		desc := frontier[i]
		if visited.has(desc.URL) {
			continue
		}
		visited.mark(desc.URL)

		if hooks.cancelled(ctx) {
			return nil, ErrCancelled
		}
		doc, err := e.fetcher.Fetch(ctx, desc.URL)
		if err != nil {
			e.logger.Warn("category fetch failed, skipping",
				zap.String("url", desc.URL), zap.Error(err))
			continue
		}
		processed++
		hooks.progress("Crawling categories...", categoryPercent(processed, e.cfg.MaxCategories))

		// A descriptor with no distinct subcategory may hide a second
		// menu level inside its own markup; findings join the frontier
		// for later processing under the original cap.
		if desc.MainCategory == desc.SubCategory {
			for _, sub := range extract.Subcategories(doc, desc) {
				if !visited.has(sub.URL) {
					frontier = append(frontier, sub)
				}
			}
		}

		main, sub := desc.MainCategory, desc.SubCategory
		if pm, ps, ok := extract.CategoryLabelsFromPath(desc.URL); ok {
			main, sub = pm, ps
		}
		pctx := extract.ProductContext{Brand: brand.Name, MainCategory: main, SubCategory: sub}

		recs, seen := extract.Products(doc, pctx)
		products = append(products, recs...)
		visited.absorb(seen)

		products, err = e.followPagination(ctx, doc, pctx, visited, products, hooks)
		if err != nil {
			return nil, err
		}
	}
	return products, nil
}

func (e *Engine) followPagination(
	ctx context.Context,
	doc *page.Document,
	pctx extract.ProductContext,
	visited *visitedSet,
	products []catalog.ProductRecord,
	hooks Hooks,
) ([]catalog.ProductRecord, error) {
	followed := 0
	for _, pageURL := range extract.Pagination(doc) {
		if followed >= e.cfg.MaxPagination {
			break
		}
		if visited.has(pageURL) {
			continue
		}
		visited.mark(pageURL)

		if hooks.cancelled(ctx) {
			return nil, ErrCancelled
		}
		next, err := e.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			e.logger.Warn("pagination fetch failed, skipping",
				zap.String("url", pageURL), zap.Error(err))
			continue
		}
		followed++

		recs, seen := extract.Products(next, pctx)
		products = append(products, recs...)
		visited.absorb(seen)
	}
	return products, nil
}

func categoryPercent(processed, limit int) int {
	pct := 20 + (70*processed)/limit
	if pct > 90 {
		pct = 90
	}
	return pct
}

// Key is the product uniqueness key: lower(name) + "|" + lower(productUrl).
func Key(rec catalog.ProductRecord) string {
	return strings.ToLower(rec.Name) + "|" + strings.ToLower(rec.ProductURL)
}

// Dedupe keeps the first record per uniqueness key, in input order, and
// drops records whose image no longer passes the validity filter. Running
// it on its own output yields the same set.
func Dedupe(in []catalog.ProductRecord) []catalog.ProductRecord {
	seen := make(map[string]struct{}, len(in))
	out := make([]catalog.ProductRecord, 0, len(in))
	for _, rec := range in {
		if !extract.IsValidProductImage(rec.ImageURL) {
			continue
		}
		key := Key(rec)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// visitedSet is the per-crawl set of URLs already fetched or claimed.
// Owned exclusively by one Run; never shared across jobs.
type visitedSet struct {
	urls map[string]struct{}
}

func newVisitedSet() *visitedSet {
	return &visitedSet{urls: make(map[string]struct{})}
}

func (v *visitedSet) mark(u string) {
	v.urls[strings.ToLower(u)] = struct{}{}
}

func (v *visitedSet) has(u string) bool {
	_, ok := v.urls[strings.ToLower(u)]
	return ok
}

// absorb claims every key (titles and URLs) seen by an extraction pass.
func (v *visitedSet) absorb(seen extract.SeenSet) {
	for k := range seen {
		v.urls[k] = struct{}{}
	}
}
