// Package fetcher retrieves and parses catalog pages. The static fetcher
// handles plain HTML sites; the headless renderer covers JS-driven storefronts
// and is engaged by the promoting fetcher when the static response looks empty.
package fetcher

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/boqlabs/catalog-crawler/internal/metrics"
	"github.com/boqlabs/catalog-crawler/internal/page"
)

// StaticConfig controls the colly-based fetcher.
type StaticConfig struct {
	UserAgent          string
	RequestTimeout     time.Duration
	Concurrency        int
	RateLimitPerDomain int
}

type fetchedPage struct {
	finalURL   string
	statusCode int
	body       []byte
}

// Static fetches pages over plain HTTP without executing scripts.
type Static struct {
	base   *colly.Collector
	logger *zap.Logger
}

// NewStatic constructs a Static fetcher.
func NewStatic(cfg StaticConfig, logger *zap.Logger) (*Static, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = false
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		MaxConnsPerHost:       cfg.Concurrency * 2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)

	delay := time.Second / time.Duration(max(1, cfg.RateLimitPerDomain))
	if err := base.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: max(1, cfg.Concurrency),
		Delay:       delay,
	}); err != nil {
		return nil, err
	}

	return &Static{base: base, logger: logger}, nil
}

// Fetch retrieves rawURL and parses the response into a Document.
func (s *Static) Fetch(ctx context.Context, rawURL string) (*page.Document, error) {
	raw, err := s.fetchRaw(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return page.Parse(raw.body, raw.finalURL)
}

func (s *Static) fetchRaw(ctx context.Context, rawURL string) (fetchedPage, error) {
	collector := s.base.Clone()
	resultCh := make(chan staticResult, 1)
	var once sync.Once
	send := func(res staticResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		send(staticResult{page: fetchedPage{
			finalURL:   r.Request.URL.String(),
			statusCode: r.StatusCode,
			body:       append([]byte{}, r.Body...),
		}})
	})
	collector.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(staticResult{err: err})
	})

	start := time.Now()
	if err := collector.Visit(rawURL); err != nil {
		metrics.ObserveFetch("static", "error", time.Since(start))
		return fetchedPage{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return fetchedPage{}, err
		}
		if res.err != nil {
			metrics.ObserveFetch("static", "error", time.Since(start))
			return fetchedPage{}, res.err
		}
		metrics.ObserveFetch("static", "ok", time.Since(start))
		return res.page, nil
	default:
		metrics.ObserveFetch("static", "error", time.Since(start))
		return fetchedPage{}, errors.New("colly fetch produced no result")
	}
}

type staticResult struct {
	page fetchedPage
	err  error
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
