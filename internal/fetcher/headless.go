package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/boqlabs/catalog-crawler/internal/metrics"
	"github.com/boqlabs/catalog-crawler/internal/page"
)

// ErrHeadlessDisabled indicates rendering has been disabled via configuration.
var ErrHeadlessDisabled = errors.New("headless rendering disabled")

// HeadlessConfig controls the chromedp renderer.
type HeadlessConfig struct {
	UserAgent      string
	MaxConcurrency int
	Timeout        time.Duration
	DomainQPS      float64
}

// Headless renders pages with JavaScript enabled using a shared headless
// Chrome instance, one tab per render.
type Headless struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	sem             chan struct{}
	timeout         time.Duration
	domainQPS       float64
	domainLimiters  sync.Map
	userAgent       string
}

// NewHeadless starts the browser and returns a renderer, or
// ErrHeadlessDisabled when no render slots are configured.
func NewHeadless(cfg HeadlessConfig, logger *zap.Logger) (*Headless, error) {
	if cfg.MaxConcurrency <= 0 {
		return nil, ErrHeadlessDisabled
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Headless{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		sem:             make(chan struct{}, cfg.MaxConcurrency),
		timeout:         cfg.Timeout,
		domainQPS:       cfg.DomainQPS,
		userAgent:       cfg.UserAgent,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (h *Headless) Close() {
	if h == nil {
		return
	}
	h.browserCancel()
	h.allocatorCancel()
}

// Fetch renders rawURL in a fresh tab and parses the resulting DOM.
func (h *Headless) Fetch(ctx context.Context, rawURL string) (*page.Document, error) {
	if h == nil {
		return nil, ErrHeadlessDisabled
	}
	raw, err := h.render(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return page.Parse(raw.body, raw.finalURL)
}

func (h *Headless) render(ctx context.Context, rawURL string) (fetchedPage, error) {
	release, err := h.acquireSlot(ctx)
	if err != nil {
		return fetchedPage{}, err
	}
	defer release()

	if waitErr := h.waitDomainBudget(ctx, rawURL); waitErr != nil {
		return fetchedPage{}, fmt.Errorf("render rate limit: %w", waitErr)
	}

	tabCtx, cancelTab := chromedp.NewContext(h.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, h.timeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	meta := newResponseMeta()
	h.recordResponse(tabCtx, meta)

	start := time.Now()
	html, err := h.runChromedp(taskCtx, rawURL)
	if err != nil {
		metrics.ObserveFetch("headless", "error", time.Since(start))
		return fetchedPage{}, fmt.Errorf("chromedp run: %w", err)
	}
	metrics.ObserveFetch("headless", "ok", time.Since(start))

	return fetchedPage{
		finalURL:   meta.finalURL(rawURL),
		statusCode: meta.statusCode,
		body:       []byte(html),
	}, nil
}

func (h *Headless) acquireSlot(ctx context.Context) (func(), error) {
	if h.sem == nil {
		return func() {}, nil
	}
	select {
	case h.sem <- struct{}{}:
		return func() { <-h.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
}

type responseMeta struct {
	once       sync.Once
	statusCode int
	url        string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) finalURL(raw string) string {
	if m.url == "" {
		return raw
	}
	return m.url
}

func (h *Headless) recordResponse(tabCtx context.Context, meta *responseMeta) {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		meta.once.Do(func() {
			meta.statusCode = int(resp.Response.Status)
			meta.url = resp.Response.URL
		})
	})
}

func (h *Headless) runChromedp(ctx context.Context, rawURL string) (string, error) {
	var html string
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(h.userAgent),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return "", err
	}
	return html, nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (h *Headless) waitDomainBudget(ctx context.Context, rawURL string) error {
	if h.domainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := h.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(h.domainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}
