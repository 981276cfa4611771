package fetcher

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/boqlabs/catalog-crawler/internal/page"
)

// Promoting fetches statically first and promotes to the headless renderer
// when the detector flags the response as script-built. A nil headless
// renderer turns promotion off.
type Promoting struct {
	static   *Static
	headless *Headless
	detector *Detector
	logger   *zap.Logger
}

// NewPromoting composes the static fetcher with an optional renderer.
func NewPromoting(static *Static, headless *Headless, detector *Detector, logger *zap.Logger) *Promoting {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Promoting{
		static:   static,
		headless: headless,
		detector: detector,
		logger:   logger,
	}
}

// Fetch retrieves rawURL, rendering it when the static body looks empty.
func (p *Promoting) Fetch(ctx context.Context, rawURL string) (*page.Document, error) {
	raw, err := p.static.fetchRaw(ctx, rawURL)
	if err != nil {
		// A blocked or broken static fetch can still succeed in a real
		// browser, so try the renderer before giving up.
		if p.headless == nil {
			return nil, err
		}
		p.logger.Debug("static fetch failed, rendering", zap.String("url", rawURL), zap.Error(err))
		return p.headless.Fetch(ctx, rawURL)
	}

	if p.headless != nil && p.detector.NeedsRender(raw.body) {
		p.logger.Debug("promoting to headless render", zap.String("url", rawURL))
		doc, renderErr := p.headless.Fetch(ctx, rawURL)
		if renderErr == nil {
			return doc, nil
		}
		if errors.Is(renderErr, context.Canceled) {
			return nil, renderErr
		}
		p.logger.Warn("headless render failed, using static body",
			zap.String("url", rawURL), zap.Error(renderErr))
	}

	return page.Parse(raw.body, raw.finalURL)
}
