// internal/engine/extractor.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/law-makers/dommap/internal/css"
	"github.com/law-makers/dommap/internal/engine/metadata"
	"github.com/law-makers/dommap/internal/reqctx"
	urlutil "github.com/law-makers/dommap/internal/utils/url"
	"github.com/law-makers/dommap/pkg/models"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

// Extractor fetches a page twice, raw and rendered, and maps every
// stylesheet the rendered page used onto its element tree.
type Extractor struct {
	fetcher  Fetcher
	renderer Renderer
	loader   *css.Loader
}

// NewExtractor creates an Extractor. loader may be nil, in which case
// stylesheets are parsed without caching.
func NewExtractor(f Fetcher, r Renderer, loader *css.Loader) *Extractor {
	if loader == nil {
		loader = css.NewLoader(nil, 0)
	}
	return &Extractor{
		fetcher:  f,
		renderer: r,
		loader:   loader,
	}
}

// GetDom fetches url raw and rendered concurrently. Either fetch failing
// fails the call. On success the processed tree carries mapped CSS on each
// element that a stylesheet rule matched.
func (e *Extractor) GetDom(ctx context.Context, url string, opts *models.DomOptions) (*models.CompositePageResult, error) {
	if opts == nil {
		opts = &models.DomOptions{}
	}
	ctx = reqctx.WithRequestContext(ctx, url)
	rc := reqctx.GetRequestContext(ctx)

	if err := urlutil.ValidateURL(url); err != nil {
		return nil, reqctx.NewRequestError(ctx,
			NewEngineError(ErrCodeValidation, "invalid URL", fmt.Errorf("%w: %v", ErrInvalidURL, err)).
				WithDetail("url", url))
	}

	logger := log.With().Str("request_id", rc.RequestID).Str("url", url).Logger()
	logger.Debug().
		Str("fetcher", e.fetcher.Name()).
		Str("renderer", e.renderer.Name()).
		Msg("Starting extraction")

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	raw, rendering, err := e.fetchBoth(ctx, url, opts)
	if err != nil {
		logger.Debug().Err(err).Msg("Extraction failed")
		return nil, reqctx.NewRequestError(ctx, err)
	}
	logger.Debug().
		Int("raw_bytes", len(raw)).
		Int("rendered_bytes", len(rendering.Markup)).
		Int("captured_sheets", len(rendering.Stylesheets)).
		Dur("elapsed", rc.Elapsed()).
		Msg("Both fetches completed")

	source, err := metadata.Build(raw)
	if err != nil {
		return nil, reqctx.NewRequestError(ctx, NewEngineError(ErrCodeParseError, "raw markup", err))
	}
	processed, err := metadata.Build(rendering.Markup)
	if err != nil {
		return nil, reqctx.NewRequestError(ctx, NewEngineError(ErrCodeParseError, "rendered markup", err))
	}
	processed.PlainMarkup = rendering.PlainMarkup

	sheets := e.loader.ParseAll(css.Collect(rendering.Stylesheets, processed.Document))
	report := css.Map(processed.Document, sheets)

	logger.Debug().
		Int("sheets", report.Sheets).
		Int("unparsed", report.Unparsed).
		Int("rules", report.Rules).
		Int("selectors", report.Selectors).
		Int("matched", report.Matched).
		Int("applied", report.Applied).
		Int("locked", report.Locked).
		Interface("skipped", report.Skipped).
		Msg("Stylesheets mapped")
	if report.InvalidFirst != "" {
		logger.Debug().Str("selector", report.InvalidFirst).Msg("Unsupported selectors skipped")
	}

	result := &models.CompositePageResult{
		URL:         url,
		Source:      source,
		Processed:   processed,
		Stylesheets: sheets,
		FetchedAt:   rc.StartTime,
		ElapsedMs:   rc.Elapsed().Milliseconds(),
	}

	logger.Info().
		Int("source_elements", source.ElementCount).
		Int("processed_elements", processed.ElementCount).
		Int("stylesheets", len(sheets)).
		Int64("elapsed_ms", result.ElapsedMs).
		Msg("Extraction completed")

	return result, nil
}

// fetchBoth runs the raw and the rendered fetch side by side. The first
// failure cancels the other branch.
func (e *Extractor) fetchBoth(ctx context.Context, url string, opts *models.DomOptions) (string, *models.Rendering, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg                  sync.WaitGroup
		raw                 string
		rendering           *models.Rendering
		fetchErr, renderErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		start := time.Now()
		raw, fetchErr = e.fetcher.Fetch(ctx, models.RequestOptions{
			URL:         url,
			UserAgent:   opts.ResolveUserAgent(),
			Headers:     opts.Headers,
			SessionName: opts.SessionName,
			Timeout:     opts.Timeout,
			Proxy:       opts.Proxy,
		})
		if fetchErr != nil {
			cancel()
			return
		}
		log.Debug().Str("url", url).Dur("elapsed", time.Since(start)).Msg("Raw fetch done")
	}()
	go func() {
		defer wg.Done()
		start := time.Now()
		rendering, renderErr = e.renderer.Render(ctx, url, opts)
		if renderErr == nil && rendering == nil {
			renderErr = NewEngineError(ErrCodeBrowserCrash, "renderer returned no result", ErrBrowserCrash)
		}
		if renderErr != nil {
			cancel()
			return
		}
		log.Debug().Str("url", url).Dur("elapsed", time.Since(start)).Msg("Rendered fetch done")
	}()
	wg.Wait()

	// A branch stopped by the other's failure only reports the cancellation
	if fetchErr != nil && errors.Is(renderErr, context.Canceled) {
		renderErr = nil
	}
	if renderErr != nil && errors.Is(fetchErr, context.Canceled) {
		fetchErr = nil
	}
	if err := multierr.Combine(fetchErr, renderErr); err != nil {
		return "", nil, err
	}
	return raw, rendering, nil
}
