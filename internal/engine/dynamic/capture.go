package dynamic

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/law-makers/dommap/pkg/models"
	"github.com/rs/zerolog/log"
)

// bodyFunc fetches a finished response body from the browser.
type bodyFunc func(ctx context.Context, id network.RequestID) ([]byte, error)

// sheetCapture records stylesheet responses while a page loads. Bodies are
// fetched as soon as a response finishes loading; close stops recording and
// waits for the fetches already started.
type sheetCapture struct {
	ctx   context.Context
	fetch bodyFunc

	mu      sync.Mutex
	order   []network.RequestID
	urls    map[network.RequestID]string
	bodies  map[network.RequestID]string
	pending sync.WaitGroup
	closed  bool
}

func newSheetCapture(ctx context.Context, fetch bodyFunc) *sheetCapture {
	return &sheetCapture{
		ctx:    ctx,
		fetch:  fetch,
		urls:   make(map[network.RequestID]string),
		bodies: make(map[network.RequestID]string),
	}
}

// responseReceived must not block: it runs on the chromedp event loop.
func (c *sheetCapture) responseReceived(ev *network.EventResponseReceived) {
	if ev.Type != network.ResourceTypeStylesheet || ev.Response == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if _, seen := c.urls[ev.RequestID]; !seen {
		c.order = append(c.order, ev.RequestID)
	}
	c.urls[ev.RequestID] = ev.Response.URL
}

func (c *sheetCapture) loadingFinished(ev *network.EventLoadingFinished) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	url, ok := c.urls[ev.RequestID]
	if !ok {
		return
	}

	c.pending.Add(1)
	go func(id network.RequestID) {
		defer c.pending.Done()
		body, err := c.fetch(c.ctx, id)
		if err != nil {
			log.Debug().Err(err).Str("url", url).Msg("Stylesheet body unavailable")
			return
		}
		c.mu.Lock()
		c.bodies[id] = string(body)
		c.mu.Unlock()
	}(ev.RequestID)
}

// close stops recording and returns every captured sheet in response order.
// Sheets whose bodies could not be fetched are left out.
func (c *sheetCapture) close() []models.CapturedStylesheet {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.pending.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	sheets := make([]models.CapturedStylesheet, 0, len(c.order))
	for _, id := range c.order {
		body, ok := c.bodies[id]
		if !ok {
			continue
		}
		sheets = append(sheets, models.CapturedStylesheet{URL: c.urls[id], Text: body})
	}
	return sheets
}
