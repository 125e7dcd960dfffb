package dynamic

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
)

// idleEvent is the lifecycle event fired once no more than two network
// connections have been active for 500ms.
const idleEvent = "networkAlmostIdle"

// loadWatcher tracks, per navigation loader, whether the network went
// quiet and what status the document response had.
type loadWatcher struct {
	mu     sync.Mutex
	idle   map[cdp.LoaderID]bool
	status map[cdp.LoaderID]int64
	notify chan struct{}
}

func newLoadWatcher() *loadWatcher {
	return &loadWatcher{
		idle:   make(map[cdp.LoaderID]bool),
		status: make(map[cdp.LoaderID]int64),
		notify: make(chan struct{}),
	}
}

func (w *loadWatcher) lifecycle(ev *page.EventLifecycleEvent) {
	if ev.Name != idleEvent {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.idle[ev.LoaderID] = true
	close(w.notify)
	w.notify = make(chan struct{})
}

func (w *loadWatcher) response(ev *network.EventResponseReceived) {
	if ev.Type != network.ResourceTypeDocument || ev.Response == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	// Redirect hops share a loader; the last response is the document.
	w.status[ev.LoaderID] = ev.Response.Status
}

func (w *loadWatcher) statusOf(loader cdp.LoaderID) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int(w.status[loader])
}

// waitIdle blocks until loader reported network quiescence. It returns
// false when the limit expired first, and ctx.Err() when ctx ended.
func (w *loadWatcher) waitIdle(ctx context.Context, loader cdp.LoaderID, limit time.Duration) (bool, error) {
	var expired <-chan time.Time
	if limit > 0 {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		w.mu.Lock()
		if w.idle[loader] {
			w.mu.Unlock()
			return true, nil
		}
		ch := w.notify
		w.mu.Unlock()

		select {
		case <-ch:
		case <-expired:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}
