package dynamic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/law-makers/dommap/pkg/models"
	"github.com/stretchr/testify/assert"
)

func sheetResponse(id, url string, kind network.ResourceType) *network.EventResponseReceived {
	return &network.EventResponseReceived{
		RequestID: network.RequestID(id),
		Type:      kind,
		Response:  &network.Response{URL: url, Status: 200},
	}
}

func finished(id string) *network.EventLoadingFinished {
	return &network.EventLoadingFinished{RequestID: network.RequestID(id)}
}

func TestCaptureKeepsResponseOrder(t *testing.T) {
	bodies := map[network.RequestID]string{"1": "a{}", "2": "b{}", "3": "c{}"}
	release := make(chan struct{})
	c := newSheetCapture(context.Background(), func(ctx context.Context, id network.RequestID) ([]byte, error) {
		if id == "1" {
			// Finish after the others
			<-release
		}
		return []byte(bodies[id]), nil
	})

	c.responseReceived(sheetResponse("1", "https://x/a.css", network.ResourceTypeStylesheet))
	c.responseReceived(sheetResponse("2", "https://x/b.css", network.ResourceTypeStylesheet))
	c.responseReceived(sheetResponse("9", "https://x/app.js", network.ResourceTypeScript))
	c.responseReceived(sheetResponse("3", "https://x/c.css", network.ResourceTypeStylesheet))
	c.loadingFinished(finished("3"))
	c.loadingFinished(finished("2"))
	c.loadingFinished(finished("1"))
	c.loadingFinished(finished("9"))

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	assert.Equal(t, []models.CapturedStylesheet{
		{URL: "https://x/a.css", Text: "a{}"},
		{URL: "https://x/b.css", Text: "b{}"},
		{URL: "https://x/c.css", Text: "c{}"},
	}, c.close())
}

func TestCaptureDropsUnfinishedAndFailed(t *testing.T) {
	c := newSheetCapture(context.Background(), func(ctx context.Context, id network.RequestID) ([]byte, error) {
		if id == "2" {
			return nil, errors.New("no body")
		}
		return []byte("ok"), nil
	})

	c.responseReceived(sheetResponse("1", "https://x/a.css", network.ResourceTypeStylesheet))
	c.responseReceived(sheetResponse("2", "https://x/b.css", network.ResourceTypeStylesheet))
	c.responseReceived(sheetResponse("3", "https://x/c.css", network.ResourceTypeStylesheet))
	c.loadingFinished(finished("1"))
	c.loadingFinished(finished("2"))

	sheets := c.close()
	assert.Equal(t, []models.CapturedStylesheet{{URL: "https://x/a.css", Text: "ok"}}, sheets)

	// Nothing is recorded after close
	c.responseReceived(sheetResponse("4", "https://x/d.css", network.ResourceTypeStylesheet))
	c.loadingFinished(finished("3"))
	assert.Equal(t, sheets, c.close())
}

func TestCaptureConcurrentEvents(t *testing.T) {
	c := newSheetCapture(context.Background(), func(ctx context.Context, id network.RequestID) ([]byte, error) {
		return []byte(id), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('A' + i))
			c.responseReceived(sheetResponse(id, "https://x/"+id, network.ResourceTypeStylesheet))
			c.loadingFinished(finished(id))
		}(i)
	}
	wg.Wait()

	assert.Len(t, c.close(), 50)
}
