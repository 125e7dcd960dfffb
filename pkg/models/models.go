package models

import (
	"time"

	"github.com/law-makers/dommap/pkg/dom"
)

// PageExtraction is one parsed view of a page: either the raw server
// response or the browser-rendered document.
type PageExtraction struct {
	Markup       string        `json:"html"`
	PlainMarkup  string        `json:"plainHtml,omitempty"`
	DOM          *dom.Node     `json:"dom"`
	Document     *dom.Document `json:"-"`
	ElementCount int           `json:"elementCount"`
	Title        string        `json:"title,omitempty"`
}

// CompositePageResult pairs the raw and rendered extractions of a URL with
// every stylesheet that was applied to the rendered tree.
type CompositePageResult struct {
	URL         string             `json:"url,omitempty"`
	Source      *PageExtraction    `json:"source"`
	Processed   *PageExtraction    `json:"processed"`
	Stylesheets []StylesheetRecord `json:"stylesheets"`
	FetchedAt   time.Time          `json:"fetched_at"`
	ElapsedMs   int64              `json:"elapsed_ms"`
}

// Stylesheet returns the record with the given source id, or nil.
func (r *CompositePageResult) Stylesheet(sourceID string) *StylesheetRecord {
	for i := range r.Stylesheets {
		if r.Stylesheets[i].SourceID == sourceID {
			return &r.Stylesheets[i]
		}
	}
	return nil
}

// StylesheetRecord is a stylesheet that applied to the rendered page.
// SourceID is the captured URL, or "html<N>" for the N-th <style> element.
// Rules is nil when the content could not be parsed.
type StylesheetRecord struct {
	SourceID string `json:"id"`
	Content  string `json:"content"`
	Rules    *Rule  `json:"parsed,omitempty"`
}

// CapturedStylesheet is a stylesheet response body observed during rendering.
type CapturedStylesheet struct {
	URL  string
	Text string
}

// Rendering is what the browser produces for a single URL.
type Rendering struct {
	Markup      string
	PlainMarkup string
	Stylesheets []CapturedStylesheet
	StatusCode  int
}

// BatchResult carries the outcome of one URL in a batch run.
type BatchResult struct {
	URL    string               `json:"url"`
	Result *CompositePageResult `json:"result,omitempty"`
	Error  error                `json:"-"`
	Err    string               `json:"error,omitempty"`
}

// RequestOptions configures a single raw fetch.
type RequestOptions struct {
	URL         string
	UserAgent   string
	Headers     map[string]string
	SessionName string
	Timeout     time.Duration
	Proxy       string
}
