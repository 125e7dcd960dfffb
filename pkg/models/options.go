package models

import "time"

// Default user agents and viewport, applied when DomOptions leaves them unset.
const (
	DefaultDesktopUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.8; rv:22.0) Gecko/20100101 Firefox/22.0"
	DefaultMobileUserAgent  = "Mozilla/5.0 (Linux; U; Android 2.2; en-us; DROID2 GLOBAL Build/S273) AppleWebKit/533.1 (KHTML, like Gecko) Version/4.0 Mobile Safari/533.1"

	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080
)

// Resolution is a viewport size in CSS pixels.
type Resolution struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// DomOptions controls both fetches of a GetDom call.
type DomOptions struct {
	UserAgent  string
	Mobile     bool
	Resolution *Resolution
	// Landscape is derived from the viewport (width > height) when nil.
	Landscape *bool

	ComputedStyle    bool
	ElementsPosition bool
	GenerateIds      bool

	Headers     map[string]string
	SessionName string
	Proxy       string
	Timeout     time.Duration
}

// ResolveUserAgent picks the explicit user agent, else the mobile or desktop
// default.
func (o *DomOptions) ResolveUserAgent() string {
	if o == nil {
		return DefaultDesktopUserAgent
	}
	if o.UserAgent != "" {
		return o.UserAgent
	}
	if o.Mobile {
		return DefaultMobileUserAgent
	}
	return DefaultDesktopUserAgent
}

// ResolveViewport returns the viewport size and orientation to emulate.
func (o *DomOptions) ResolveViewport() (width, height int, landscape bool) {
	width, height = DefaultViewportWidth, DefaultViewportHeight
	if o != nil && o.Resolution != nil {
		if o.Resolution.Width > 0 {
			width = o.Resolution.Width
		}
		if o.Resolution.Height > 0 {
			height = o.Resolution.Height
		}
	}
	landscape = width > height
	if o != nil && o.Landscape != nil {
		landscape = *o.Landscape
	}
	return width, height, landscape
}

// Annotates reports whether the in-page annotation walk has anything to do.
func (o *DomOptions) Annotates() bool {
	return o != nil && (o.ComputedStyle || o.ElementsPosition || o.GenerateIds)
}
