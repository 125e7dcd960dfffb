package engine

import (
	"context"

	"github.com/law-makers/dommap/pkg/models"
)

// Fetcher performs the raw fetch: a plain HTTP GET returning the response
// body as served.
type Fetcher interface {
	// Fetch returns the body of a successful (200) response.
	Fetch(ctx context.Context, opts models.RequestOptions) (string, error)

	// Name returns the name of the fetcher implementation
	Name() string
}

// Renderer performs the rendered fetch: it loads the URL in a browser,
// records every stylesheet response and returns the final markup.
type Renderer interface {
	Render(ctx context.Context, url string, opts *models.DomOptions) (*models.Rendering, error)

	// Name returns the name of the renderer implementation
	Name() string
}
