package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/law-makers/dommap/internal/config"
	"github.com/law-makers/dommap/internal/utils/headers"
	"github.com/law-makers/dommap/pkg/models"
)

// addDomFlags registers the flags that shape a GetDom call.
func addDomFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("mobile", false, "Emulate a mobile device (mobile user agent and touch)")
	f.Int("width", 0, fmt.Sprintf("Viewport width (default %d)", models.DefaultViewportWidth))
	f.Int("height", 0, fmt.Sprintf("Viewport height (default %d)", models.DefaultViewportHeight))
	f.Bool("landscape", false, "Force landscape orientation; --landscape=false forces portrait")
	f.Bool("computed-style", false, "Stamp each element with its computed style")
	f.Bool("elements-position", false, "Stamp each element with its scroll offsets and bounding box")
	f.Bool("generate-ids", false, "Give every element without an id a generated marker attribute")
	f.StringArrayP("header", "H", nil, `Custom header for the raw fetch (e.g. -H "Authorization: Bearer x")`)
	f.String("session", "", "Name of a saved session to apply to both fetches")
}

// domOptions builds the per-call options from flags and configuration.
func domOptions(cmd *cobra.Command, cfg *config.Config) (*models.DomOptions, error) {
	f := cmd.Flags()

	rawHeaders, err := f.GetStringArray("header")
	if err != nil {
		return nil, err
	}
	hdrs, err := headers.ParseHeaders(rawHeaders)
	if err != nil {
		return nil, err
	}

	opts := &models.DomOptions{
		UserAgent: cfg.UserAgent,
		Headers:   hdrs,
		Proxy:     cfg.Proxy,
		Timeout:   cfg.HTTPTimeout,
	}
	if opts.Mobile, err = f.GetBool("mobile"); err != nil {
		return nil, err
	}
	if opts.ComputedStyle, err = f.GetBool("computed-style"); err != nil {
		return nil, err
	}
	if opts.ElementsPosition, err = f.GetBool("elements-position"); err != nil {
		return nil, err
	}
	if opts.GenerateIds, err = f.GetBool("generate-ids"); err != nil {
		return nil, err
	}
	if opts.SessionName, err = f.GetString("session"); err != nil {
		return nil, err
	}

	width, _ := f.GetInt("width")
	height, _ := f.GetInt("height")
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("viewport size must be positive, got %dx%d", width, height)
	}
	if width > 0 || height > 0 {
		opts.Resolution = &models.Resolution{Width: width, Height: height}
	}

	if f.Changed("landscape") {
		landscape, _ := f.GetBool("landscape")
		opts.Landscape = &landscape
	}
	return opts, nil
}
