// Package metadata turns page markup into a PageExtraction.
package metadata

import (
	"fmt"
	"regexp"

	"github.com/law-makers/dommap/pkg/dom"
	"github.com/law-makers/dommap/pkg/models"
)

var lineBreaks = regexp.MustCompile(`(\r\n|\n|\r|\t)`)

// Build parses markup into a tree and derives the element count and title.
// Line breaks and tabs are removed before parsing so the tree carries no
// layout-only text nodes; Markup keeps the text as given.
func Build(markup string) (*models.PageExtraction, error) {
	doc, err := dom.Parse(lineBreaks.ReplaceAllString(markup, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to build page tree: %w", err)
	}

	return &models.PageExtraction{
		Markup:       markup,
		DOM:          doc.Root,
		Document:     doc,
		ElementCount: doc.ElementCount(),
		Title:        doc.Title(),
	}, nil
}
