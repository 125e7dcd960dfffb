package output

import (
	"encoding/json"
	"io"

	"github.com/law-makers/dommap/pkg/models"
)

// WriteJSON writes the whole composite result: both trees with their
// mapped CSS, and every applied stylesheet with its parsed rules.
func WriteJSON(w io.Writer, result *models.CompositePageResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(result)
}
