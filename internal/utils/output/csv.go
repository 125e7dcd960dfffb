package output

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/law-makers/dommap/pkg/dom"
	"github.com/law-makers/dommap/pkg/models"
)

var csvHeader = []string{"element", "path", "property", "value", "media", "important"}

// WriteCSV flattens the mapped CSS of the rendered tree: one row per
// element and property, elements in document order, properties sorted.
func WriteCSV(w io.Writer, result *models.CompositePageResult) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	if result.Processed != nil && result.Processed.DOM != nil {
		index := 0
		var werr error
		result.Processed.DOM.Walk(func(n *dom.Node) bool {
			if werr != nil {
				return false
			}
			if !n.IsElement() {
				return true
			}
			index++
			props := make([]string, 0, len(n.CSS))
			for p := range n.CSS {
				props = append(props, p)
			}
			sort.Strings(props)
			for _, p := range props {
				d := n.CSS[p]
				row := []string{strconv.Itoa(index), n.Path(), p, d.Value, d.Media, strconv.FormatBool(d.Important())}
				if werr = writer.Write(row); werr != nil {
					return false
				}
			}
			return true
		})
		if werr != nil {
			return werr
		}
	}

	writer.Flush()
	return writer.Error()
}
