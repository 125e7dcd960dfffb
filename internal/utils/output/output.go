// Package output writes a CompositePageResult in the formats the CLI offers.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/law-makers/dommap/pkg/models"
)

// Format names an output encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "md"
	FormatCSV      Format = "csv"
)

// FormatFromPath picks the format from the file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return FormatHTML
	case ".md", ".markdown":
		return FormatMarkdown
	case ".csv":
		return FormatCSV
	default:
		return FormatJSON
	}
}

// Write encodes result to w.
func Write(w io.Writer, f Format, result *models.CompositePageResult) error {
	if result == nil {
		return fmt.Errorf("no result to write")
	}
	switch f {
	case FormatJSON:
		return WriteJSON(w, result)
	case FormatHTML:
		return WriteHTML(w, result)
	case FormatMarkdown:
		return WriteMarkdown(w, result)
	case FormatCSV:
		return WriteCSV(w, result)
	default:
		return fmt.Errorf("unsupported output format %q", f)
	}
}

// Save writes result to path in the format its extension implies.
func Save(path string, result *models.CompositePageResult) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	buf := bufio.NewWriter(file)
	if err := Write(buf, FormatFromPath(path), result); err != nil {
		file.Close()
		return err
	}
	if err := buf.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
