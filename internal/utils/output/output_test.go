package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/law-makers/dommap/internal/css"
	"github.com/law-makers/dommap/internal/engine/metadata"
	"github.com/law-makers/dommap/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><head><title>Demo</title></head><body>` +
	`<div class="box" qw-generated-id-1=""><p>Hello <a href="/about" title="About">about</a></p></div></body></html>`

func sampleResult(t *testing.T) *models.CompositePageResult {
	t.Helper()
	processed, err := metadata.Build(page)
	require.NoError(t, err)
	source, err := metadata.Build(page)
	require.NoError(t, err)

	sheet := ".box{width:10px;color:red !important} @media print { p { margin: 0 } }"
	rules, err := css.Parse(sheet)
	require.NoError(t, err)
	sheets := []models.StylesheetRecord{{SourceID: "https://example.com/a.css", Content: sheet, Rules: rules}}
	css.Map(processed.Document, sheets)

	return &models.CompositePageResult{
		URL:         "https://example.com/docs/",
		Source:      source,
		Processed:   processed,
		Stylesheets: sheets,
	}
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFromPath("out.json"))
	assert.Equal(t, FormatJSON, FormatFromPath("out"))
	assert.Equal(t, FormatHTML, FormatFromPath("OUT.HTML"))
	assert.Equal(t, FormatMarkdown, FormatFromPath("a/b.md"))
	assert.Equal(t, FormatCSV, FormatFromPath("x.csv"))
}

func TestWriteJSONCarriesMappedCSS(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleResult(t)))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "source")
	assert.Contains(t, decoded, "processed")
	assert.Len(t, decoded["stylesheets"], 1)
	assert.Contains(t, buf.String(), `"width": {`)
	assert.Contains(t, buf.String(), `"value": "red !important"`)
	assert.Contains(t, buf.String(), `"media": "print"`)
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, sampleResult(t)))
	assert.Equal(t, page+"\n", buf.String())
}

func TestWriteMarkdownResolvesLinks(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, sampleResult(t)))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "# Demo\n"))
	assert.Contains(t, out, `[about](https://example.com/about "About")`)
	assert.NotContains(t, out, "qw-generated-id")
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResult(t)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "element,path,property,value,media,important", lines[0])
	assert.Equal(t, "5,html > body > div,color,red !important,,true", lines[1])
	assert.Equal(t, "5,html > body > div,width,10px,,false", lines[2])
	assert.Equal(t, "6,html > body > div > p,margin,0,print,false", lines[3])
}

func TestSaveCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "page.csv")
	require.NoError(t, Save(path, sampleResult(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "element,path"))
}

func TestWriteRejectsNil(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, FormatJSON, nil))
	assert.Error(t, Write(&bytes.Buffer{}, Format("xml"), sampleResult(t)))
}
