package css

import (
	"fmt"
	"testing"

	"github.com/law-makers/dommap/pkg/dom"
	"github.com/law-makers/dommap/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mapperPage = `<html><head><title>t</title></head><body>` +
	`<div class="box"><h1>Head</h1><p id="first">a</p><p>b</p></div></body></html>`

func parsedSheets(t *testing.T, texts ...string) []models.StylesheetRecord {
	t.Helper()
	records := make([]models.StylesheetRecord, len(texts))
	for i, text := range texts {
		tree, err := Parse(text)
		require.NoError(t, err)
		records[i] = models.StylesheetRecord{SourceID: "s", Content: text, Rules: tree}
	}
	return records
}

func mapText(t *testing.T, texts ...string) (*dom.Document, Report) {
	t.Helper()
	doc, err := dom.Parse(mapperPage)
	require.NoError(t, err)
	return doc, Map(doc, parsedSheets(t, texts...))
}

func TestMapSimpleRule(t *testing.T) {
	doc, report := mapText(t, ".box{width:10px}")

	box := doc.SelectFirst(".box")
	require.NotNil(t, box)
	assert.Equal(t, dom.MappedCSS{"width": {Value: "10px"}}, box.CSS)
	assert.Equal(t, 1, report.Applied)

	assert.Nil(t, doc.SelectFirst("h1").CSS)
}

func TestMapLastWriteWins(t *testing.T) {
	doc, _ := mapText(t, "p{color:red} p{color:blue; width:1px; width:2px}")

	for _, p := range mustSelect(t, doc, "p") {
		assert.Equal(t, "blue", p.CSS["color"].Value)
		assert.Equal(t, "2px", p.CSS["width"].Value)
	}
}

func TestMapImportantLocks(t *testing.T) {
	doc, report := mapText(t,
		"p{color:red !important}",
		"p{color:blue} #first{color:green !important}",
	)

	for _, p := range mustSelect(t, doc, "p") {
		assert.Equal(t, "red !important", p.CSS["color"].Value)
	}
	assert.Equal(t, 3, report.Locked)
}

func TestMapRecordsMediaContext(t *testing.T) {
	doc, _ := mapText(t, "h1{color:red} @media print { h1 { color: black } p { margin: 0 } }")

	h1 := doc.SelectFirst("h1")
	assert.Equal(t, dom.Declared{Value: "black", Media: "print"}, h1.CSS["color"])
	assert.Equal(t, dom.Declared{Value: "0", Media: "print"}, doc.SelectFirst("#first").CSS["margin"])
}

func TestMapNestedMediaUsesInnermost(t *testing.T) {
	doc, _ := mapText(t, "@media screen { @media (min-width: 1px) { h1 { color: red } } }")
	assert.Equal(t, "(min-width: 1px)", doc.SelectFirst("h1").CSS["color"].Media)
}

func TestMapExcludedSelectors(t *testing.T) {
	doc, report := mapText(t, ":focus{color:red} @-ms-viewport{width:device-width}")

	for _, n := range doc.Elements() {
		assert.Nil(t, n.CSS, n.Name)
	}
	assert.Equal(t, 2, report.Skipped[SkipExcluded])
}

func TestMapInvalidSelectorDoesNotAffectSiblings(t *testing.T) {
	doc, report := mapText(t, "p:frobnicate, h1 { color: red }")

	assert.Equal(t, "red", doc.SelectFirst("h1").CSS["color"].Value)
	assert.Nil(t, doc.SelectFirst("#first").CSS)
	assert.Equal(t, 1, report.Skipped[SkipInvalid])
	assert.Equal(t, "p:frobnicate", report.InvalidFirst)
}

func TestMapSkipsEmptyDeclarationsAndUnparsedSheets(t *testing.T) {
	doc, err := dom.Parse(mapperPage)
	require.NoError(t, err)

	sheets := []models.StylesheetRecord{
		{SourceID: "broken", Content: "}}}"},
		{SourceID: "manual", Rules: &models.Rule{Kind: models.KindStylesheet, Rules: []*models.Rule{{
			Kind:      models.KindRule,
			Selectors: []string{"h1", ""},
			Declarations: []models.Declaration{
				{Property: "", Value: "x"},
				{Property: "color", Value: ""},
				{Property: "width", Value: "5px"},
			},
		}}}},
	}

	report := Map(doc, sheets)
	assert.Equal(t, dom.MappedCSS{"width": {Value: "5px"}}, doc.SelectFirst("h1").CSS)
	assert.Equal(t, 1, report.Unparsed)
	assert.Equal(t, 1, report.Skipped[SkipEmpty])
}

func TestMapIgnoresNonStyleRules(t *testing.T) {
	doc, _ := mapText(t, `/* p{color:red} */ @import "x.css"; @keyframes k { from { color: red } }`)
	for _, n := range doc.Elements() {
		assert.Nil(t, n.CSS, n.Name)
	}
}

func TestMapIsIdempotent(t *testing.T) {
	sheets := parsedSheets(t, ".box{width:10px} p{color:red !important} @media print { h1 { color: blue } }")

	doc, err := dom.Parse(mapperPage)
	require.NoError(t, err)
	Map(doc, sheets)
	first := snapshot(doc)

	Map(doc, sheets)
	assert.Equal(t, first, snapshot(doc))
}

func mustSelect(t *testing.T, doc *dom.Document, selector string) []*dom.Node {
	t.Helper()
	nodes, err := doc.Select(selector)
	require.NoError(t, err)
	require.NotEmpty(t, nodes)
	return nodes
}

func snapshot(doc *dom.Document) map[string]dom.MappedCSS {
	out := make(map[string]dom.MappedCSS)
	for i, n := range doc.Elements() {
		if n.CSS == nil {
			continue
		}
		cp := make(dom.MappedCSS, len(n.CSS))
		for k, v := range n.CSS {
			cp[k] = v
		}
		out[fmt.Sprintf("%d:%s", i, n.Path())] = cp
	}
	return out
}
