package css

import (
	"strings"

	"github.com/law-makers/dommap/pkg/dom"
	"github.com/law-makers/dommap/pkg/models"
	"github.com/rs/zerolog/log"
)

// SkipReason tells why a selector contributed nothing.
type SkipReason string

const (
	SkipNone     SkipReason = ""
	SkipEmpty    SkipReason = "empty"
	SkipExcluded SkipReason = "excluded"
	SkipInvalid  SkipReason = "invalid"
	SkipNoMatch  SkipReason = "no-match"
)

// Selectors the matcher is never asked to resolve.
const (
	focusSelector  = ":focus"
	msViewportRule = "@-ms-viewport"
)

// Report summarises a mapping pass.
type Report struct {
	Sheets       int
	Unparsed     int
	Rules        int
	Selectors    int
	Matched      int
	Applied      int
	Locked       int
	Skipped      map[SkipReason]int
	InvalidFirst string
}

func (r *Report) skip(reason SkipReason, selector string) {
	if r.Skipped == nil {
		r.Skipped = make(map[SkipReason]int)
	}
	r.Skipped[reason]++
	if reason == SkipInvalid && r.InvalidFirst == "" {
		r.InvalidFirst = selector
	}
}

// mapper carries the state of one Map call.
type mapper struct {
	doc    *dom.Document
	report Report
}

// Map applies every parsed sheet to doc in order and returns what happened.
// Within a sheet, rules apply in document order and declarations in written
// order. For each property an element keeps the first value containing
// "!important"; otherwise the last write wins. Sheets without a tree are
// skipped.
func Map(doc *dom.Document, sheets []models.StylesheetRecord) Report {
	m := &mapper{doc: doc}
	for _, sheet := range sheets {
		m.report.Sheets++
		if sheet.Rules == nil {
			m.report.Unparsed++
			continue
		}
		m.walk(sheet.Rules, "")
	}

	log.Debug().
		Int("sheets", m.report.Sheets).
		Int("rules", m.report.Rules).
		Int("matched", m.report.Matched).
		Int("applied", m.report.Applied).
		Int("locked", m.report.Locked).
		Interface("skipped", m.report.Skipped).
		Msg("Mapped stylesheets onto document")

	return m.report
}

func (m *mapper) walk(rule *models.Rule, media string) {
	switch rule.Kind {
	case models.KindStylesheet:
		for _, child := range rule.Rules {
			m.walk(child, media)
		}
	case models.KindMedia:
		for _, child := range rule.Rules {
			m.walk(child, rule.Media)
		}
	case models.KindRule, models.KindFontFace, models.KindPage:
		m.apply(rule, media)
	default:
		// comments, imports and keyframes never target elements
	}
}

func (m *mapper) apply(rule *models.Rule, media string) {
	m.report.Rules++
	for _, selector := range rule.Selectors {
		m.report.Selectors++
		nodes, reason := m.resolve(selector)
		if reason != SkipNone {
			m.report.skip(reason, selector)
			continue
		}
		m.report.Matched += len(nodes)

		for _, n := range nodes {
			for _, decl := range rule.Declarations {
				if decl.Property == "" || decl.Value == "" {
					continue
				}
				if n.SetCSS(decl.Property, dom.Declared{Value: decl.Value, Media: media}) {
					m.report.Applied++
				} else {
					m.report.Locked++
				}
			}
		}
	}
}

// resolve finds the elements a single selector targets. Any matcher failure
// becomes SkipInvalid so one bad selector never affects its siblings.
func (m *mapper) resolve(selector string) ([]*dom.Node, SkipReason) {
	selector = strings.TrimSpace(selector)
	switch {
	case selector == "":
		return nil, SkipEmpty
	case selector == focusSelector, strings.Contains(selector, msViewportRule):
		return nil, SkipExcluded
	}

	nodes, err := m.doc.Select(selector)
	if err != nil {
		log.Debug().Err(err).Str("selector", selector).Msg("Skipping selector")
		return nil, SkipInvalid
	}
	if len(nodes) == 0 {
		return nil, SkipNoMatch
	}
	return nodes, SkipNone
}
