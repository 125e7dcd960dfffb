// Package css turns stylesheet text into rule trees and maps the declared
// values of those rules onto a document's elements.
package css

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/law-makers/dommap/pkg/models"
	"github.com/rs/zerolog/log"
	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// ErrParse is returned when a stylesheet yields no usable tree.
var ErrParse = errors.New("stylesheet parse failed")

// maxParseErrors bounds how many grammar errors a single sheet may produce
// before the parser gives up on it.
const maxParseErrors = 1000

var (
	commentRe    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Parse parses stylesheet text into a rule tree rooted at a stylesheet node.
// Malformed fragments are dropped and parsing continues after them; only a
// sheet that produced errors and no rules at all is reported as a failure.
func Parse(text string) (sheet *models.Rule, err error) {
	defer func() {
		if r := recover(); r != nil {
			sheet = nil
			err = fmt.Errorf("%w: %v", ErrParse, r)
		}
	}()

	sp := &sheetParser{
		text: text,
		p:    css.NewParser(parse.NewInput(strings.NewReader(text)), false),
	}

	sheet = &models.Rule{Kind: models.KindStylesheet}
	sheet.Rules = sp.rules(false)

	if sp.aborted {
		return nil, fmt.Errorf("%w: too many errors (%d)", ErrParse, sp.errors)
	}
	if sp.errors > 0 && len(sheet.Rules) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrParse, sp.firstErr)
	}
	if sp.errors > 0 {
		log.Debug().
			Int("errors", sp.errors).
			Int("rules", len(sheet.Rules)).
			AnErr("first", sp.firstErr).
			Msg("Recovered from stylesheet errors")
	}
	return sheet, nil
}

type sheetParser struct {
	text string
	p    *css.Parser

	errors   int
	firstErr error
	eof      bool
	aborted  bool
}

// next advances the grammar stream and reports the input offset at which
// the returned grammar started.
func (sp *sheetParser) next() (gt css.GrammarType, data string, start int) {
	start = sp.p.Offset()
	gt, _, raw := sp.p.Next()
	return gt, string(raw), start
}

// handleError records a grammar error. It returns true when the caller
// should stop consuming input.
func (sp *sheetParser) handleError() bool {
	if !sp.p.HasParseError() {
		sp.eof = true
		return true
	}
	sp.errors++
	if sp.firstErr == nil {
		sp.firstErr = sp.p.Err()
	}
	log.Debug().Err(sp.p.Err()).Msg("CSS grammar error")
	if sp.errors >= maxParseErrors {
		sp.aborted = true
		sp.eof = true
		return true
	}
	return false
}

// rules reads rules until the end of the enclosing block (or of the input
// when nested is false).
func (sp *sheetParser) rules(nested bool) []*models.Rule {
	var out []*models.Rule
	for !sp.eof {
		gt, data, start := sp.next()

		switch gt {
		case css.ErrorGrammar:
			if sp.handleError() {
				return out
			}

		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			if nested {
				return out
			}

		case css.CommentGrammar:
			out = append(out, &models.Rule{
				Kind:    models.KindComment,
				Comment: strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(data, "/*"), "*/")),
			})

		case css.AtRuleGrammar:
			if data == "@import" {
				url, media := importTarget(sp.p.Values())
				if url != "" {
					out = append(out, &models.Rule{Kind: models.KindImport, Import: url, Media: media})
				}
			} else {
				log.Debug().Str("rule", data).Msg("Skipping @-rule")
			}

		case css.BeginAtRuleGrammar:
			prelude := joinTokens(sp.p.Values())
			if raw := sp.rawPrelude(start, data); raw != "" {
				prelude = raw
			}
			if r := sp.atRule(data, prelude); r != nil {
				out = append(out, r)
			}

		case css.BeginRulesetGrammar:
			selectors := splitSelectors(sp.p.Values())
			decls := sp.declarations()
			out = append(out, &models.Rule{
				Kind:         models.KindRule,
				Selectors:    selectors,
				Declarations: decls,
			})
		}
	}
	return out
}

func (sp *sheetParser) atRule(name, prelude string) *models.Rule {
	switch unprefixed(name) {
	case "media":
		return &models.Rule{Kind: models.KindMedia, Media: prelude, Rules: sp.rules(true)}

	case "keyframes":
		frames := sp.rules(true)
		for _, f := range frames {
			if f.Kind == models.KindRule {
				f.Kind = models.KindKeyframe
			}
		}
		return &models.Rule{Kind: models.KindKeyframes, Name: prelude, Rules: frames}

	case "font-face":
		return &models.Rule{Kind: models.KindFontFace, Declarations: sp.declarations()}

	case "page":
		r := &models.Rule{Kind: models.KindPage, Declarations: sp.declarations()}
		if prelude != "" {
			r.Selectors = []string{prelude}
		}
		return r

	case "supports", "document", "layer":
		dropped := sp.rules(true)
		log.Debug().Str("rule", name).Int("rules", len(dropped)).Msg("Skipping conditional @-rule")
		return nil
	}

	return sp.unknownAtRule(name, prelude)
}

// unknownAtRule handles blocks the grammar does not know (e.g. @-ms-viewport).
// A body holding only declarations becomes a rule whose selector is the
// at-rule itself; bodies with nested blocks are dropped.
func (sp *sheetParser) unknownAtRule(name, prelude string) *models.Rule {
	var body strings.Builder
	for !sp.eof {
		gt, data, _ := sp.next()
		if gt == css.EndAtRuleGrammar {
			break
		}
		if gt == css.ErrorGrammar {
			if sp.handleError() {
				break
			}
			continue
		}
		body.WriteString(data)
	}

	if strings.ContainsAny(body.String(), "{}") {
		log.Debug().Str("rule", name).Msg("Skipping @-rule with nested blocks")
		return nil
	}

	inner := &sheetParser{
		text: body.String(),
		p:    css.NewParser(parse.NewInput(strings.NewReader(body.String())), true),
	}
	decls := inner.declarations()
	sp.errors += inner.errors

	selector := name
	if prelude != "" {
		selector += " " + prelude
	}
	return &models.Rule{
		Kind:         models.KindRule,
		Selectors:    []string{selector},
		Declarations: decls,
	}
}

// declarations reads a declaration block up to its closing brace.
func (sp *sheetParser) declarations() []models.Declaration {
	var out []models.Declaration
	for !sp.eof {
		gt, data, start := sp.next()

		switch gt {
		case css.ErrorGrammar:
			if sp.handleError() {
				return out
			}

		case css.EndRulesetGrammar, css.EndAtRuleGrammar:
			return out

		case css.DeclarationGrammar:
			value := sp.rawValue(start)
			if value == "" {
				value = joinTokens(sp.p.Values())
			}
			out = append(out, models.Declaration{Property: data, Value: value})

		case css.CustomPropertyGrammar:
			values := sp.p.Values()
			if len(values) > 0 {
				out = append(out, models.Declaration{Property: data, Value: strings.TrimSpace(string(values[0].Data))})
			}

		case css.BeginAtRuleGrammar:
			// margin boxes inside @page and similar
			sp.skipBlock()
		}
	}
	return out
}

func (sp *sheetParser) skipBlock() {
	depth := 1
	for depth > 0 && !sp.eof {
		gt, _, _ := sp.next()
		switch gt {
		case css.ErrorGrammar:
			if sp.handleError() {
				return
			}
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		}
	}
}

// rawPrelude recovers the at-rule prelude as written in the source, between
// the at-keyword and the opening brace.
func (sp *sheetParser) rawPrelude(start int, name string) string {
	end := sp.p.Offset()
	if sp.text == "" || start < 0 || end > len(sp.text) || start >= end {
		return ""
	}
	seg := sp.text[start:end]
	i := strings.Index(strings.ToLower(seg), name)
	if i < 0 {
		return ""
	}
	seg = seg[i+len(name):]
	j := strings.LastIndexByte(seg, '{')
	if j < 0 {
		return ""
	}
	return collapse(commentRe.ReplaceAllString(seg[:j], " "))
}

// rawValue recovers a declaration value as written, so "10px !important"
// keeps its spacing.
func (sp *sheetParser) rawValue(start int) string {
	end := sp.p.Offset()
	if sp.text == "" || start < 0 || end > len(sp.text) || start >= end {
		return ""
	}
	seg := sp.text[start:end]
	i := strings.IndexByte(seg, ':')
	if i < 0 {
		return ""
	}
	seg = strings.TrimSpace(seg[i+1:])
	seg = strings.TrimSuffix(seg, ";")
	seg = strings.TrimSuffix(seg, "}")
	return collapse(commentRe.ReplaceAllString(seg, " "))
}

// unprefixed strips "@" and a vendor prefix: "@-webkit-keyframes" -> "keyframes".
func unprefixed(name string) string {
	name = strings.TrimPrefix(name, "@")
	if strings.HasPrefix(name, "-") {
		if i := strings.IndexByte(name[1:], '-'); i != -1 {
			return name[i+2:]
		}
	}
	return name
}

// splitSelectors splits a selector list on top-level commas.
func splitSelectors(tokens []css.Token) []string {
	var (
		out   []string
		cur   strings.Builder
		depth int
	)
	flush := func() {
		if s := collapse(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	for _, t := range tokens {
		switch t.TokenType {
		case css.LeftParenthesisToken, css.LeftBracketToken, css.FunctionToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			if depth > 0 {
				depth--
			}
		case css.CommaToken:
			if depth == 0 {
				flush()
				continue
			}
		}
		cur.Write(t.Data)
	}
	flush()
	return out
}

func joinTokens(tokens []css.Token) string {
	var sb strings.Builder
	for _, t := range tokens {
		sb.Write(t.Data)
	}
	return collapse(sb.String())
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// importTarget extracts the URL and trailing media list of an @import.
// Handles: @import "url"; @import url("url"); @import url(url) print;
func importTarget(tokens []css.Token) (url, media string) {
	for i, t := range tokens {
		switch t.TokenType {
		case css.StringToken:
			url = unquote(string(t.Data))
		case css.URLToken:
			s := strings.TrimSuffix(strings.TrimPrefix(string(t.Data), "url("), ")")
			url = unquote(strings.TrimSpace(s))
		default:
			continue
		}
		return url, joinTokens(tokens[i+1:])
	}
	return "", ""
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
