package models

// RuleKind tags a node of a parsed stylesheet tree.
type RuleKind string

const (
	KindStylesheet RuleKind = "stylesheet"
	KindRule       RuleKind = "rule"
	KindMedia      RuleKind = "media"
	KindFontFace   RuleKind = "font-face"
	KindPage       RuleKind = "page"
	KindKeyframes  RuleKind = "keyframes"
	KindKeyframe   RuleKind = "keyframe"
	KindImport     RuleKind = "import"
	KindComment    RuleKind = "comment"
)

// Declaration is a single "property: value" pair. Value keeps any
// "!important" marker as written.
type Declaration struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

// Rule is a node of a parsed stylesheet. Which fields are set depends on Kind:
// rule, font-face and page carry Selectors and Declarations; stylesheet,
// media and keyframes carry Rules; media carries the query in Media;
// keyframes carries the animation Name; import carries Import (and optional
// Media); comment carries Comment.
type Rule struct {
	Kind         RuleKind      `json:"type"`
	Selectors    []string      `json:"selectors,omitempty"`
	Declarations []Declaration `json:"declarations,omitempty"`
	Rules        []*Rule       `json:"rules,omitempty"`
	Media        string        `json:"media,omitempty"`
	Name         string        `json:"name,omitempty"`
	Import       string        `json:"import,omitempty"`
	Comment      string        `json:"comment,omitempty"`
}

// Walk visits r and every descendant in document order. Returning false from
// fn stops descent into that node's children.
func (r *Rule) Walk(fn func(*Rule) bool) {
	if r == nil || !fn(r) {
		return
	}
	for _, child := range r.Rules {
		child.Walk(fn)
	}
}

// CountRules returns the number of style rules (rule, font-face, page) in
// the tree.
func (r *Rule) CountRules() int {
	n := 0
	r.Walk(func(node *Rule) bool {
		switch node.Kind {
		case KindRule, KindFontFace, KindPage:
			n++
		}
		return true
	})
	return n
}
