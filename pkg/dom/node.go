// Package dom holds the element tree produced from page markup and the
// per-element CSS slot the mapper writes into.
package dom

import (
	"strings"
)

// NodeType identifies the kind of a Node.
type NodeType string

const (
	DocumentNode NodeType = "document"
	ElementNode  NodeType = "element"
	TextNode     NodeType = "text"
	CommentNode  NodeType = "comment"
	DoctypeNode  NodeType = "directive"
)

// Declared is the effective declared value of one property on one element.
type Declared struct {
	Value string `json:"value"`
	Media string `json:"media,omitempty"`
}

// Important reports whether the value carries an !important marker.
func (d Declared) Important() bool {
	return strings.Contains(d.Value, "!important")
}

// MappedCSS maps property names to their effective declared value.
type MappedCSS map[string]Declared

// Node is one node of a parsed document. Each element exclusively owns its
// CSS map; it stays nil until the mapper assigns something.
type Node struct {
	Type       NodeType          `json:"type"`
	Name       string            `json:"name,omitempty"`
	Data       string            `json:"data,omitempty"`
	Attributes map[string]string `json:"attribs,omitempty"`
	Children   []*Node           `json:"children,omitempty"`
	CSS        MappedCSS         `json:"css,omitempty"`

	parent *Node
}

// Parent returns the enclosing node, or nil for the document root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Attr returns the named attribute and whether it was present.
func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.Attributes[name]
	return v, ok
}

// IsElement reports whether n is an element node.
func (n *Node) IsElement() bool {
	return n != nil && n.Type == ElementNode
}

// Walk visits n and its descendants in document order. Returning false
// skips the children of the visited node.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Path returns a short "html > body > div#main" style locator.
func (n *Node) Path() string {
	var parts []string
	for cur := n; cur != nil && cur.Type == ElementNode; cur = cur.parent {
		part := cur.Name
		if id, ok := cur.Attributes["id"]; ok && id != "" {
			part += "#" + id
		}
		parts = append(parts, part)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// SetCSS records the declared value of property, unless the element
// already holds an !important value for it. It returns false when the
// existing value was kept.
func (n *Node) SetCSS(property string, value Declared) bool {
	if n.CSS == nil {
		n.CSS = make(MappedCSS)
	}
	if existing, ok := n.CSS[property]; ok && existing.Important() {
		return false
	}
	n.CSS[property] = value
	return true
}
