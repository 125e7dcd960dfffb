package dom

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ErrSelector is returned when a selector cannot be compiled or evaluated.
var ErrSelector = errors.New("invalid selector")

// Document is a parsed page. It keeps the underlying x/net/html tree so
// selector matching and goquery queries run against the same nodes.
type Document struct {
	Root *Node

	root  *html.Node
	index map[*html.Node]*Node
}

// Parse builds a Document from markup.
func Parse(markup string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return FromHTML(root), nil
}

// FromHTML wraps an already parsed x/net/html tree.
func FromHTML(root *html.Node) *Document {
	d := &Document{
		root:  root,
		index: make(map[*html.Node]*Node),
	}
	d.Root = d.convert(root, nil)
	return d
}

func (d *Document) convert(src *html.Node, parent *Node) *Node {
	n := &Node{parent: parent}
	switch src.Type {
	case html.DocumentNode:
		n.Type = DocumentNode
	case html.ElementNode:
		n.Type = ElementNode
		n.Name = src.Data
		if len(src.Attr) > 0 {
			n.Attributes = make(map[string]string, len(src.Attr))
			for _, a := range src.Attr {
				key := a.Key
				if a.Namespace != "" {
					key = a.Namespace + ":" + a.Key
				}
				n.Attributes[key] = a.Val
			}
		}
	case html.TextNode:
		n.Type = TextNode
		n.Data = src.Data
	case html.CommentNode:
		n.Type = CommentNode
		n.Data = src.Data
	case html.DoctypeNode:
		n.Type = DoctypeNode
		n.Name = "!doctype"
		n.Data = src.Data
	default:
		return nil
	}
	d.index[src] = n

	for c := src.FirstChild; c != nil; c = c.NextSibling {
		if child := d.convert(c, n); child != nil {
			n.Children = append(n.Children, child)
		}
	}
	return n
}

// Select returns the elements matching selector in document order. Any
// failure, including a panic inside the matcher, is reported as an error
// wrapping ErrSelector.
func (d *Document) Select(selector string) (nodes []*Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			nodes = nil
			err = fmt.Errorf("%w: %q: %v", ErrSelector, selector, r)
		}
	}()

	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrSelector, selector, err)
	}

	for _, m := range sel.MatchAll(d.root) {
		if n, ok := d.index[m]; ok && n.Type == ElementNode {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

// SelectFirst returns the first element matching selector, or nil.
func (d *Document) SelectFirst(selector string) *Node {
	nodes, err := d.Select(selector)
	if err != nil || len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// Query exposes the document through goquery.
func (d *Document) Query() *goquery.Document {
	return goquery.NewDocumentFromNode(d.root)
}

// NodeFor maps a goquery selection back to the tree's own node.
func (d *Document) NodeFor(s *goquery.Selection) *Node {
	if s == nil || s.Length() == 0 {
		return nil
	}
	return d.index[s.Get(0)]
}

// ElementCount returns the number of element nodes in the document.
func (d *Document) ElementCount() int {
	count := 0
	d.Root.Walk(func(n *Node) bool {
		if n.Type == ElementNode {
			count++
		}
		return true
	})
	return count
}

// Title returns the trimmed text of the first <title>, or "".
func (d *Document) Title() string {
	return strings.TrimSpace(d.Query().Find("title").First().Text())
}

// Elements returns every element in document order.
func (d *Document) Elements() []*Node {
	var out []*Node
	d.Root.Walk(func(n *Node) bool {
		if n.Type == ElementNode {
			out = append(out, n)
		}
		return true
	})
	return out
}
