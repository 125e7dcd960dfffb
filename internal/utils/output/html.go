package output

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/dommap/pkg/models"
	"golang.org/x/net/html"
)

// WriteHTML writes the rendered markup, annotations included.
func WriteHTML(w io.Writer, result *models.CompositePageResult) error {
	markup := ""
	if result.Processed != nil {
		markup = result.Processed.Markup
	}
	_, err := io.WriteString(w, markup+"\n")
	return err
}

// CleanHTML removes unwanted elements and attributes to produce a safe HTML excerpt
func CleanHTML(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	doc.Find("head, script, style, link, meta, noscript, iframe, svg, form, input, button, select, textarea, canvas").Remove()

	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		node := s.Nodes[0]
		kept := node.Attr[:0]
		for _, attr := range node.Attr {
			if keepAttr(node.Data, attr) {
				kept = append(kept, attr)
			}
		}
		node.Attr = kept
	})

	htmlStr, err := doc.Html()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(htmlStr), nil
}

// keepAttr drops everything but link and image targets, which also removes
// the annotation attributes from converted output.
func keepAttr(tag string, attr html.Attribute) bool {
	switch tag {
	case "a":
		return attr.Key == "href" || attr.Key == "title"
	case "img":
		return attr.Key == "src" || attr.Key == "alt" || attr.Key == "title"
	}
	return false
}
