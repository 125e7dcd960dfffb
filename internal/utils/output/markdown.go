package output

import (
	"fmt"
	"io"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	urlutil "github.com/law-makers/dommap/internal/utils/url"
	"github.com/law-makers/dommap/pkg/models"
)

// WriteMarkdown converts the rendered page to Markdown, with links resolved
// against the page URL.
func WriteMarkdown(w io.Writer, result *models.CompositePageResult) error {
	if result.Processed == nil {
		return fmt.Errorf("result has no rendered page")
	}

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	converter.AddRules(md.Rule{
		Filter: []string{"a"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			href, exists := selec.Attr("href")
			if !exists {
				return nil
			}

			resolved := urlutil.ResolveURL(result.URL, href)
			var titlePart string
			if title, ok := selec.Attr("title"); ok {
				titlePart = fmt.Sprintf(" %q", title)
			}
			str := fmt.Sprintf("[%s](%s%s)", strings.TrimSpace(content), resolved, titlePart)
			return &str
		},
	})

	cleaned, err := CleanHTML(result.Processed.Markup)
	if err != nil {
		return err
	}
	body, err := converter.ConvertString(cleaned)
	if err != nil {
		return err
	}

	var sb strings.Builder
	if result.Processed.Title != "" {
		sb.WriteString("# " + result.Processed.Title + "\n\n")
	}
	sb.WriteString(strings.TrimSpace(body))
	sb.WriteString("\n")
	_, err = io.WriteString(w, sb.String())
	return err
}
