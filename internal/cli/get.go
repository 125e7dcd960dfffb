// internal/cli/get.go
package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/dommap/internal/ui"
	"github.com/law-makers/dommap/internal/utils/output"
	urlutil "github.com/law-makers/dommap/internal/utils/url"
	"github.com/law-makers/dommap/pkg/dom"
	"github.com/law-makers/dommap/pkg/models"
)

// getCmd represents the get command
var getCmd = newGetCmd()

func init() {
	rootCmd.AddCommand(getCmd)
}

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Fetch a page raw and rendered and map its CSS onto the DOM",
		Long: `Fetches the URL with a plain HTTP GET and in a headless browser at the same
time. The rendered tree gets every declaration from the page's stylesheets
written onto the elements it applies to.

Without --output a summary is printed. The output format follows the file
extension: .json (everything), .html (rendered markup), .md or .csv (one row
per element and property).`,
		Example: `  # Summary of a page
  dommap get https://example.com

  # Full result as JSON
  dommap get https://example.com -o example.json

  # Mobile portrait viewport with computed styles
  dommap get https://example.com --mobile --width 390 --height 844 --computed-style -o page.html

  # Reuse a saved session and add a header to the raw fetch
  dommap get https://example.com/account --session work -H "X-Debug: 1"`,
		Args: cobra.ExactArgs(1),
		RunE: runGet,
	}

	addDomFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "File to save the result to (.json, .html, .md, .csv)")
	cmd.Flags().StringP("format", "f", "", "Write the result to stdout in this format (json, html, md, csv)")
	return cmd
}

func runGet(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd)

	url := urlutil.NormalizeURL(args[0])
	opts, err := domOptions(cmd, a.Config)
	if err != nil {
		return err
	}

	log.Info().Str("url", url).Bool("mobile", opts.Mobile).Msg("Fetching URL")
	result, err := a.Extractor.GetDom(cmd.Context(), url, opts)
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("output"); path != "" {
		if err := output.Save(path, result); err != nil {
			return fmt.Errorf("failed to save output: %w", err)
		}
		log.Info().Str("file", path).Msg("Output saved")
		fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", ui.Success("✓ Saved to "+path))
		return nil
	}

	if format, _ := cmd.Flags().GetString("format"); format != "" {
		return output.Write(cmd.OutOrStdout(), output.Format(format), result)
	}

	printSummary(cmd.OutOrStdout(), result)
	return nil
}

// printSummary prints counts for both trees and each applied stylesheet.
func printSummary(w io.Writer, r *models.CompositePageResult) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "URL:                %s\n", r.URL)
	if r.Processed.Title != "" {
		fmt.Fprintf(w, "Title:              %s\n", r.Processed.Title)
	}
	fmt.Fprintf(w, "Raw elements:       %d\n", r.Source.ElementCount)
	fmt.Fprintf(w, "Rendered elements:  %d\n", r.Processed.ElementCount)
	fmt.Fprintf(w, "Styled elements:    %d\n", styledElements(r.Processed.DOM))
	fmt.Fprintf(w, "Elapsed:            %dms\n", r.ElapsedMs)

	fmt.Fprintf(w, "\n%s\n", ui.Bold(fmt.Sprintf("Stylesheets (%d)", len(r.Stylesheets))))
	for _, s := range r.Stylesheets {
		rules := ui.Error("unparsed")
		if s.Rules != nil {
			rules = fmt.Sprintf("%d rules", s.Rules.CountRules())
		}
		fmt.Fprintf(w, "  %s  %s\n", ui.Command(s.SourceID), ui.Dim(rules))
	}

	props := propertyUsage(r.Processed.DOM)
	if len(props) > 0 {
		fmt.Fprintf(w, "\n%s\n", ui.Bold("Most mapped properties"))
		for i, p := range props {
			if i == 10 {
				break
			}
			fmt.Fprintf(w, "  %-24s %d\n", p.name, p.count)
		}
	}
	fmt.Fprintln(w)
}

func styledElements(root *dom.Node) int {
	n := 0
	root.Walk(func(node *dom.Node) bool {
		if node.IsElement() && len(node.CSS) > 0 {
			n++
		}
		return true
	})
	return n
}

type propCount struct {
	name  string
	count int
}

// propertyUsage counts elements per mapped property, most used first.
func propertyUsage(root *dom.Node) []propCount {
	counts := make(map[string]int)
	root.Walk(func(node *dom.Node) bool {
		for p := range node.CSS {
			counts[p]++
		}
		return true
	})
	out := make([]propCount, 0, len(counts))
	for name, c := range counts {
		out = append(out, propCount{name, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}
