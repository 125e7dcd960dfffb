// internal/cli/batch.go
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/law-makers/dommap/internal/config"
	"github.com/law-makers/dommap/internal/engine/batch"
	"github.com/law-makers/dommap/internal/proxy"
	"github.com/law-makers/dommap/internal/retry"
	"github.com/law-makers/dommap/internal/ui"
	"github.com/law-makers/dommap/internal/utils/output"
	urlutil "github.com/law-makers/dommap/internal/utils/url"
)

const maxSlugLength = 80

// batchCmd represents the batch command
var batchCmd = newBatchCmd()

func init() {
	rootCmd.AddCommand(batchCmd)
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [url...]",
		Short: "Map many pages concurrently and save one file per page",
		Long: `Runs get for every URL given as an argument or listed in --file, sharing a
pool of warm browsers. Each result is written to --output-dir as
NNN-<slug>.<format>, numbered in input order.

Proxies listed under "proxies" in the config file are rotated per page. A
proxy whose page fails at the network level is rested for a while.

Pages that fail with a network error, a timeout or a 429/5xx status are
retried up to --retries more times with backoff, through the next proxy.`,
		Example: `  # Two pages, JSON files in ./out
  dommap batch https://example.com https://example.org -d out

  # URLs from a file, CSV output, 4 at a time
  dommap batch --file urls.txt --format csv -c 4`,
		RunE: runBatch,
	}

	addDomFlags(cmd)
	cmd.Flags().StringP("file", "i", "", "File with one URL per line (# starts a comment, - reads stdin)")
	cmd.Flags().StringP("output-dir", "d", "dommap-out", "Directory to write results to")
	cmd.Flags().StringP("format", "f", string(output.FormatJSON), "Output format: json, html, md or csv")
	cmd.Flags().IntP("concurrency", "c", 0, "Pages in flight at once (default from config, 0 picks from CPU and memory)")
	cmd.Flags().Int("retries", config.DefaultBatchRetries, "Extra attempts for a page after a transient failure (default from config)")
	cmd.Flags().Bool("no-progress", false, "Do not draw a progress bar")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(cmd)

	urls, err := batchURLs(cmd, args)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs given: pass them as arguments or with --file")
	}

	format, _ := cmd.Flags().GetString("format")
	switch output.Format(format) {
	case output.FormatJSON, output.FormatHTML, output.FormatMarkdown, output.FormatCSV:
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
	outDir, _ := cmd.Flags().GetString("output-dir")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	opts, err := domOptions(cmd, a.Config)
	if err != nil {
		return err
	}

	concurrency := a.Config.BatchConcurrency
	if cmd.Flags().Changed("concurrency") {
		concurrency, _ = cmd.Flags().GetInt("concurrency")
	}

	retries := a.Config.BatchRetries
	if cmd.Flags().Changed("retries") {
		retries, _ = cmd.Flags().GetInt("retries")
	}
	if retries < 0 {
		return fmt.Errorf("--retries must not be negative, got %d", retries)
	}

	if err := a.EnsureBrowserPool(cmd.Context()); err != nil {
		return fmt.Errorf("failed to start browsers: %w", err)
	}

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = retries + 1
	runner := batch.New(a.Extractor, concurrency).WithRetry(policy)
	if len(a.Config.Proxies) > 0 {
		runner.WithProxies(proxy.NewProxyPool(a.Config.Proxies, config.DefaultProxyCooldown))
	}

	log.Info().
		Int("urls", len(urls)).
		Int("concurrency", runner.Concurrency()).
		Int("proxies", len(a.Config.Proxies)).
		Int("retries", retries).
		Msg("Starting batch")

	noProgress, _ := cmd.Flags().GetBool("no-progress")
	bar := progressbar.NewOptions(len(urls),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Mapping"),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetVisibility(!noProgress && ui.Enabled),
	)

	index := make(map[string]int, len(urls))
	for i, u := range urls {
		index[u] = i
	}

	var failures []string
	saved := 0
	for res := range runner.Run(cmd.Context(), urls, opts) {
		_ = bar.Add(1)
		if res.Error != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", res.URL, res.Error))
			continue
		}
		path := filepath.Join(outDir, resultFileName(index[res.URL], res.URL, format))
		if err := output.Save(path, res.Result); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", res.URL, err))
			continue
		}
		saved++
	}
	_ = bar.Finish()

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\n%s %d/%d pages saved to %s\n", ui.Success("✓"), saved, len(urls), outDir)
	if len(failures) > 0 {
		fmt.Fprintf(w, "\n%s\n", ui.Error(fmt.Sprintf("Failed (%d)", len(failures))))
		for _, f := range failures {
			fmt.Fprintf(w, "  %s\n", f)
		}
		return fmt.Errorf("%d of %d pages failed", len(failures), len(urls))
	}
	return nil
}

// batchURLs merges argument URLs with those from --file, normalized and
// without duplicates, in input order.
func batchURLs(cmd *cobra.Command, args []string) ([]string, error) {
	raw := append([]string{}, args...)

	if file, _ := cmd.Flags().GetString("file"); file != "" {
		var r io.Reader
		if file == "-" {
			r = cmd.InOrStdin()
		} else {
			f, err := os.Open(file)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			r = f
		}
		lines, err := readURLList(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		raw = append(raw, lines...)
	}

	seen := make(map[string]bool, len(raw))
	urls := make([]string, 0, len(raw))
	for _, u := range raw {
		u = urlutil.NormalizeURL(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls, nil
}

func readURLList(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

// resultFileName is "NNN-<slug>.<ext>", numbered from 1.
func resultFileName(i int, url, ext string) string {
	name := slug.Make(strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://"))
	if len(name) > maxSlugLength {
		name = strings.TrimRight(name[:maxSlugLength], "-")
	}
	if name == "" {
		name = "page"
	}
	return fmt.Sprintf("%03d-%s.%s", i+1, name, ext)
}
