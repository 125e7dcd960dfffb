// internal/cli/sessions_import.go
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/dommap/internal/auth"
	"github.com/law-makers/dommap/internal/ui"
	"github.com/law-makers/dommap/internal/utils/headers"
	urlutil "github.com/law-makers/dommap/internal/utils/url"
)

// sessionsImportCmd represents the sessions import command
var sessionsImportCmd = &cobra.Command{
	Use:   "import <session-name>",
	Short: "Create a session from exported browser cookies",
	Long: `Creates a session from cookies exported from a browser you are logged in
with. Cookies are read from stdin or --file as a JSON array or a
Netscape/curl cookie jar, or entered one by one with --format interactive.

The session expires with its earliest-expiring cookie.`,
	Example: `  # Import from a Netscape/curl cookie jar
  dommap sessions import work --url https://example.com --format netscape < cookies.txt

  # Import a JSON export and add a header to every request
  dommap sessions import work --url https://example.com --file cookies.json -H "X-Team: web"

  # Enter cookies by hand
  dommap sessions import work --url https://example.com --format interactive`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionsImport,
}

func init() {
	sessionsCmd.AddCommand(sessionsImportCmd)

	sessionsImportCmd.Flags().String("url", "", "Website URL for this session (required)")
	sessionsImportCmd.Flags().String("format", "", "Import format: json, netscape or interactive (default from file extension, else json)")
	sessionsImportCmd.Flags().String("file", "", "Read cookies from this file instead of stdin")
	sessionsImportCmd.Flags().StringArrayP("header", "H", nil, "Header to send with every request of this session")
	_ = sessionsImportCmd.MarkFlagRequired("url")
}

func runSessionsImport(cmd *cobra.Command, args []string) error {
	store, err := sessionStore(cmd)
	if err != nil {
		return err
	}
	name := args[0]
	flags := cmd.Flags()

	siteURL, _ := flags.GetString("url")
	siteURL = urlutil.NormalizeURL(siteURL)
	if err := urlutil.ValidateURL(siteURL); err != nil {
		return err
	}
	rawHeaders, _ := flags.GetStringArray("header")
	hdrs, err := headers.ParseHeaders(rawHeaders)
	if err != nil {
		return err
	}

	file, _ := flags.GetString("file")
	format, _ := flags.GetString("format")
	if format == "" {
		format = importFormatFor(file)
	}

	var in io.Reader = cmd.InOrStdin()
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var cookies []auth.Cookie
	switch format {
	case "json":
		cookies, err = auth.ParseJSONCookies(in)
	case "netscape":
		cookies, err = auth.ParseNetscapeCookies(in)
	case "interactive":
		cookies, err = promptCookies(in, cmd.OutOrStdout(), "."+urlutil.Domain(siteURL))
	default:
		return fmt.Errorf("unsupported format: %s (use: json, netscape, interactive)", format)
	}
	if err != nil {
		return fmt.Errorf("failed to import cookies: %w", err)
	}
	if len(cookies) == 0 {
		return fmt.Errorf("no cookies imported")
	}

	session := auth.NewSession(name, siteURL, cookies)
	for k, v := range hdrs {
		session.Headers[k] = v
	}
	if session.Expired() {
		return fmt.Errorf("every imported cookie set has already expired (%s)", session.ExpiresAt.Format(time.RFC1123))
	}

	if err := store.Save(session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\n%s\n", ui.Success(fmt.Sprintf("✓ Session '%s' saved (%s)", name, store.Backend())))
	fmt.Fprintf(w, "   Cookies: %d\n", len(cookies))
	if !session.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "   Expires: %s\n", session.ExpiresAt.Format(time.RFC1123))
	}
	fmt.Fprintf(w, "\nUse with:\n  %s\n\n", ui.Command("dommap get <url> --session "+name))
	return nil
}

func importFormatFor(file string) string {
	if strings.HasSuffix(strings.ToLower(file), ".txt") {
		return "netscape"
	}
	return "json"
}

// promptCookies asks for name, value and domain until an empty name.
func promptCookies(in io.Reader, w io.Writer, defaultDomain string) ([]auth.Cookie, error) {
	scanner := bufio.NewScanner(in)
	ask := func(prompt string) (string, bool) {
		fmt.Fprint(w, prompt)
		if !scanner.Scan() {
			return "", false
		}
		return strings.TrimSpace(scanner.Text()), true
	}

	var cookies []auth.Cookie
	for {
		name, ok := ask("\nCookie name (empty to finish): ")
		if !ok || name == "" {
			break
		}
		value, ok := ask("Cookie value: ")
		if !ok {
			break
		}
		if value == "" {
			fmt.Fprintln(w, "Skipping cookie with empty value")
			continue
		}
		domain, ok := ask(fmt.Sprintf("Domain [%s]: ", defaultDomain))
		if !ok {
			break
		}
		if domain == "" {
			domain = defaultDomain
		}

		cookies = append(cookies, auth.Cookie{
			Name:     name,
			Value:    value,
			Domain:   domain,
			Path:     "/",
			Secure:   true,
			HTTPOnly: true,
		})
		fmt.Fprintf(w, "Added %s (domain: %s)\n", name, domain)
	}
	return cookies, scanner.Err()
}
