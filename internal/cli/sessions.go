// internal/cli/sessions.go
package cli

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/dommap/internal/auth"
	"github.com/law-makers/dommap/internal/ui"
)

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved sessions",
	Long: `List, view, import and delete saved sessions.

A session is a named set of cookies and headers. Passing --session to get or
batch applies it to both the raw and the rendered fetch. Sessions are kept in
the OS keyring, or as files under ~/.dommap/sessions when no keyring is
available.`,
	Example: `  # List all saved sessions
  dommap sessions list

  # View details of a specific session
  dommap sessions view work

  # Delete a session without prompting
  dommap sessions delete work --yes`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsViewCmd = &cobra.Command{
	Use:   "view <session-name>",
	Short: "View details of a saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsView,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-name>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsViewCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)

	sessionsDeleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}

func sessionStore(cmd *cobra.Command) (*auth.Store, error) {
	a, err := mustApp(cmd)
	if err != nil {
		return nil, err
	}
	return a.Sessions, nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := sessionStore(cmd)
	if err != nil {
		return err
	}
	names, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	w := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintf(w, "\nNo saved sessions found (%s).\n\n", store.Backend())
		fmt.Fprintln(w, "Create one with:")
		fmt.Fprintf(w, "  %s\n\n", ui.Command("dommap sessions import <name> --url <url> --format netscape < cookies.txt"))
		return nil
	}

	fmt.Fprintf(w, "\n%s %s\n\n", ui.Bold(fmt.Sprintf("Saved Sessions (%d)", len(names))), ui.Dim(store.Backend()))
	for i, name := range names {
		fmt.Fprintf(w, "%d. %s\n", i+1, ui.Command(name))

		session, err := store.Load(name)
		if err != nil {
			fmt.Fprintf(w, "   %s\n", ui.Error(err.Error()))
			continue
		}
		fmt.Fprintf(w, "   URL:     %s\n", session.URL)
		fmt.Fprintf(w, "   Cookies: %d\n", len(session.Cookies))
		fmt.Fprintf(w, "   Created: %s\n", session.CreatedAt.Format(time.RFC1123))
		if !session.ExpiresAt.IsZero() {
			fmt.Fprintf(w, "   Expires: %s (in %s)\n",
				session.ExpiresAt.Format(time.RFC1123),
				time.Until(session.ExpiresAt).Round(time.Hour))
		}
	}
	fmt.Fprintln(w)
	return nil
}

func runSessionsView(cmd *cobra.Command, args []string) error {
	store, err := sessionStore(cmd)
	if err != nil {
		return err
	}
	name := args[0]
	session, err := store.Load(name)
	if err != nil {
		return fmt.Errorf("failed to load session '%s': %w", name, err)
	}
	writeSession(cmd.OutOrStdout(), session)
	return nil
}

func writeSession(w io.Writer, s *auth.SessionData) {
	fmt.Fprintf(w, "\n%s\n\n", ui.Bold("Session: "+s.Name))
	fmt.Fprintf(w, "URL:      %s\n", s.URL)
	fmt.Fprintf(w, "Created:  %s\n", s.CreatedAt.Format(time.RFC1123))
	if !s.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "Expires:  %s\n", s.ExpiresAt.Format(time.RFC1123))
	}

	fmt.Fprintf(w, "\nCookies (%d):\n", len(s.Cookies))
	for _, c := range s.Cookies {
		flags := ""
		if c.Secure {
			flags += " secure"
		}
		if c.HTTPOnly {
			flags += " httpOnly"
		}
		fmt.Fprintf(w, "  • %s (domain: %s, path: %s)%s\n", c.Name, c.Domain, c.Path, ui.Dim(flags))
	}

	if len(s.Headers) > 0 {
		keys := make([]string, 0, len(s.Headers))
		for k := range s.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(w, "\nHeaders (%d):\n", len(keys))
		for _, k := range keys {
			fmt.Fprintf(w, "  • %s: %s\n", k, s.Headers[k])
		}
	}
	fmt.Fprintln(w)
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	store, err := sessionStore(cmd)
	if err != nil {
		return err
	}
	name := args[0]
	w := cmd.OutOrStdout()

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		fmt.Fprintf(w, "Delete session '%s'? [y/N]: ", name)
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if a := strings.TrimSpace(answer); a != "y" && a != "Y" {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
	}

	if err := store.Delete(name); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Fprintf(w, "%s\n", ui.Success(fmt.Sprintf("✓ Session '%s' deleted.", name)))
	return nil
}
