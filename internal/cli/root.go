// internal/cli/root.go
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/dommap/internal/app"
	"github.com/law-makers/dommap/internal/config"
	"github.com/law-makers/dommap/internal/engine"
	"github.com/law-makers/dommap/internal/ui"
)

// Version is stamped at build time.
var Version = "0.1.0"

// shutdownTimeout bounds Application.Close after a command.
const shutdownTimeout = 10 * time.Second

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dommap",
	Short: "Map every applied CSS declaration onto a page's DOM",
	Long: `Dommap fetches a URL twice, once as a plain HTTP GET and once in a headless
browser, and returns both element trees. Every stylesheet the browser used is
parsed and its declarations are written onto the rendered elements they match.

The first !important value for a property wins; otherwise the last one seen
does. Values declared inside @media blocks keep their media query.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command under ctx and exits non-zero on failure.
// This is called by main.main().
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func init() {
	// Lazily initialize the application before running commands (avoid starting app for -h/help)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetAppFromCmd(cmd) != nil {
			return nil
		}

		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}

		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		SetApp(cmd, a)
		return nil
	}

	// Ensure app is closed after command runs
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return closeApp(cmd)
	}

	config.RegisterFlags(rootCmd)

	rootCmd.Flags().BoolP("help", "h", false, "Help for dommap")
	rootCmd.Flags().Bool("version", false, "Version for dommap")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.SetHelpFunc(helpFunc)
	rootCmd.SetUsageFunc(usageFunc)
}

// closeApp releases the browser pool, cache and log file. PersistentPostRun
// does not run when RunE fails, so commands defer it as well.
func closeApp(cmd *cobra.Command) error {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return nil
	}
	SetApp(cmd, nil)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("Shutdown was not clean")
	}
	return nil
}

func errNoApp(command string) error {
	return fmt.Errorf("%s: application not initialized", command)
}

// printError reports err on stderr, labelled with its engine code.
func printError(err error) {
	label := "error"
	if code := engine.CodeOf(err); code != "" {
		label = string(code)
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", ui.Error(label), err.Error())
}
