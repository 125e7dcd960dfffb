package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Log in JSON format")
	cmd.PersistentFlags().String("log-file", "", "Also write logs to a rotating file")
	cmd.PersistentFlags().String("proxy", "", "Set HTTP/SOCKS5 proxy (e.g., http://localhost:8080)")
	cmd.PersistentFlags().String("timeout", DefaultHTTPTimeout.String(), "Hard timeout for each fetch")
	cmd.PersistentFlags().String("idle-timeout", DefaultNetworkIdleTimeout.String(), "How long to wait for the rendered page's network to go idle")
	cmd.PersistentFlags().String("user-agent", "", "Custom user agent string")
	cmd.PersistentFlags().String("chrome-path", "", "Path to the Chrome/Chromium executable")
	cmd.PersistentFlags().Bool("headed", false, "Show the browser window")
	cmd.PersistentFlags().String("config", "", "Path to configuration file (optional)")
}
