package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Emit logs as JSON")
	cmd.PersistentFlags().String("proxy", "", "HTTP/SOCKS5 proxy (e.g., http://localhost:8080)")
	cmd.PersistentFlags().String("timeout", "10s", "Per-request timeout")
	cmd.PersistentFlags().String("deadline", "", "Overall run deadline (e.g., 30m); empty means none")
	cmd.PersistentFlags().String("user-agent", "", "Custom user agent string")
	cmd.PersistentFlags().Int("max-groups", DefaultMaxGroups, "Max concurrent groups (categories)")
	cmd.PersistentFlags().Int("max-pages", DefaultMaxPagesPerGroup, "Max concurrent pages within a group")
	cmd.PersistentFlags().Int("max-attempts", DefaultMaxAttempts, "Max fetch attempts per unit")
	cmd.PersistentFlags().String("output-dir", DefaultOutputDir, "Directory for output files")
	cmd.PersistentFlags().Bool("no-pacing", false, "Disable anti-blocking delays (local testing only)")
	cmd.PersistentFlags().String("pg-dsn", "", "Postgres DSN; enables the database sink")
	cmd.PersistentFlags().String("pg-table", "", "Postgres target table (default harvest_records)")
}
