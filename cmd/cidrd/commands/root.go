// Package commands implements the cidrd CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "cidrd",
	Short: "cidrd - user-scoped CIDR listing service",
	Long: `cidrd maintains per-user DENY and SAFE lists of IPv4/IPv6 CIDRs backed
by PostgreSQL. Mutations flow through a durable job queue; enabled SAFE
coverage is carved out of DENY lists with exact prefix arithmetic.

Use "cidrd [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional, environment variables take precedence)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(userCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
