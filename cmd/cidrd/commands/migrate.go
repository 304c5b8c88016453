package commands

import (
	"github.com/spf13/cobra"

	"github.com/aomanu/cidrd/internal/logger"
	"github.com/aomanu/cidrd/pkg/config"
	"github.com/aomanu/cidrd/pkg/store/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply pending database migrations and exit. Useful when the server
runs with auto-migrate disabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := logger.Init(logger.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
		}); err != nil {
			return err
		}
		return postgres.RunMigrations(cmd.Context(), cfg.Database.DSN())
	},
}
