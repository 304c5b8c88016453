package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aomanu/cidrd/internal/logger"
	"github.com/aomanu/cidrd/pkg/config"
	"github.com/aomanu/cidrd/pkg/models"
	"github.com/aomanu/cidrd/pkg/store/postgres"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var (
	userAddLogin    string
	userAddPassword string
	userAddRole     string
)

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a user account",
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

		role := models.Role(userAddRole)
		if role != models.RoleUser && role != models.RoleSuperuser {
			return fmt.Errorf("role must be USER or SUPERUSER, got %q", userAddRole)
		}
		if !models.ValidatePassword(userAddPassword) {
			return fmt.Errorf("password must be 10-64 characters with a lowercase letter, an uppercase letter and a digit")
		}

		salt, hash, err := models.HashPassword(userAddPassword)
		if err != nil {
			return err
		}
		user := &models.User{
			ID:             uuid.New(),
			Login:          userAddLogin,
			Salt:           salt,
			HashedPassword: hash,
			Role:           role,
		}
		if err := models.Validate(user); err != nil {
			return fmt.Errorf("invalid login %q: %w", userAddLogin, err)
		}

		store, err := postgres.New(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.CreateUser(cmd.Context(), user); err != nil {
			return err
		}
		fmt.Printf("created user %s (%s)\n", user.Login, user.Role)
		return nil
	},
}

func init() {
	userAddCmd.Flags().StringVar(&userAddLogin, "login", "", "account login")
	userAddCmd.Flags().StringVar(&userAddPassword, "password", "", "account password")
	userAddCmd.Flags().StringVar(&userAddRole, "role", string(models.RoleUser), "account role (USER or SUPERUSER)")
	_ = userAddCmd.MarkFlagRequired("login")
	_ = userAddCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userAddCmd)
}
