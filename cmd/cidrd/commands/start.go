package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aomanu/cidrd/internal/api"
	apiauth "github.com/aomanu/cidrd/internal/api/auth"
	"github.com/aomanu/cidrd/internal/logger"
	"github.com/aomanu/cidrd/pkg/config"
	"github.com/aomanu/cidrd/pkg/metrics"
	"github.com/aomanu/cidrd/pkg/models"
	"github.com/aomanu/cidrd/pkg/scheduler"
	"github.com/aomanu/cidrd/pkg/store/postgres"
	"github.com/aomanu/cidrd/pkg/worker"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the cidrd server",
	Long: `Start the API server together with the job queue worker and the TTL
reaper. The process runs until SIGINT or SIGTERM and then shuts down
gracefully.`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := bootstrapAdmin(ctx, store, cfg.Admin); err != nil {
		return err
	}

	tokens, err := apiauth.NewService(apiauth.Config{
		Secret:   cfg.Auth.JWTSecret,
		TokenTTL: cfg.Auth.TokenTTL,
	})
	if err != nil {
		return err
	}

	m := metrics.New()
	router := api.NewRouter(api.Deps{
		Store:   store,
		Tokens:  tokens,
		Cache:   apiauth.NewTokenCache(cfg.Auth.CacheTTL),
		Metrics: m,
		DB:      store,
		Config:  cfg.API,
		Cookie:  cfg.Auth.CookieName,
	})
	server := api.NewServer(cfg.API, router)
	jobWorker := worker.New(store, m, cfg.Worker.QueryInterval, cfg.OnlyGlobalCidrs)
	reaper := scheduler.New(store, m, cfg.Scheduler.DeleteExpiredInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx) })
	g.Go(func() error { jobWorker.Run(gctx); return nil })
	g.Go(func() error { reaper.Run(gctx); return nil })

	logger.Info("cidrd started", "version", Version)
	err = g.Wait()
	logger.Info("cidrd stopped")
	return err
}

// bootstrapAdmin creates the initial superuser when both credentials are
// configured and the account does not exist yet.
func bootstrapAdmin(ctx context.Context, store *postgres.Store, cfg config.AdminConfig) error {
	if cfg.Login == "" || cfg.Password == "" {
		return nil
	}

	_, err := store.GetUserByLogin(ctx, cfg.Login)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return err
	}

	salt, hash, err := models.HashPassword(cfg.Password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	admin := &models.User{
		ID:             uuid.New(),
		Login:          cfg.Login,
		Salt:           salt,
		HashedPassword: hash,
		Role:           models.RoleSuperuser,
	}
	if err := models.Validate(admin); err != nil {
		return fmt.Errorf("invalid admin login: %w", err)
	}
	if err := store.CreateUser(ctx, admin); err != nil {
		if errors.Is(err, models.ErrDuplicateUser) {
			return nil
		}
		return err
	}
	logger.Info("created default admin user", "login", cfg.Login)
	return nil
}
