package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/ficticia-go/auth"
	"github.com/user/ficticia-go/auth/memory"
	"github.com/user/ficticia-go/auth/postgres"
	"github.com/user/ficticia-go/background"
	"github.com/user/ficticia-go/config"
	"github.com/user/ficticia-go/db"
	"github.com/user/ficticia-go/logging"
	"github.com/user/ficticia-go/mail"
	"github.com/user/ficticia-go/observability"
	"github.com/user/ficticia-go/users"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var inMemory bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := runServe(cmd.Context(), cfg, logger, inMemory); err != nil {
				logging.LogError(cmd.Context(), logger, "server exited with error", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&inMemory, "memory", false, "keep accounts in memory instead of PostgreSQL (local development only)")
	return cmd
}

// stores groups the persistence backends chosen at startup.
type stores struct {
	users auth.CredentialStore
	roles auth.RoleStore
	close func()
}

func openStores(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger, inMemory bool) (*stores, error) {
	if inMemory {
		logger.WarnContext(ctx, "using in-memory stores, data is lost on exit")
		return &stores{users: memory.NewUserStore(), roles: memory.NewRoleStore(), close: func() {}}, nil
	}

	if cfg.AutoMigrate {
		if err := db.RunMigrations(cfg.DSN()); err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "database migrations applied")
	}

	pool, err := db.NewPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &stores{
		users: postgres.NewUserStore(pool),
		roles: postgres.NewRoleStore(pool),
		close: pool.Close,
	}, nil
}

func newMailer(ctx context.Context, cfg config.MailConfig, logger *slog.Logger) (auth.Mailer, error) {
	mail.LogConfiguration(ctx, logger, cfg)
	if !cfg.Enabled() {
		return mail.NewLogMailer(logger), nil
	}
	return mail.NewSMTPMailer(cfg, logger)
}

func runServe(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger, inMemory bool) error {
	st, err := openStores(ctx, cfg.Database, logger, inMemory)
	if err != nil {
		return err
	}
	defer st.close()

	if err := auth.EnsureRoles(ctx, st.roles, auth.RoleAdmin, auth.RoleUser, cfg.Auth.DefaultRole); err != nil {
		return err
	}

	mailer, err := newMailer(ctx, cfg.Mail, logger)
	if err != nil {
		return err
	}

	registry := observability.NewRegistry()
	metrics := observability.NewMetrics(registry)

	codec, err := auth.NewJWTCodec([]byte(cfg.Auth.JWTSecret), cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	authService, err := auth.NewAuthService(st.users, st.roles, auth.NewBcryptHasher(cfg.Auth.BcryptCost), codec, mailer, cfg.Auth,
		auth.WithLogger(logger),
		auth.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	handler := newRouter(routerDeps{
		Server:   cfg.Server,
		Logger:   logger,
		Auth:     auth.NewHandlers(authService),
		Users:    users.NewUserHandlers(users.NewUserService(st.users, st.roles)),
		Codec:    codec,
		Resolver: authService,
		Metrics:  metrics,
		Registry: registry,
	})

	sweeper := background.NewResetTokenSweeper(st.users, cfg.Auth.SweepInterval, logger, metrics)
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer func() {
		stopSweeper()
		sweeper.Wait()
	}()
	sweeper.Start(sweepCtx)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "server starting", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}
