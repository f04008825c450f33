// This is the main entry point of the ficticia identity service.
// It builds a cobra command tree with three commands: `serve` runs the HTTP API,
// `migrate` manages the database schema and `seed` provisions roles and the
// bootstrap administrator. Each command loads configuration, wires dependencies by
// hand and runs until done or until SIGINT/SIGTERM arrives.
//
// Analogy to Nest.js: `serve` is `main.ts` bootstrapping the application, while
// `migrate` and `seed` are the CLI scripts usually kept next to it.
//
// @title Ficticia Identity API
// @version 1.0
// @description Registration, login and password reset for Ficticia employees.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type 'Bearer YOUR_JWT_TOKEN' to authorize
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/ficticia-go/config"
	"github.com/user/ficticia-go/logging"
)

const serviceName = "ficticia-identity"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// envFiles is the list of dotenv files loaded before configuration is parsed.
var envFiles []string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ficticia",
		Short:        "Ficticia identity service",
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load (missing files are ignored)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSeedCmd())
	return cmd
}

// loadConfig reads dotenv files and the full configuration, then installs the default logger.
func loadConfig() (*config.AppConfig, *slog.Logger, error) {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, cfg.Log.Level)
	return cfg, logger, nil
}
