package main

import (
	"github.com/spf13/cobra"

	"github.com/user/ficticia-go/config"
	"github.com/user/ficticia-go/db"
	"github.com/user/ficticia-go/logging"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(func(m *db.Migrator) error {
					if err := m.Up(); err != nil {
						return err
					}
					cmd.Println("migrations applied")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration (drops all identity data)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(func(m *db.Migrator) error {
					if err := m.Down(); err != nil {
						return err
					}
					cmd.Println("migrations rolled back")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(func(m *db.Migrator) error {
					v, dirty, err := m.Version()
					if err != nil {
						return err
					}
					cmd.Printf("version %d (dirty: %t)\n", v, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func withMigrator(fn func(*db.Migrator) error) (err error) {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return err
	}
	dbCfg, logCfg, err := config.LoadDatabaseConfig()
	if err != nil {
		return err
	}
	logging.SetDefault(serviceName, version, logCfg.Format, logCfg.Level)

	m, err := db.NewMigrator(dbCfg.DSN())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(m)
}
