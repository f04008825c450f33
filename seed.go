package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/user/ficticia-go/auth"
	"github.com/user/ficticia-go/mail"
)

func newSeedCmd() *cobra.Command {
	var skipAdmin bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the default roles and the bootstrap administrator",
		Long: `Creates ROLE_ADMIN, ROLE_USER and the configured default role if they are missing,
then creates the administrator named by ADMIN_USERNAME/ADMIN_EMAIL unless it exists.
When ADMIN_PASSWORD is empty the password is read from the terminal.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := openStores(ctx, cfg.Database, logger, false)
			if err != nil {
				return err
			}
			defer st.close()

			if err := auth.EnsureRoles(ctx, st.roles, auth.RoleAdmin, auth.RoleUser, cfg.Auth.DefaultRole); err != nil {
				return err
			}
			cmd.Println("roles ready")
			if skipAdmin {
				return nil
			}

			password := cfg.Seed.AdminPassword
			if password == "" {
				if password, err = promptPassword(cfg.Seed.AdminUsername); err != nil {
					return err
				}
			}

			codec, err := auth.NewJWTCodec([]byte(cfg.Auth.JWTSecret), cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL)
			if err != nil {
				return err
			}
			svc, err := auth.NewAuthService(st.users, st.roles, auth.NewBcryptHasher(cfg.Auth.BcryptCost), codec,
				mail.NewLogMailer(logger), cfg.Auth, auth.WithLogger(logger))
			if err != nil {
				return err
			}

			created, err := svc.EnsureAdmin(ctx, cfg.Seed.AdminUsername, cfg.Seed.AdminEmail, password)
			if err != nil {
				return err
			}
			if created {
				cmd.Printf("administrator %q created\n", cfg.Seed.AdminUsername)
			} else {
				cmd.Printf("administrator %q already exists\n", cfg.Seed.AdminUsername)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipAdmin, "roles-only", false, "only create the roles")
	return cmd
}

func promptPassword(username string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("ADMIN_PASSWORD is empty and stdin is not a terminal")
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", username)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimSpace(string(raw))
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	return password, nil
}
