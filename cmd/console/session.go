package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/pedidos-console/internal/auth"
	"github.com/spec-kit/pedidos-console/internal/notify"
)

// withApplication runs fn against a non-interactive session core.
func withApplication(fn func(ctx context.Context, app *application) error) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, logger, notify.NewLogNotifier(logger), false)
	if err != nil {
		return err
	}
	defer app.release()
	return fn(ctx, app)
}

func loginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Long: `Log in against the configured auth provider and persist the token in
the session store. The password is read from stdin when --password is
not given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				if password, err = readLine(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			return withApplication(func(ctx context.Context, app *application) error {
				if err := app.auth.Login(ctx, auth.Credentials{Username: username, Password: password}); err != nil {
					return err
				}
				snap := app.auth.Snapshot(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (roles: %s)\n", snap.Subject, strings.Join(snap.Roles, ", "))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Operator username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Operator password")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(func(ctx context.Context, app *application) error {
				app.auth.Init(ctx)
				app.auth.Logout(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), "logged out")
				return nil
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the stored session status",
		Long:  `Print the stored session status as JSON. A stale session is cleared silently.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(func(ctx context.Context, app *application) error {
				app.auth.Init(ctx)
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(app.auth.Snapshot(ctx))
			})
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for AUTH_DEV_PASSWORD_HASH",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				var err error
				if password, err = readLine(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			hash, err := auth.HashPassword(password, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().IntVarP(&cost, "cost", "c", 0, "bcrypt cost (default bcrypt.DefaultCost)")
	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password required")
	}
	return line, nil
}
