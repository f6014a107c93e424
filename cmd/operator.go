package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/example/visa-checker/internal/auth"
	"github.com/example/visa-checker/internal/config"
	"github.com/example/visa-checker/internal/db"
	"github.com/example/visa-checker/internal/migrate"
	"github.com/example/visa-checker/internal/store"
)

func newOperatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage status-UI operator accounts",
	}
	cmd.AddCommand(newOperatorCreateCmd())
	return cmd
}

func newOperatorCreateCmd() *cobra.Command {
	var username string

	c := &cobra.Command{
		Use:   "create",
		Short: "Create an operator account for the status UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := migrate.Up(ctx, d); err != nil {
				return err
			}

			fmt.Fprint(os.Stderr, "Password: ")
			pw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}

			hash, err := auth.HashPassword(string(pw))
			if err != nil {
				return err
			}
			if err := store.New(d).CreateOperator(ctx, username, hash); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created operator %q\n", username)
			return nil
		},
	}

	c.Flags().StringVar(&username, "username", "", "operator username")
	_ = c.MarkFlagRequired("username")
	return c
}
