package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/visa-checker/internal/auth"
	"github.com/example/visa-checker/internal/config"
	"github.com/example/visa-checker/internal/db"
	"github.com/example/visa-checker/internal/logging"
	"github.com/example/visa-checker/internal/migrate"
	"github.com/example/visa-checker/internal/notify"
	"github.com/example/visa-checker/internal/portal/httpdriver"
	"github.com/example/visa-checker/internal/queue"
	"github.com/example/visa-checker/internal/session"
	"github.com/example/visa-checker/internal/store"
	"github.com/example/visa-checker/internal/tracker"
	"github.com/example/visa-checker/internal/web"
)

func newRunCmd() *cobra.Command {
	var (
		migrateUp bool
		logFile   string
		dev       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the availability checker and the status UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if logFile == "" {
				logFile = cfg.LogFile
			}

			log, err := logging.New(logFile, dev)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if cfg.UserEmail == "" || cfg.UserPassword == "" {
				return fmt.Errorf("VISA_USER_EMAIL and VISA_USER_PW are required")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}
			if migrateUp {
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
			}

			repo := store.New(d)
			authStore := auth.NewStore(repo, cfg.SessionHashKey, cfg.SessionBlockKey)

			var notifier notify.Notifier = notify.Nop{}
			if cfg.NtfyTopic != "" {
				notifier = notify.NewNtfy(cfg.NtfyTopic)
			} else {
				log.Warn("NTFY_TOPIC not set, notifications disabled")
			}

			q := queue.New(cfg.Cities, log)
			timing := session.DefaultTiming()

			t := &tracker.Tracker{
				Store:      repo,
				Notifier:   notifier,
				Queue:      q,
				Preference: cfg.Preference(),
				Timing:     timing,
				Log:        log,
				NewSession: func() tracker.Session {
					driver := httpdriver.New(httpdriver.Options{Logger: log})
					return session.New(driver, session.Options{
						SignInURL: cfg.PortalURL,
						Email:     cfg.UserEmail,
						Password:  cfg.UserPassword,
						Cities:    cfg.Cities,
						Timing:    timing,
						Logger:    log,
					})
				},
			}

			ws := &web.Server{Auth: authStore, Store: repo, Queue: q, Cities: cfg.Cities, Log: log}

			errc := make(chan error, 2)
			go func() { errc <- t.Run(ctx) }()
			go func() { errc <- web.Start(ctx, cfg.HTTPAddr, ws.Routes()) }()

			err = <-errc
			cancel()
			if err != nil && ctx.Err() == nil {
				log.Error("exiting on fatal error", zap.Error(err))
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().StringVar(&logFile, "log", "", "also write logs to this file")
	cmd.Flags().BoolVar(&dev, "dev", false, "human-readable console logging")

	return cmd
}
