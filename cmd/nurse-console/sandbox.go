package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"github.com/schoolhealth/nurse-console/internal/platform/auth"
	"github.com/schoolhealth/nurse-console/internal/platform/db"
	"github.com/schoolhealth/nurse-console/internal/platform/middleware"
	"github.com/schoolhealth/nurse-console/internal/platform/sandbox"
)

const sandboxIssuer = "nurse-console-sandbox"

func sandboxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run the backend used for development and demos",
	}
	cmd.AddCommand(sandboxServeCmd(a))
	cmd.AddCommand(sandboxMigrateCmd(a))
	cmd.AddCommand(sandboxTokenCmd(a))
	return cmd
}

func sandboxServeCmd(a *app) *cobra.Command {
	var (
		addr      string
		seed      bool
		seedValue int64
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sandbox API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = ":" + a.cfg.SandboxPort
			}
			opts := sandbox.Options{
				Addr:             addr,
				Issuer:           sandboxIssuer,
				CORSOrigins:      a.cfg.CORSOrigins,
				RateLimit:        middleware.DefaultRateLimitConfig(),
				Thresholds:       a.thresholds(),
				MinJustification: a.cfg.MinJustificationLength,
				Clock:            clock.RealClock{},
				Logger:           a.logger,
			}
			if !a.verbose {
				opts.Logger = a.logger.Level(zerolog.InfoLevel)
			}
			if key := a.cfg.SandboxSigningKey; key != "" {
				opts.SigningKey = []byte(key)
				opts.IssueTokens = a.cfg.IsDev()
			} else {
				opts.DevAuth = true
				a.logger.Warn().Msg("no SANDBOX_SIGNING_KEY set, every request is treated as an admin")
			}
			if !cmd.Flags().Changed("seed") {
				seed = a.cfg.SandboxSeed
			}
			if seed {
				sc := sandbox.DefaultSeedConfig()
				if seedValue != 0 {
					sc.Seed = seedValue
				}
				opts.Seed = &sc
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if a.cfg.SandboxDatabaseURL != "" {
				pool, err := a.openDatabase(ctx)
				if err != nil {
					return err
				}
				defer pool.Close()
				applied, err := db.NewMigrator(pool, db.Migrations()).Up(ctx)
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				a.logger.Info().Int("applied", applied).Msg("database schema up to date")
				opts.Pool = pool
			}
			srv, err := sandbox.New(ctx, opts)
			if err != nil {
				return err
			}
			if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to :SANDBOX_PORT)")
	cmd.Flags().BoolVar(&seed, "seed", true, "generate sample records on start (see SANDBOX_SEED)")
	cmd.Flags().Int64Var(&seedValue, "seed-value", 0, "random seed for generated records")
	return cmd
}

func sandboxMigrateCmd(a *app) *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations (SANDBOX_DATABASE_URL)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.SandboxDatabaseURL == "" {
				return errors.New("SANDBOX_DATABASE_URL is not set")
			}
			ctx := cmd.Context()
			pool, err := a.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			m := db.NewMigrator(pool, db.Migrations())
			if !status {
				applied, err := m.Up(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Applied %d migration(s)\n", applied)
				return nil
			}

			statuses, err := m.Status(ctx)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, statuses)
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
			for _, st := range statuses {
				applied := "pending"
				if st.Applied && st.AppliedAt != nil {
					applied = st.AppliedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%03d\t%s\t%s\n", st.Version, st.Name, applied)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "list migrations instead of applying them")
	return cmd
}

func (a *app) openDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := db.NewPool(ctx, a.cfg.SandboxDatabaseURL, a.cfg.DBMaxConns, a.cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return pool, nil
}

func sandboxTokenCmd(a *app) *cobra.Command {
	var (
		subject string
		name    string
		roles   []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for the sandbox with SANDBOX_SIGNING_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.SandboxSigningKey == "" {
				return errors.New("SANDBOX_SIGNING_KEY is not set")
			}
			for _, r := range roles {
				switch r {
				case auth.RoleNurse, auth.RoleStaff, auth.RoleAdmin:
				default:
					return fmt.Errorf("unknown role %q", r)
				}
			}
			token, err := auth.IssueToken([]byte(a.cfg.SandboxSigningKey), auth.TokenRequest{
				Subject: subject,
				Name:    name,
				Roles:   roles,
				Issuer:  sandboxIssuer,
				TTL:     ttl,
			}, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "nurse-1", "user id carried in the token")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringSliceVar(&roles, "role", []string{auth.RoleNurse}, "roles: nurse, staff or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")
	return cmd
}
