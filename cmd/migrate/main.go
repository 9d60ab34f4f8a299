package main

import (
	"ArtistExchange/internal/persistence"
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"os"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	dsn string
	dir string
}

// openDB is replaced in tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("postgres", dsn)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the artist exchange Postgres schema",
		Long: `Applies and rolls back the event log, snapshot and artist metadata schema.

Migrations compiled into the binary are used unless --dir points at a
directory of {version}_{name}.up.sql / .down.sql files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.dsn, "dsn",
		envOrDefault("POSTGRES_URL", "postgres://localhost:5432/artistexchange?sslmode=disable"),
		"Postgres connection string (env POSTGRES_URL)")
	root.PersistentFlags().StringVar(&flags.dir, "dir", os.Getenv("MIGRATIONS_DIR"),
		"migrations directory (env MIGRATIONS_DIR, default: embedded)")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), flags, func(ctx context.Context, m *persistence.Migrator) error {
					n, err := m.Up(ctx)
					if err != nil {
						return fmt.Errorf("migrate up: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last applied migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), flags, func(ctx context.Context, m *persistence.Migrator) error {
					rolled, err := m.Down(ctx)
					if err != nil {
						return fmt.Errorf("migrate down: %w", err)
					}
					if !rolled {
						fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
						return nil
					}
					fmt.Fprintln(cmd.OutOrStdout(), "last migration rolled back")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), flags, func(ctx context.Context, m *persistence.Migrator) error {
					pending, err := m.Pending(ctx)
					if err != nil {
						return fmt.Errorf("migrate status: %w", err)
					}
					printPending(cmd.OutOrStdout(), pending)
					return nil
				})
			},
		},
	)
	return root
}

func withMigrator(ctx context.Context, flags *globalFlags, fn func(context.Context, *persistence.Migrator) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := openDB(flags.dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	var files fs.FS = persistence.EmbeddedMigrations()
	if flags.dir != "" {
		files = os.DirFS(flags.dir)
	}
	return fn(ctx, persistence.NewMigrator(db, files))
}

func printPending(w io.Writer, pending []string) {
	if len(pending) == 0 {
		fmt.Fprintln(w, "schema is up to date")
		return
	}
	fmt.Fprintf(w, "%d pending migration(s):\n", len(pending))
	for _, f := range pending {
		fmt.Fprintf(w, "  %s\n", f)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
