package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kandyfoma/hk-management-systems-sub000/internal/domain/protocol"
	"github.com/kandyfoma/hk-management-systems-sub000/internal/platform/db"
	"github.com/kandyfoma/hk-management-systems-sub000/internal/platform/snapshot"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ohs-server",
		Short:         "Occupational health protocol and checklist service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(syncCmd())
	root.AddCommand(lintCmd())
	root.AddCommand(resolveCmd())
	root.AddCommand(searchCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the hierarchy tables used by SYNC_SOURCE=postgres",
	}

	withMigrator := func(run func(ctx context.Context, m *db.Migrator, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()
			return run(ctx, db.NewMigrator(pool, db.Migrations()), cmd.OutOrStdout())
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator, out io.Writer) error {
			count, err := m.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(out, "Applied %d migration(s) successfully.\n", count)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator, out io.Writer) error {
			statuses, err := m.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(out, statuses)
			return nil
		}),
	})

	return cmd
}

func printMigrationStatus(out io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func syncCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch the hierarchy from SYNC_SOURCE and refresh the snapshot cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if a.source == nil {
				return fmt.Errorf("SYNC_SOURCE is not configured")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.SyncTimeout)
			defer cancel()

			out := cmd.OutOrStdout()
			if dryRun {
				return previewSync(ctx, a, out)
			}
			st := a.engine.Sync(ctx, a.source)
			if err := printJSON(out, st); err != nil {
				return err
			}
			if !st.OK {
				return fmt.Errorf("sync failed: %s", st.Reason)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the changes against the active snapshot without applying them")
	return cmd
}

// previewSync fetches from the source and prints a line diff against the
// active snapshot. Nothing is loaded or cached.
func previewSync(ctx context.Context, a *app, out io.Writer) error {
	sectors, err := a.source.FetchHierarchy(ctx)
	if err != nil {
		return fmt.Errorf("fetch hierarchy: %w", err)
	}
	catalog, err := a.source.FetchCatalog(ctx)
	if err != nil {
		return fmt.Errorf("fetch catalog: %w", err)
	}
	return writeSnapshotDiff(out, a.engine.Index().Snapshot(), protocol.Snapshot{Sectors: sectors, Catalog: catalog})
}

func writeSnapshotDiff(out io.Writer, current, incoming protocol.Snapshot) error {
	diff, err := snapshot.Diff(current, incoming)
	if err != nil {
		return err
	}
	if diff == "" {
		fmt.Fprintln(out, "No changes.")
		return nil
	}
	_, err = io.WriteString(out, diff)
	return err
}

func lintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Check the active hierarchy for dangling codes and duplicates",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			snap := a.engine.Index().Snapshot()
			report := protocol.Validate(snap.Sectors, snap.Catalog)
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Clean() {
				return fmt.Errorf("%d issue(s) found", report.IssueCount())
			}
			return nil
		},
	}
}

func resolveCmd() *cobra.Command {
	var position, visitType string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the exam protocol for a position and visit type",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd.OutOrStdout(), a.engine.Resolve(position, protocol.VisitType(visitType)))
		},
	}
	cmd.Flags().StringVar(&position, "position", "", "Position code")
	cmd.Flags().StringVar(&visitType, "visit-type", "", "Visit type, e.g. pre_employment")
	_ = cmd.MarkFlagRequired("position")
	_ = cmd.MarkFlagRequired("visit-type")
	return cmd
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search positions by name, code, department or sector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			for _, r := range a.engine.Search(args[0]) {
				fmt.Fprintf(out, "%3d  %-20s %-40s %s / %s\n",
					r.MatchScore, r.Position.Code, r.Position.Name, r.Sector.Name, r.Department.Name)
			}
			return nil
		},
	}
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// syncOnStart runs one background sync so the server can accept requests on
// the bundled or cached snapshot meanwhile.
func syncOnStart(a *app) {
	if a.source == nil || !a.cfg.SyncOnStart {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.SyncTimeout)
		defer cancel()
		start := time.Now()
		st := a.engine.Sync(ctx, a.source)
		a.logger.Debug().Bool("ok", st.OK).Dur("elapsed", time.Since(start)).Msg("startup sync finished")
	}()
}
