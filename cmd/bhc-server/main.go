package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/barangay/bhc/internal/config"
	"github.com/barangay/bhc/internal/domain/identity"
	"github.com/barangay/bhc/internal/domain/scheduling"
	"github.com/barangay/bhc/internal/platform/db"
	"github.com/barangay/bhc/internal/platform/sandbox"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bhc-server",
		Short: "Barangay health center API server",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(tenantCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// withMigrator loads the config, opens a pool and hands a migrator to fn.
func withMigrator(fn func(ctx context.Context, m *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, db.NewMigrator(pool))
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", schema)
				count, err := m.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printStatus(cmd.OutOrStdout(), schema, statuses)
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				if err := m.Down(ctx, schema); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back one migration on schema: %s\n", schema)
				return nil
			})
		},
	}

	for _, c := range []*cobra.Command{upCmd, statusCmd, downCmd} {
		c.Flags().String("schema", db.SchemaName("default"), "Target schema for migrations")
		cmd.AddCommand(c)
	}
	return cmd
}

func printStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func tenantName(cmd *cobra.Command) (string, error) {
	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		return "", fmt.Errorf("--name is required")
	}
	if !db.ValidTenantID(name) {
		return "", fmt.Errorf("invalid tenant name %q: use lowercase letters, digits and underscores", name)
	}
	return name, nil
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage barangay tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create and migrate a schema for a barangay",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := tenantName(cmd)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Creating tenant schema: %s\n", db.SchemaName(name))
			if err := db.CreateTenantSchema(ctx, pool, name); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Tenant created and migrated.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (lowercase letters, digits, underscores)")

	defaults := sandbox.DefaultSeedConfig()
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo patients, staff and clinic hours into a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := tenantName(cmd)
			if err != nil {
				return err
			}
			seedCfg := defaults
			seedCfg.Patients, _ = cmd.Flags().GetInt("patients")
			seedCfg.Doctors, _ = cmd.Flags().GetInt("doctors")
			seedCfg.Nurses, _ = cmd.Flags().GetInt("nurses")
			seedCfg.Barangay, _ = cmd.Flags().GetString("barangay")
			seedCfg.Seed, _ = cmd.Flags().GetInt64("seed")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			tenantCtx, release, err := db.AcquireTenant(ctx, pool, name)
			if err != nil {
				return err
			}
			defer release()

			logger := newLogger(cfg.Env, cmd.ErrOrStderr())
			identitySvc := identity.NewService(identity.NewPatientRepoPG(pool), identity.NewStaffRepoPG(pool),
				identity.WithLogger(logger))
			schedulingSvc := scheduling.NewService(
				scheduling.NewAvailabilityRepoPG(pool),
				scheduling.NewConsultationTypeRepoPG(pool),
				scheduling.NewAppointmentRepoPG(pool),
				scheduling.NewSlotHoldRepoPG(pool),
				scheduling.WithLogger(logger),
			)

			result, err := sandbox.NewSeeder(identitySvc, schedulingSvc, seedCfg, sandbox.WithLogger(logger)).Run(tenantCtx)
			if err != nil {
				return fmt.Errorf("seed %s: %w", db.SchemaName(name), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %s: %d patients, %d staff, %d schedules.\n",
				db.SchemaName(name), result.Patients, result.Staff, result.Schedules)
			return nil
		},
	}
	seedCmd.Flags().String("name", "", "Tenant identifier")
	seedCmd.Flags().Int("patients", defaults.Patients, "Number of patients to register")
	seedCmd.Flags().Int("doctors", defaults.Doctors, "Number of doctors, each with clinic hours")
	seedCmd.Flags().Int("nurses", defaults.Nurses, "Number of nurses")
	seedCmd.Flags().String("barangay", defaults.Barangay, "Barangay printed on patient addresses")
	seedCmd.Flags().Int64("seed", defaults.Seed, "Random seed; 0 picks one from the clock")

	cmd.AddCommand(createCmd)
	cmd.AddCommand(seedCmd)
	return cmd
}
