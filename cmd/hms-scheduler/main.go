package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hms/scheduler/internal/config"
	"github.com/hms/scheduler/internal/domain/scheduling"
	"github.com/hms/scheduler/internal/platform/db"
	"github.com/hms/scheduler/migrations"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hms-scheduler",
		Short: "Doctor scheduling and slot availability service",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(importHoursCmd())
	root.AddCommand(availabilityCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduling API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	reg := newRegistry()
	svc, err := buildServices(ctx, cfg, logger, reg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start services")
		return err
	}
	defer svc.Close()

	e := newServer(cfg, logger, svc, reg)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("backend", cfg.StoreBackend).Str("capacity_mode", cfg.CapacityMode).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func migrationsFS(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(cmd.Context(), dir, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "", "Migrations directory (defaults to the embedded set)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(cmd.Context(), dir, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printMigrationStatus(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "", "Migrations directory (defaults to the embedded set)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func withMigrator(ctx context.Context, dir string, fn func(context.Context, *db.Migrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.StoreBackend != config.BackendPostgres {
		return fmt.Errorf("migrations need STORE_BACKEND=%s", config.BackendPostgres)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, db.NewMigrator(pool, migrationsFS(dir), newLogger(cfg)))
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
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

func importHoursCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-hours",
		Short: "Convert legacy working-hours records into weekly schedules",
		Long: `Convert legacy working-hours records into weekly schedules.

With STORE_BACKEND=memory nothing is persisted: the file is converted and
validated against the doctor directory as a dry run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			from, _ := cmd.Flags().GetString("valid-from")
			slot, _ := cmd.Flags().GetInt("slot-minutes")
			perSlot, _ := cmd.Flags().GetInt("per-slot")
			mode, _ := cmd.Flags().GetString("mode")
			room, _ := cmd.Flags().GetString("room")

			defaults := scheduling.LegacyDefaults{
				SlotDurationMinutes: slot,
				MaxPatientsPerSlot:  perSlot,
				ConsultationMode:    scheduling.ConsultationMode(mode),
				RoomNumber:          strings.TrimSpace(room),
			}
			if !defaults.ConsultationMode.Valid() {
				return fmt.Errorf("--mode must be one of in-person, online, both")
			}
			if defaults.ConsultationMode.IncludesInPerson() && defaults.RoomNumber == "" {
				return fmt.Errorf("--room is required for --mode %s", mode)
			}
			if from == "" {
				defaults.ValidFrom = scheduling.DateOf(time.Now())
			} else {
				d, err := scheduling.ParseDate(from)
				if err != nil {
					return fmt.Errorf("--valid-from: %w", err)
				}
				defaults.ValidFrom = d
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			records, err := scheduling.ParseLegacyFile(data)
			if err != nil {
				return err
			}

			return withServices(cmd.Context(), func(ctx context.Context, cfg *config.Config, svc *services) error {
				n, err := svc.editor.ImportLegacy(ctx, records, defaults)
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d schedule(s) for %d doctor record(s).\n", n, len(records))
				if cfg.StoreBackend == config.BackendMemory {
					fmt.Fprintln(cmd.OutOrStdout(), "Dry run: STORE_BACKEND=memory, nothing was persisted.")
				}
				return err
			})
		},
	}
	cmd.Flags().String("file", "", "JSON array of {doctor_id, working_hours} records")
	cmd.Flags().String("valid-from", "", "First day the imported schedules apply (YYYY-MM-DD, default today)")
	cmd.Flags().Int("slot-minutes", 15, "Slot duration for imported schedules")
	cmd.Flags().Int("per-slot", 1, "Patients per slot for imported schedules")
	cmd.Flags().String("mode", string(scheduling.ModeInPerson), "Consultation mode for imported schedules")
	cmd.Flags().String("room", "", "Room for imported schedules (required unless --mode online)")
	return cmd
}

func availabilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Print a doctor's slots for one date",
		Long: `Print a doctor's slots for one date from the PostgreSQL store.

The in-memory backend starts empty in every process, so it is rejected here.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, _ := cmd.Flags().GetString("doctor")
			dateStr, _ := cmd.Flags().GetString("date")
			if doctorID == "" || dateStr == "" {
				return fmt.Errorf("--doctor and --date are required")
			}
			date, err := scheduling.ParseDate(dateStr)
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}
			return withServices(cmd.Context(), func(ctx context.Context, cfg *config.Config, svc *services) error {
				if cfg.StoreBackend == config.BackendMemory {
					return fmt.Errorf("availability needs STORE_BACKEND=%s; the memory store is empty in a new process", config.BackendPostgres)
				}
				a, err := svc.avail.GetAvailability(ctx, doctorID, date)
				if err != nil {
					return err
				}
				printAvailability(cmd.OutOrStdout(), a)
				return nil
			})
		},
	}
	cmd.Flags().String("doctor", "", "Doctor id")
	cmd.Flags().String("date", "", "Date (YYYY-MM-DD)")
	return cmd
}

// withServices runs fn against the configured store with logging at warn level.
func withServices(ctx context.Context, fn func(context.Context, *config.Config, *services) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cfg).Level(zerolog.WarnLevel)
	svc, err := buildServices(ctx, cfg, logger, newRegistry())
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(ctx, cfg, svc)
}

func printAvailability(w io.Writer, a *scheduling.Availability) {
	if a.IsLeave {
		fmt.Fprintf(w, "%s is on leave on %s\n", a.DoctorID, a.Date)
		return
	}
	if len(a.Slots) == 0 {
		fmt.Fprintf(w, "%s has no slots on %s\n", a.DoctorID, a.Date)
		return
	}
	fmt.Fprintf(w, "%-13s %-10s %-8s %-10s %s\n", "SLOT", "STATUS", "BOOKED", "MODE", "ROOM")
	for _, s := range a.Slots {
		fmt.Fprintf(w, "%-13s %-10s %-8s %-10s %s\n",
			s.Window(), s.Status, fmt.Sprintf("%d/%d", s.BookedCount, s.Capacity), s.ConsultationMode, s.RoomNumber)
	}
}
