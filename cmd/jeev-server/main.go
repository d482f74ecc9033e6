package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jeev/jeev/internal/config"
	"github.com/jeev/jeev/internal/domain/account"
	"github.com/jeev/jeev/internal/domain/portal"
	"github.com/jeev/jeev/internal/domain/record"
	"github.com/jeev/jeev/internal/platform/cache"
	"github.com/jeev/jeev/internal/platform/db"
	"github.com/jeev/jeev/internal/platform/hipaa"
	"github.com/jeev/jeev/internal/platform/kv"
	"github.com/jeev/jeev/internal/platform/middleware"
	"github.com/jeev/jeev/internal/platform/openapi"
	"github.com/jeev/jeev/internal/platform/sandbox"
	"github.com/jeev/jeev/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "jeev-server",
		Short: "Jeev health-record API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(auditCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
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

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run Postgres migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printStatus(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	})

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo accounts and records into the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env, os.Stderr)

			st, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.close()

			seedCfg := sandbox.DefaultSeedConfig()
			seedCfg.PatientCount, _ = cmd.Flags().GetInt("patients")
			seedCfg.HospitalCount, _ = cmd.Flags().GetInt("hospitals")
			seedCfg.RecordsPerPatient, _ = cmd.Flags().GetInt("records")
			seedCfg.Seed, _ = cmd.Flags().GetInt64("seed")

			svc := portal.NewService(st.users, st.records, logger)
			result, err := sandbox.NewSeeder(svc, logger).Seed(cmd.Context(), seedCfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d patient(s), %d hospital user(s), %d record(s); skipped %d.\n",
				len(result.Patients), len(result.Hospitals), result.Records, result.Skipped)
			for _, p := range result.Patients {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-40s %s\n", p.Email, p.HealthID)
			}
			return nil
		},
	}
	defaults := sandbox.DefaultSeedConfig()
	cmd.Flags().Int("patients", defaults.PatientCount, "Number of patients to create")
	cmd.Flags().Int("hospitals", defaults.HospitalCount, "Number of hospital users to create")
	cmd.Flags().Int("records", defaults.RecordsPerPatient, "Records per patient")
	cmd.Flags().Int64("seed", 0, "Random seed (0 picks one)")
	return cmd
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent access events for a Health ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			healthID, _ := cmd.Flags().GetString("health-id")
			if healthID == "" {
				return fmt.Errorf("--health-id is required")
			}
			limit, _ := cmd.Flags().GetInt("limit")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			st, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.close()
			if st.access == nil {
				return fmt.Errorf("the %s backend keeps no access log", cfg.StoreBackend)
			}

			events, err := st.access.ListByHealthID(cmd.Context(), healthID, limit)
			if err != nil {
				return err
			}
			printAccessEvents(cmd.OutOrStdout(), events)
			return nil
		},
	}
	cmd.Flags().String("health-id", "", "Health ID to look up")
	cmd.Flags().Int("limit", hipaa.DefaultListLimit, "Maximum number of events")
	return cmd
}

func printAccessEvents(w io.Writer, events []*hipaa.AccessEvent) {
	fmt.Fprintf(w, "%-20s %-8s %-8s %-6s %-36s %s\n", "ACCESSED AT", "RESOURCE", "ACTION", "STATUS", "RECORD", "REQUEST ID")
	for _, e := range events {
		fmt.Fprintf(w, "%-20s %-8s %-8s %-6d %-36s %s\n",
			e.AccessedAt.Format("2006-01-02 15:04:05"), e.Resource, e.Action, e.StatusCode, e.RecordID, e.RequestID)
	}
}

func withMigrator(ctx context.Context, fn func(context.Context, *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrations")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, migrationSource(cfg.MigrationsDir)))
}

// migrationSource prefers an on-disk directory when one is configured and
// falls back to the migrations embedded in the binary.
func migrationSource(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
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

func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// stores holds the repositories of the selected backend. pool is set only
// for postgres; access is nil for the memory backend.
type stores struct {
	users   account.UserRepository
	records record.Repository
	access  hipaa.AccessLog
	pool    *pgxpool.Pool
	close   func()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return &stores{
			users:   account.NewInMemoryUserRepo(),
			records: record.NewInMemoryRepo(),
			close:   func() {},
		}, nil
	case config.BackendLevelDB:
		store, err := kv.Open(cfg.LevelDBPath)
		if err != nil {
			return nil, err
		}
		return &stores{
			users:   account.NewUserRepoKV(store),
			records: record.NewRepoKV(store),
			access:  hipaa.NewAccessLogKV(store),
			close:   func() { store.Close() },
		}, nil
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		return &stores{
			users:   account.NewUserRepoPG(pool),
			records: record.NewRepoPG(pool),
			access:  hipaa.NewAccessLogPG(pool),
			pool:    pool,
			close:   pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Store   string `json:"store"`
}

func healthHandler(backend string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, healthResponse{Status: "ok", Version: version, Store: backend})
	}
}

// newServer builds the echo instance with the middleware chain and routes.
func newServer(cfg *config.Config, svc *portal.Service, st *stores, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	var recorders []middleware.AuditRecorder
	if st.access != nil {
		recorders = append(recorders, st.access)
	}
	e.Use(middleware.Audit(logger, recorders...))

	e.GET("/health", healthHandler(cfg.StoreBackend))
	if st.pool != nil {
		e.GET("/health/db", db.HealthHandler(st.pool))
	}

	api := e.Group("/api")
	api.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	portal.NewHandler(svc, logger).RegisterRoutes(api)
	docs := openapi.NewGenerator("Jeev API", version, fmt.Sprintf("http://localhost:%s", cfg.Port))
	docs.Add(openapi.PortalOperations()...)
	docs.RegisterRoutes(api)

	if cfg.IsDev() {
		sandbox.NewSeedHandler(sandbox.NewSeeder(svc, logger)).RegisterRoutes(api)
	}

	return e
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"), os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg.Env, os.Stdout)

	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open store")
	}
	defer st.close()
	logger.Info().Str("backend", cfg.StoreBackend).Msg("store ready")

	svc := portal.NewService(st.users, st.records, logger)

	c, err := cache.New(ctx, cache.Config{URL: cfg.RedisURL, KeyPrefix: cfg.CacheKeyPrefix})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer c.Close()
	svc.SetCache(c, cfg.CacheTTL)
	if c.Enabled() {
		logger.Info().Dur("ttl", cfg.CacheTTL).Str("prefix", cfg.CacheKeyPrefix).Msg("patient cache enabled")
	}

	e := newServer(cfg, svc, st, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
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
