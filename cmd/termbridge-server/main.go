package main

import (
	"context"
	"fmt"
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

	"github.com/termbridge/termbridge/internal/config"
	"github.com/termbridge/termbridge/internal/domain/fhirops"
	"github.com/termbridge/termbridge/internal/domain/mapping"
	"github.com/termbridge/termbridge/internal/domain/record"
	"github.com/termbridge/termbridge/internal/domain/resolve"
	"github.com/termbridge/termbridge/internal/domain/search"
	"github.com/termbridge/termbridge/internal/platform/auth"
	"github.com/termbridge/termbridge/internal/platform/db"
	"github.com/termbridge/termbridge/internal/platform/icd11"
	"github.com/termbridge/termbridge/internal/platform/middleware"
	"github.com/termbridge/termbridge/internal/seed"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "termbridge-server",
		Short: "NAMASTE to ICD-11 terminology bridge server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the terminology API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
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
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return err
			}
			for _, st := range statuses {
				state := "pending"
				if st.Applied {
					state = "applied " + st.AppliedAt.Format(time.RFC3339)
				}
				fmt.Printf("%3d  %-40s %s\n", st.Version, st.Name, state)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the bundled NAMASTE sample dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := context.Background()
			stores, cleanup, err := buildStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			return seed.Load(ctx, stores.records, logger)
		},
	}
}

func newLogger() zerolog.Logger {
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// stores bundles the constructed services so serve and seed share wiring.
// pool is nil when the in-memory backend is selected.
type stores struct {
	records     *record.Service
	mappings    *mapping.Service
	mappingRepo mapping.Repository
	engine      *search.Engine
	gate        *record.WriteGate
	pool        *pgxpool.Pool
}

// buildStores constructs repositories and services for the configured
// backend. The returned cleanup closes the database pool when one was opened.
func buildStores(ctx context.Context, cfg *config.Config) (*stores, func(), error) {
	logger := newLogger()

	var recordRepo record.Repository
	var mappingRepo mapping.Repository
	var pool *pgxpool.Pool
	cleanup := func() {}

	if cfg.UsesPostgres() {
		var err error
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		cleanup = pool.Close
		recordRepo = record.NewPGRepo(pool)
		mappingRepo = mapping.NewPGRepo(pool)
	} else {
		recordRepo = record.NewMemRepo()
		mappingRepo = mapping.NewMemRepo()
	}

	gate := &record.WriteGate{}
	recordSvc := record.NewService(recordRepo, mappingRepo, gate, logger)
	mappingSvc := mapping.NewService(mappingRepo, recordRepo, gate)

	engine := search.NewEngine(recordRepo)
	recordSvc.SetRebuilder(engine)

	return &stores{
		records:     recordSvc,
		mappings:    mappingSvc,
		mappingRepo: mappingRepo,
		engine:      engine,
		gate:        gate,
		pool:        pool,
	}, cleanup, nil
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	st, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build stores")
	}
	defer cleanup()
	logger.Info().Str("backend", cfg.StoreBackend).Msg("stores ready")

	if cfg.SeedOnStart {
		if err := seed.Load(ctx, st.records, logger); err != nil {
			logger.Fatal().Err(err).Msg("failed to seed sample dataset")
		}
	}
	if err := st.engine.Rebuild(ctx); err != nil {
		logger.Fatal().Err(err).Msg("initial index build failed")
	}

	// External collaborator, only when a base URL is configured.
	var external resolve.ExternalLookuper
	if cfg.ICD11BaseURL != "" {
		external = icd11.NewClient(icd11.Config{
			BaseURL:      cfg.ICD11BaseURL,
			Timeout:      time.Duration(cfg.ICD11TimeoutSecs) * time.Second,
			ClientID:     cfg.ICD11ClientID,
			ClientSecret: cfg.ICD11ClientSecret,
			TokenURL:     cfg.ICD11TokenURL,
		}, logger)
	}

	resolver := resolve.NewResolver(st.records, st.engine, st.mappingRepo, st.gate,
		external, time.Duration(cfg.ICD11TimeoutSecs)*time.Second, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.ResolvedAuthMode() == "development" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	// API groups
	apiV1 := e.Group("/api/v1")
	fhirGroup := e.Group("/fhir")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	fhirGroup.Use(middleware.RateLimit(rateLimitCfg))

	// Routes
	record.NewHandler(st.records).RegisterRoutes(apiV1)
	search.NewHandler(st.engine).RegisterRoutes(apiV1)
	mapping.NewHandler(st.mappings).RegisterRoutes(apiV1, auth.RequireRole("curator"))
	resolve.NewHandler(resolver, cfg.ResolveCandidates).RegisterRoutes(apiV1)
	fhirops.NewHandler(st.records, st.mappings).RegisterRoutes(fhirGroup)

	if st.pool != nil {
		e.GET("/health", db.HealthHandler(st.pool))
	} else {
		e.GET("/health", func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]string{"status": "healthy", "backend": "memory"})
		})
	}

	// Graceful shutdown
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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
