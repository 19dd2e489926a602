package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rcm/rcm/internal/config"
	"github.com/rcm/rcm/internal/domain/alerts"
	"github.com/rcm/rcm/internal/domain/auditevent"
	"github.com/rcm/rcm/internal/domain/authrules"
	"github.com/rcm/rcm/internal/domain/denialrisk"
	"github.com/rcm/rcm/internal/domain/eligibility"
	"github.com/rcm/rcm/internal/domain/patient"
	"github.com/rcm/rcm/internal/domain/payerdir"
	"github.com/rcm/rcm/internal/domain/priorauth"
	"github.com/rcm/rcm/internal/domain/provider"
	"github.com/rcm/rcm/internal/domain/scheduling"
	"github.com/rcm/rcm/internal/orchestrator"
	"github.com/rcm/rcm/internal/platform/auth"
	"github.com/rcm/rcm/internal/platform/db"
	"github.com/rcm/rcm/internal/platform/events"
	"github.com/rcm/rcm/internal/platform/middleware"
	"github.com/rcm/rcm/internal/platform/payer"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rcm-server",
		Short: "Eligibility and prior authorization orchestration server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

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

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
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

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore from a backup or write a forward migration instead.")
			return nil
		},
	})

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SanitizeWithLogger(logger))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.SecurityHeaders())

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			SigningKey: []byte(cfg.AuthSecret),
		}))
	}

	// Access trail
	auditRepo := auditevent.NewPgRepository(pool)
	e.Use(middleware.Audit(logger, auditevent.NewRecorder(auditRepo)))

	// API group
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))

	// Event bus wiring the domains together
	bus := events.NewBus(logger)

	// Domain services
	patientSvc := patient.NewService(
		patient.NewPgRepository(pool),
		patient.NewPgCoverageRepository(pool),
		patient.NewPgReferralRepository(pool),
	)
	providerSvc := provider.NewService(
		provider.NewPgRepository(pool),
		provider.NewPgParticipationRepository(pool),
	)
	payerSvc := payerdir.NewService(payerdir.NewPgRepository(pool), cfg.PayerTimeout())
	resolver := authrules.NewResolver(authrules.NewPgRepository(pool), logger)
	predictor := denialrisk.NewPredictor(denialrisk.NewPgRepository(pool))

	retry := payer.RetryPolicy{
		MaxAttempts: cfg.PayerMaxAttempts,
		BaseDelay:   500 * time.Millisecond,
	}

	verifier := eligibility.NewVerifier(
		eligibility.NewPgSnapshotRepository(pool),
		eligibility.NewPgLogRepository(pool),
		patientSvc,
		payerSvc,
		bus,
		retry,
		cfg.EligibilityFreshness(),
		logger,
	)

	paRepo := priorauth.NewPgRepository(pool)
	paPackages := priorauth.NewPgPackageRepository(pool)
	docs := priorauth.NewPgDocumentSource(pool)
	paBuilder := priorauth.NewBuilder(paRepo, paPackages, resolver, docs,
		priorauth.NewChartSummarizer(docs), logger)

	paSvc := priorauth.NewService(priorauth.ServiceDeps{
		Repo:        paRepo,
		Transitions: priorauth.NewPgTransitionRepository(pool),
		Packages:    paPackages,
		Rules:       resolver,
		Risk:        predictor,
		Members:     patientSvc,
		Referrals:   patientSvc,
		Network:     providerSvc,
		NPIs:        providerSvc,
		Payers:      payerSvc,
		Fax:         payer.NewFaxBridge(cfg.FaxGatewayURL, cfg.PayerTimeout()),
		FaxDir:      payerSvc,
		Bus:         bus,
		Retry:       retry,
		MaxInfo:     cfg.PAMaxInfoRequests,
		Logger:      logger,
	})

	schedSvc := scheduling.NewService(scheduling.ServiceDeps{
		Requests:     scheduling.NewPgRequestRepository(pool),
		Slots:        scheduling.NewPgSlotRepository(pool),
		Appointments: scheduling.NewPgAppointmentRepository(pool),
		Waitlist:     scheduling.NewPgWaitlistRepository(pool),
		Rules:        resolver,
		Network:      providerSvc,
		Complexity:   patientSvc,
		Catalog:      scheduling.DefaultServiceCatalog(),
		Allocation:   scheduling.DefaultAllocationRules(),
		Bus:          bus,
		Logger:       logger,
	})

	alertsRepo := alerts.NewPgRepository(pool)
	alertsSvc := alerts.NewService(alertsRepo)
	dispatcher := alerts.NewDispatcher(alertsRepo, logger)
	dispatcher.Register(bus)

	orch := orchestrator.New(verifier, schedSvc, paSvc, paBuilder, logger)
	orch.Wire(bus)

	// Routes
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	provider.NewHandler(providerSvc).RegisterRoutes(apiV1)
	payerdir.NewHandler(payerSvc).RegisterRoutes(apiV1)
	authrules.NewHandler(resolver).RegisterRoutes(apiV1)
	eligibility.NewHandler(verifier).RegisterRoutes(apiV1)
	priorauth.NewHandler(paSvc, paBuilder).RegisterRoutes(apiV1)
	scheduling.NewHandler(schedSvc).RegisterRoutes(apiV1)
	alerts.NewHandler(alertsSvc).RegisterRoutes(apiV1)
	orchestrator.NewHandler(orch).RegisterRoutes(apiV1)
	auditevent.NewHandler(auditRepo).RegisterRoutes(apiV1)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

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
