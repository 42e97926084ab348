package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/coding-league/config"
	"github.com/Dosada05/coding-league/db"
	"github.com/Dosada05/coding-league/evaluation"
	"github.com/Dosada05/coding-league/handlers"
	"github.com/Dosada05/coding-league/live"
	"github.com/Dosada05/coding-league/metrics"
	"github.com/Dosada05/coding-league/middleware"
	"github.com/Dosada05/coding-league/models"
	"github.com/Dosada05/coding-league/repositories"
	api "github.com/Dosada05/coding-league/routes"
	"github.com/Dosada05/coding-league/services"
	"github.com/Dosada05/coding-league/storage"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	app := &cli.App{
		Name:  "league",
		Usage: "coding league officiating engine",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP and websocket server",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "manage the database schema",
				Subcommands: []*cli.Command{
					{Name: "up", Usage: "apply all pending migrations", Action: migrateUp},
					{
						Name:  "down",
						Usage: "roll back migrations",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "steps", Value: 1, Usage: "number of migrations to roll back"},
						},
						Action: migrateDown,
					},
					{Name: "version", Usage: "print the current schema version", Action: migrateVersion},
				},
			},
			{
				Name:  "token",
				Usage: "sign a development token",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "user", Required: true, Usage: "user id"},
					&cli.StringFlag{Name: "role", Value: string(models.RoleJudge), Usage: "admin, judge, coach or player"},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
				},
				Action: signToken,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// setup загружает конфигурацию и настраивает логгер.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sqlx.DB, error) {
	dbConn, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("database connection established")
	return dbConn, nil
}

func serve(c *cli.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := connect(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()

	if cfg.AutoMigrate {
		if err := db.MigrateUp(c.Context, dbConn.DB); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	// Метрики
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(dbConn.DB, "league"),
	)
	appMetrics := metrics.New(registry)

	// Архив протоколов в Cloudflare R2 (опционально)
	var archiver services.ScorecardArchiver
	if cfg.ArchiveEnabled() {
		uploader, err := storage.NewCloudflareR2Uploader(c.Context, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		archiver = storage.NewScorecardArchive(uploader)
		logger.Info("Cloudflare R2 scorecard archive enabled")
	} else {
		logger.Info("scorecard archive disabled: R2 settings are incomplete")
	}

	broadcaster := live.NewBroadcaster(logger)
	defer func() {
		if err := broadcaster.Close(); err != nil {
			logger.Error("failed to close broadcaster", slog.Any("error", err))
		}
	}()
	wsHub := live.NewHub(broadcaster, logger)

	deps := services.Dependencies{
		Store:     repositories.NewPostgresStore(dbConn),
		Publisher: broadcaster,
		Metrics:   appMetrics,
		Logger:    logger,
	}
	judgingService := services.NewJudgingService(deps)
	timerService := services.NewTimerService(deps, cfg.MatchDuration)
	lineupService := services.NewLineupService(deps)
	scoreService := services.NewScoreService(deps, evaluation.NewSimulatedEvaluator(cfg.AIEvalLatency), cfg.AIEvalTimeout)
	resultService := services.NewResultService(deps, cfg.ScoreWeights(), archiver)
	rosterService := services.NewRosterService(deps, services.RosterOptions{
		MaxActiveMembers: cfg.MaxActiveMembers,
		Tiers:            cfg.TierThresholds(),
	})
	logger.Info("Services initialized")

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Match:     handlers.NewMatchHandler(judgingService, timerService, lineupService, resultService),
		Score:     handlers.NewScoreHandler(scoreService),
		Roster:    handlers.NewRosterHandler(rosterService),
		WebSocket: handlers.NewWebSocketHandler(wsHub, handlers.NewUpgrader(cfg.AllowedOrigins), logger),
	}, middleware.NewAuthenticator(cfg.JWTSecretKey), appMetrics, cfg.AllowedOrigins)
	logger.Info("Routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.AIEvalTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("WebSocket Hub started")
		return wsHub.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("server shutdown complete")
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("application exited")
	return nil
}

func migrateUp(c *cli.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	dbConn, err := connect(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := db.MigrateUp(c.Context, dbConn.DB); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}

func migrateDown(c *cli.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	dbConn, err := connect(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	steps := c.Int("steps")
	if err := db.MigrateDown(c.Context, dbConn.DB, steps); err != nil {
		return err
	}
	logger.Info("migrations rolled back", slog.Int("steps", steps))
	return nil
}

func migrateVersion(c *cli.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	dbConn, err := connect(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	version, dirty, err := db.MigrationVersion(c.Context, dbConn.DB)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "version %d (dirty: %t)\n", version, dirty)
	return nil
}

func signToken(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	token, err := middleware.SignToken(cfg.JWTSecretKey, models.Actor{
		UserID: c.Int("user"),
		Role:   models.UserRole(c.String("role")),
	}, c.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}
