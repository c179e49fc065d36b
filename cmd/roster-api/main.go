package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/cafe-roster-api/api/swagger"
	"github.com/noah-isme/cafe-roster-api/internal/handler"
	"github.com/noah-isme/cafe-roster-api/internal/models"
	"github.com/noah-isme/cafe-roster-api/internal/repository"
	"github.com/noah-isme/cafe-roster-api/internal/ruleparser"
	"github.com/noah-isme/cafe-roster-api/internal/service"
	"github.com/noah-isme/cafe-roster-api/pkg/cache"
	"github.com/noah-isme/cafe-roster-api/pkg/config"
	"github.com/noah-isme/cafe-roster-api/pkg/database"
	"github.com/noah-isme/cafe-roster-api/pkg/jobs"
	"github.com/noah-isme/cafe-roster-api/pkg/logger"
	"github.com/noah-isme/cafe-roster-api/pkg/storage"
	"github.com/noah-isme/cafe-roster-api/pkg/templates"
)

// @title Cafe Roster API
// @version 1.0.0
// @description Staff rostering, availability, free-text roster rules and clock-in scoring for a café.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	// the service runs without Redis; caching is then disabled
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	app, err := build(cfg, db, redisClient, logr)
	if err != nil {
		logr.Fatal("failed to wire application", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.points.Start(ctx)
	if err := app.cron.Start(); err != nil {
		logr.Fatal("failed to start scheduler", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("http shutdown", zap.Error(err))
	}
	app.cron.Stop()
	app.points.Stop()
}

type application struct {
	router *gin.Engine
	cron   *service.CronService
	points *jobs.Queue[models.PointsEvent]
}

func build(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (*application, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()
	loc := cfg.Location()

	catalog, err := templates.Load(cfg.Roster.TemplatesFile)
	if err != nil {
		return nil, fmt.Errorf("load roster templates: %w", err)
	}
	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("init export storage: %w", err)
	}

	staffRepo := repository.NewStaffRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	ruleRepo := repository.NewRosterRuleRepository(db)
	shiftRepo := repository.NewRosterShiftRepository(db)
	clockRepo := repository.NewClockRecordRepository(db)
	pointsRepo := repository.NewPointsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	rosterCache := service.NewCacheService("roster", cacheRepo, metrics, cfg.Roster.CacheTTL, logr, redisClient != nil)
	parseCache := service.NewCacheService("rule_parse", cacheRepo, metrics, cfg.RuleParser.CacheTTL, logr, redisClient != nil)

	parser := ruleParser(cfg.RuleParser, parseCache, logr)

	staffSvc := service.NewStaffService(staffRepo, logr)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, staffRepo, db, validate, logr)
	ruleSvc := service.NewRosterRuleService(ruleRepo, staffRepo, parser, cfg.RuleParser.Backend, validate, metrics, logr)
	rosterSvc := service.NewRosterService(shiftRepo, staffRepo, availabilityRepo, ruleRepo, catalog, db, rosterCache, validate, metrics, logr, service.RosterServiceConfig{
		MaxIterations:   cfg.Solver.MaxIterations,
		TimeBudget:      cfg.Solver.TimeBudget,
		DefaultMaxHours: cfg.Solver.DefaultMaxHours,
		CacheTTL:        cfg.Roster.CacheTTL,
	})
	exportSvc := service.NewExportService(rosterSvc, files, storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL), service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		MaxAge:    cfg.Exports.MaxAge,
	}, logr)

	pointsSvc := service.NewPointsService(pointsRepo, metrics, logr)
	pointsQueue := jobs.NewQueue("points", pointsSvc.Handle, jobs.QueueConfig{
		Workers:    cfg.Points.Workers,
		MaxRetries: cfg.Points.Retries,
		Logger:     logr,
	})
	clockSvc := service.NewClockService(clockRepo, shiftRepo, staffRepo, pointsQueue, metrics, logr, service.ClockServiceConfig{
		Location:   loc,
		StaleAfter: cfg.Clock.StaleAfter,
	})

	cronSvc := service.NewCronService(clockSvc, exportSvc, service.CronConfig{
		ClockSweepSchedule:    cfg.Clock.SweepSchedule,
		ExportCleanupSchedule: cfg.Exports.CleanupSchedule,
		ExportMaxAge:          cfg.Exports.MaxAge,
		Location:              loc,
	}, logr)

	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := newRouter(cfg, logr, metrics, service.NewAuthService(cfg.JWT.Secret), handlers{
		metrics:      handler.NewMetricsHandler(metrics, checks),
		staff:        handler.NewStaffHandler(staffSvc, pointsSvc),
		availability: handler.NewAvailabilityHandler(availabilitySvc),
		rules:        handler.NewRosterRuleHandler(ruleSvc),
		roster:       handler.NewRosterHandler(rosterSvc, exportSvc),
		clock:        handler.NewClockHandler(clockSvc),
	})

	return &application{router: router, cron: cronSvc, points: pointsQueue}, nil
}

// ruleParser picks the configured backend. The pattern parser is only used when selected.
func ruleParser(cfg config.RuleParserConfig, parseCache *service.CacheService, logr *zap.Logger) ruleparser.Parser {
	var base ruleparser.Parser
	switch cfg.Backend {
	case config.RuleParserPattern:
		base = ruleparser.NewPatternParser()
	default:
		base = ruleparser.NewLLMParser(ruleparser.LLMConfig{
			URL:     cfg.URL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, nil, logr)
	}
	logr.Info("rule parser selected", zap.String("backend", cfg.Backend))
	if !parseCache.Enabled() {
		return base
	}
	return ruleparser.NewCachedParser(base, parseCache, cfg.CacheTTL, logr)
}
