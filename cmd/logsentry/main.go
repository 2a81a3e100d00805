package main

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	collectorapi "github.com/sentinelops/logsentry/internal/collector/api"
	"github.com/sentinelops/logsentry/internal/config"
	"github.com/sentinelops/logsentry/internal/detection"
	"github.com/sentinelops/logsentry/internal/middleware"
	"github.com/sentinelops/logsentry/internal/storage"
)

func main() {
	log.Info().Msg("Starting logsentry server")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// configure log level from config
	switch strings.ToLower(cfg.Logging.Level) {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := storage.New(cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventStore := storage.NewEventStore(db)
	alertStore := storage.NewAlertStore(db)
	if err := eventStore.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure events schema")
	}
	if err := alertStore.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure alerts schema")
	}

	registry, err := detection.LoadRegistry(cfg.Detection.RulesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build rule registry")
	}
	log.Info().Int("rules", registry.Len()).Str("rules_file", cfg.Detection.RulesFile).Msg("rule registry loaded")

	// Redis is optional: without it dedup relies on the alert store lookup
	// alone and the benign check-then-act race stands.
	rdb := detection.NewRedisClientFromConfig(&cfg.Redis)
	if rdb == nil {
		log.Info().Msg("redis not configured; dedup reservation disabled")
	}

	aggregator := detection.NewAggregator(eventStore)
	scheduler := detection.NewScheduler(detection.Deps{
		Registry:     registry,
		Evaluator:    detection.NewEvaluator(aggregator),
		Gate:         detection.NewGate(alertStore, detection.NewRedisReserver(rdb)),
		Alerts:       alertStore,
		Interval:     parseDuration(cfg.Detection.Interval, 30*time.Second),
		StoreTimeout: parseDuration(cfg.Detection.StoreTimeout, 5*time.Second),
	})
	scheduler.Start(ctx)
	defer scheduler.Stop()

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID)
	collectorapi.NewApi(router, eventStore, alertStore, cfg.Collector.AlertQueryLimit)

	log.Info().Msgf("Starting server on %s", cfg.Server.BindAddr)
	if err := router.Run(cfg.Server.BindAddr); err != nil {
		log.Fatal().Err(err).Msg("start logsentry server failed.")
	}
	log.Info().Msg("logsentry server exit...")
}

func parseDuration(s string, d time.Duration) time.Duration {
	if s == "" {
		return d
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v
	}
	return d
}
