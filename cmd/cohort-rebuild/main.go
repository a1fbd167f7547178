// Command cohort-rebuild runs one cohort rebuild outside the server, for
// backfills and for deployments that trigger the monthly job externally.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"finmate/internal/config"
	"finmate/internal/domain"
	"finmate/internal/errors"
	"finmate/internal/events"
	"finmate/internal/repository"
	"finmate/internal/service"
)

func main() {
	month := flag.String("month", "", "period to rebuild from, YYYY-MM (default: last completed month)")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, *month, logger); err != nil {
		if errors.HasCode(err, errors.CohortPeriodProcessed) {
			logger.Info("Period already processed, nothing to do", "month", *month)
			return
		}
		logger.Error("Cohort rebuild failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, month string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := repository.RunMigrations(cfg.GetDBConnectionString()); err != nil {
		return err
	}

	db, err := repository.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPEnabled() {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP publisher, continuing without events", "error", err)
		} else {
			publisher = amqpPublisher
		}
	}
	defer publisher.Close()

	location := cfg.Location()
	store := repository.NewStore(db, logger)
	aggregator := service.NewAggregationService(store, location, logger)
	cohorts := service.NewCohortService(store, aggregator, publisher, cfg.CohortBandCount, location, logger)

	var result *service.RebuildResult
	if month == "" {
		result, err = cohorts.RebuildPrevious(ctx)
	} else {
		period, parseErr := domain.ParseMonth(month)
		if parseErr != nil {
			return parseErr
		}
		result, err = cohorts.Rebuild(ctx, period)
	}
	if err != nil {
		return err
	}

	logger.Info("Cohort rebuild finished",
		"period", result.Period,
		"active_users", result.ActiveUsers,
		"reassigned", result.Reassigned,
		"retired", result.Retired,
		"bands", len(result.Bands))
	return nil
}
