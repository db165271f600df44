// Package main is the entry point for the RianHub background worker.
//
// The worker owns everything that runs on a clock rather than on a
// request: leaderboard rebuilds, notification delivery, mastery decay,
// inactivity detection, the nightly analytics rollup, streak reminders
// and data retention cleanup. It shares the database and Redis with
// the API binary but serves no HTTP traffic.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rianlab/rianhub/config"
	"github.com/rianlab/rianhub/internal/domain/leaderboard"
	"github.com/rianlab/rianhub/internal/infrastructure/messaging"
	"github.com/rianlab/rianhub/internal/infrastructure/persistence/postgres"
	rediscache "github.com/rianlab/rianhub/internal/infrastructure/persistence/redis"
	"github.com/rianlab/rianhub/internal/infrastructure/scheduler"
	"github.com/rianlab/rianhub/internal/infrastructure/scheduler/jobs"
	"github.com/rianlab/rianhub/internal/infrastructure/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Observability)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("worker exited with error", "error", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger from the observability settings.
func newLogger(cfg config.ObservabilityConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if !cfg.Scheduler.Enabled {
		return fmt.Errorf("scheduler is disabled, nothing to run")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("starting rianhub worker",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"timezone", cfg.App.Timezone,
	)

	// ──────────────────────────────────────────────────────────────────
	// Persistence
	// ──────────────────────────────────────────────────────────────────

	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()

	learnerRepo := postgres.NewLearnerRepository(conn)
	courseRepo := postgres.NewCourseRepository(conn)
	progressRepo := postgres.NewProgressRepository(conn)
	attemptRepo := postgres.NewAttemptRepository(conn)
	competencyRepo := postgres.NewCompetencyRepository(conn)
	masteryRepo := postgres.NewMasteryRepository(conn)
	ledgerRepo := postgres.NewLedgerRepository(conn)
	leaderboardRepo := postgres.NewLeaderboardRepository(conn)
	notificationRepo := postgres.NewNotificationRepository(conn)
	analyticsRepo := postgres.NewAnalyticsRepository(conn)
	statementRepo := postgres.NewStatementRepository(conn)

	var (
		cache            *rediscache.Cache
		leaderboardCache leaderboard.Cache
		activityTracker  *rediscache.ActivityTracker
		unreadInvalidate service.UnreadCountInvalidator
	)
	if !cfg.Redis.Disabled {
		cache, err = rediscache.NewCache(redisCacheConfig(cfg.Redis))
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer cache.Close()

		leaderboardCache = rediscache.NewLeaderboardCache(cache)
		activityTracker = rediscache.NewActivityTracker(cache)
		unreadInvalidate = rediscache.NewNotificationCache(cache)
	} else {
		logger.Warn("redis disabled, leaderboard cache and activity rollup unavailable")
	}

	// Events published by jobs (rank changes, decay, inactivity) have no
	// in-worker subscribers; the bus exists for parity with the API
	// topology so handlers can be attached here later.
	eventBus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		AsyncMode: false,
		Logger:    logger,
	})
	defer eventBus.Close()

	notifier := service.NewNotificationService(notificationRepo, unreadInvalidate, logger)

	// ──────────────────────────────────────────────────────────────────
	// Jobs
	// ──────────────────────────────────────────────────────────────────

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   logger,
		Timezone: cfg.App.Location,
	})

	features := cfg.Features

	var rankNotifier jobs.RankNotifier
	if features.IsEnabled(config.FeatureNotifyRankChanged, nil) {
		rankNotifier = notifier
	}
	rebuildJob := jobs.NewRebuildLeaderboardJob(
		learnerRepo, courseRepo, progressRepo, leaderboardRepo,
		leaderboardCache, eventBus, rankNotifier,
		logger, jobs.DefaultRebuildLeaderboardConfig(),
	)
	if err := sched.Register(rebuildJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RebuildLeaderboardInterval)); err != nil {
		return fmt.Errorf("register %s: %w", rebuildJob.Name(), err)
	}

	deliverJob := jobs.NewDeliverNotificationsJob(
		notificationRepo, learnerRepo, logger, jobs.DefaultDeliverNotificationsConfig(),
	)
	if err := sched.Register(deliverJob, scheduler.NewIntervalSchedule(cfg.Scheduler.DeliverNotificationsInterval)); err != nil {
		return fmt.Errorf("register %s: %w", deliverJob.Name(), err)
	}

	var rustyNotifier jobs.RustyNotifier
	if features.IsEnabled(config.FeatureNotifyRusty, nil) {
		rustyNotifier = notifier
	}
	decayJob := jobs.NewDecayMasteryJob(
		masteryRepo, competencyRepo, eventBus, rustyNotifier,
		logger, jobs.DefaultDecayMasteryConfig(),
	)
	if err := sched.Register(decayJob, scheduler.NewIntervalSchedule(cfg.Scheduler.DecayMasteryInterval)); err != nil {
		return fmt.Errorf("register %s: %w", decayJob.Name(), err)
	}

	inactiveJob := jobs.NewDetectInactiveJob(
		learnerRepo, eventBus, logger, jobs.DefaultDetectInactiveConfig(),
	)
	if err := sched.Register(inactiveJob, scheduler.NewIntervalSchedule(cfg.Scheduler.DetectInactiveInterval)); err != nil {
		return fmt.Errorf("register %s: %w", inactiveJob.Name(), err)
	}

	cleanupJob := jobs.NewCleanupJob(
		leaderboardRepo, notificationRepo, attemptRepo, logger, jobs.DefaultCleanupConfig(),
	)
	if err := sched.Register(cleanupJob, scheduler.NewIntervalSchedule(cfg.Scheduler.CleanupInterval)); err != nil {
		return fmt.Errorf("register %s: %w", cleanupJob.Name(), err)
	}

	// The rollup reads per-minute activity from Redis; without it the
	// job would produce empty rows, so it only runs when Redis is up.
	if activityTracker != nil {
		rollupSchedule, err := scheduler.ParseCronExpression(fmt.Sprintf("0 %d * * *", cfg.Scheduler.RollupHour))
		if err != nil {
			return fmt.Errorf("rollup schedule: %w", err)
		}
		rollupJob := jobs.NewRollupAnalyticsJob(
			learnerRepo, progressRepo, attemptRepo, ledgerRepo,
			statementRepo, analyticsRepo, activityTracker,
			logger, jobs.DefaultRollupAnalyticsConfig(),
		)
		if err := sched.Register(rollupJob, rollupSchedule); err != nil {
			return fmt.Errorf("register %s: %w", rollupJob.Name(), err)
		}
	}

	if features.IsEnabled(config.FeatureNotifyStreakReminder, nil) {
		reminderSchedule, err := scheduler.ParseCronExpression(fmt.Sprintf("0 %d * * *", cfg.Scheduler.StreakReminderHour))
		if err != nil {
			return fmt.Errorf("streak reminder schedule: %w", err)
		}
		reminderJob := jobs.NewStreakReminderJob(
			learnerRepo, notifier, logger, jobs.DefaultStreakReminderConfig(),
		)
		if err := sched.Register(reminderJob, reminderSchedule); err != nil {
			return fmt.Errorf("register %s: %w", reminderJob.Name(), err)
		}
	}

	// ──────────────────────────────────────────────────────────────────
	// Run until signalled
	// ──────────────────────────────────────────────────────────────────

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig.String())

	if err := sched.Stop(); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}

	logger.Info("rianhub worker stopped")
	return nil
}

// redisCacheConfig maps the environment settings onto the cache client
// configuration, keeping the client defaults for anything unset.
func redisCacheConfig(cfg config.RedisConfig) rediscache.Config {
	out := rediscache.DefaultConfig()
	if cfg.Host != "" {
		out.Host = cfg.Host
	}
	if cfg.Port != 0 {
		out.Port = cfg.Port
	}
	out.Password = cfg.Password
	out.DB = cfg.DB
	if cfg.PoolSize > 0 {
		out.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		out.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		out.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		out.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		out.WriteTimeout = cfg.WriteTimeout
	}
	return out
}
