// Package main is the entry point for the RianHub API server.
//
// The binary wires the full request path: Postgres repositories, Redis
// caches, the in-process event bus with its handlers and sagas, the
// Anthropic-backed tutor client, and the HTTP server. Background jobs
// run in the separate worker binary; both can point at the same
// database and event topology.
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
	"github.com/rianlab/rianhub/internal/application/command"
	"github.com/rianlab/rianhub/internal/application/eventhandler"
	"github.com/rianlab/rianhub/internal/application/query"
	"github.com/rianlab/rianhub/internal/application/saga"
	"github.com/rianlab/rianhub/internal/domain/leaderboard"
	"github.com/rianlab/rianhub/internal/domain/learner"
	"github.com/rianlab/rianhub/internal/domain/shared"
	"github.com/rianlab/rianhub/internal/infrastructure/external/tutor"
	"github.com/rianlab/rianhub/internal/infrastructure/messaging"
	"github.com/rianlab/rianhub/internal/infrastructure/persistence/postgres"
	rediscache "github.com/rianlab/rianhub/internal/infrastructure/persistence/redis"
	"github.com/rianlab/rianhub/internal/infrastructure/service"
	httpserver "github.com/rianlab/rianhub/internal/interface/http"
	"github.com/rianlab/rianhub/internal/interface/http/handlers"
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
		logger.Error("api server exited with error", "error", err)
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
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("starting rianhub api",
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

	if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	learnerRepo := postgres.NewLearnerRepository(conn)
	courseRepo := postgres.NewCourseRepository(conn)
	progressRepo := postgres.NewProgressRepository(conn)
	quizRepo := postgres.NewQuizRepository(conn)
	attemptRepo := postgres.NewAttemptRepository(conn)
	competencyRepo := postgres.NewCompetencyRepository(conn)
	masteryRepo := postgres.NewMasteryRepository(conn)
	ledgerRepo := postgres.NewLedgerRepository(conn)
	awardRepo := postgres.NewAwardRepository(conn)
	leaderboardRepo := postgres.NewLeaderboardRepository(conn)
	notificationRepo := postgres.NewNotificationRepository(conn)
	analyticsRepo := postgres.NewAnalyticsRepository(conn)
	deviceRepo := postgres.NewDeviceRepository(conn)
	opLog := postgres.NewOperationLog(conn)
	changeLog := postgres.NewChangeLog(conn)
	conflictLog := postgres.NewConflictLog(conn)
	chatRepo := postgres.NewChatRepository(conn)
	statementRepo := postgres.NewStatementRepository(conn)

	// ──────────────────────────────────────────────────────────────────
	// Redis caches (optional in development)
	// ──────────────────────────────────────────────────────────────────

	var (
		cache            *rediscache.Cache
		learnerCache     learner.Cache
		leaderboardCache leaderboard.Cache
		unreadCounter    query.UnreadCounter
		unreadBadge      command.UnreadBadgeInvalidator
		unreadInvalidate service.UnreadCountInvalidator
		activityRecorder httpserver.ActivityRecorder
	)
	if !cfg.Redis.Disabled {
		cache, err = rediscache.NewCache(redisCacheConfig(cfg.Redis))
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer cache.Close()

		learnerCache = rediscache.NewLearnerCache(cache)
		leaderboardCache = rediscache.NewLeaderboardCache(cache)
		notificationCache := rediscache.NewNotificationCache(cache)
		unreadCounter = notificationCache
		unreadBadge = notificationCache
		unreadInvalidate = notificationCache
		activityRecorder = service.NewActivityRecorder(
			rediscache.NewActivityTracker(cache), learnerRepo, learnerCache, logger)
	} else {
		logger.Warn("redis disabled, running without caches")
	}

	// ──────────────────────────────────────────────────────────────────
	// Events
	// ──────────────────────────────────────────────────────────────────

	eventBus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 8,
		Logger:         logger,
	})
	defer eventBus.Close()

	dispatcher := messaging.NewDispatcher(messaging.DispatcherConfig{
		EventBus:              eventBus,
		WorkerPoolSize:        8,
		RetryConfig:           messaging.DefaultRetryConfig(),
		EnableDeadLetterQueue: true,
		DeadLetterQueueSize:   256,
		Logger:                logger,
	})

	// ──────────────────────────────────────────────────────────────────
	// Services
	// ──────────────────────────────────────────────────────────────────

	ids := service.NewUUIDGenerator()

	tokenIssuer, err := service.NewJWTIssuer(service.JWTConfig{
		Secret: cfg.Auth.JWTSecret,
		TTL:    cfg.Auth.TokenTTL,
		Issuer: cfg.Auth.Issuer,
	})
	if err != nil {
		return fmt.Errorf("jwt issuer: %w", err)
	}

	notifier := service.NewNotificationService(notificationRepo, unreadInvalidate, logger)

	var assistant *service.TutorAssistant
	if cfg.Tutor.APIKey != "" && cfg.Features.IsEnabled(config.FeatureTutorChat, nil) {
		tutorClient := tutor.NewClient(tutor.ClientConfig{
			APIKey:    cfg.Tutor.APIKey,
			Model:     cfg.Tutor.Model,
			MaxTokens: cfg.Tutor.MaxTokens,
			Timeout:   cfg.Tutor.RequestTimeout,
			RateLimiterConfig: tutor.RateLimiterConfig{
				RequestsPerSecond: float64(cfg.Tutor.RateLimit) / 60.0,
				BurstSize:         cfg.Tutor.RateLimitBurst,
			},
			Logger: logger,
		})
		assistant = service.NewTutorAssistant(tutorClient)
	} else {
		logger.Warn("tutor chat disabled", "has_api_key", cfg.Tutor.APIKey != "")
	}

	// ──────────────────────────────────────────────────────────────────
	// Event handlers and sagas
	// ──────────────────────────────────────────────────────────────────

	lessonHandler := eventhandler.NewOnLessonCompletedHandler(
		courseRepo, progressRepo, learnerRepo, learnerCache, ledgerRepo,
		statementRepo, eventBus, logger,
		eventhandler.LessonCompletedConfig{
			ActorHomePage:  cfg.App.ActorHomePage,
			EmitStatements: true,
		},
	)
	quizHandler := eventhandler.NewOnQuizGradedHandler(
		masteryRepo, competencyRepo, learnerRepo, learnerCache, ledgerRepo,
		statementRepo, eventBus, logger,
		eventhandler.QuizGradedConfig{
			ActorHomePage:  cfg.App.ActorHomePage,
			EmitStatements: true,
		},
	)

	var streakNotifier eventhandler.StreakMilestoneNotifier
	if cfg.Features.IsEnabled(config.FeatureGamificationStreaks, nil) {
		streakNotifier = notifier
	}
	streakHandler := eventhandler.NewOnStreakUpdatedHandler(
		learnerRepo, learnerCache, ledgerRepo, streakNotifier, eventBus, logger,
	)

	var levelUpNotifier eventhandler.LevelUpNotifier
	if cfg.Features.IsEnabled(config.FeatureNotifyLevelUp, nil) {
		levelUpNotifier = notifier
	}
	levelUpHandler := eventhandler.NewOnLevelUpHandler(levelUpNotifier, logger)

	xpApplier := eventhandler.NewXPApplier(learnerRepo, learnerCache, eventBus)

	var achievementNotifier saga.AchievementNotifier
	if cfg.Features.IsEnabled(config.FeatureNotifyAchievements, nil) {
		achievementNotifier = notifier
	}
	achievementSaga := saga.NewAchievementFlowSaga(
		learnerRepo, progressRepo, masteryRepo, ledgerRepo, awardRepo,
		achievementNotifier, xpApplier, eventBus, ids, logger,
	)

	registrations := []struct {
		eventType shared.EventType
		name      string
		handler   shared.EventHandler
	}{
		{shared.EventLessonCompleted, "award-lesson-progress", lessonHandler.Handle},
		{shared.EventQuizGraded, "update-mastery", quizHandler.Handle},
		{shared.EventDailyStreakUpdated, "grant-streak-bonus", streakHandler.Handle},
		{shared.EventLevelUp, "notify-level-up", levelUpHandler.Handle},
	}
	if cfg.Features.IsEnabled(config.FeatureGamificationAchievements, nil) {
		for _, et := range []shared.EventType{
			shared.EventQuizGraded,
			shared.EventLessonCompleted,
			shared.EventDailyStreakUpdated,
			shared.EventLevelUp,
		} {
			registrations = append(registrations, struct {
				eventType shared.EventType
				name      string
				handler   shared.EventHandler
			}{et, "achievement-flow", achievementSaga.Handle})
		}
	}
	for _, reg := range registrations {
		if err := dispatcher.Register(reg.eventType, reg.name, reg.handler); err != nil {
			return fmt.Errorf("register %s on %s: %w", reg.name, reg.eventType, err)
		}
	}
	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}
	defer dispatcher.Stop()

	// ──────────────────────────────────────────────────────────────────
	// Application layer
	// ──────────────────────────────────────────────────────────────────

	onboarding := saga.NewOnboardingSaga(learnerRepo, notifier, eventBus, ids, saga.OnboardingSagaConfig{
		BcryptCost:      cfg.Auth.BcryptCost,
		DefaultLanguage: shared.LangThai,
	})

	var courseNews command.CourseNewsNotifier
	if cfg.Features.IsEnabled(config.FeatureNotifyCourseNews, nil) {
		courseNews = notifier
	}

	deps := httpserver.Dependencies{
		Onboarding:   onboarding,
		LoginHandler: command.NewLoginHandler(learnerRepo, tokenIssuer),
		Tokens:       tokenIssuer,
		Activity:     activityRecorder,

		CreateCourseHandler:   command.NewCreateCourseHandler(courseRepo, learnerRepo, competencyRepo, ids),
		EditCourseHandler:     command.NewEditCourseHandler(courseRepo, progressRepo, learnerRepo, ids),
		PublishCourseHandler:  command.NewPublishCourseHandler(courseRepo, learnerRepo, courseNews, eventBus),
		EnrollCourseHandler:   command.NewEnrollCourseHandler(courseRepo, progressRepo, learnerRepo, eventBus),
		LessonProgressHandler: command.NewRecordLessonProgressHandler(courseRepo, progressRepo, learnerRepo, learnerCache, changeLog, eventBus),
		ListCoursesHandler:    query.NewListCoursesHandler(courseRepo),
		GetCourseHandler:      query.NewGetCourseHandler(courseRepo, progressRepo),

		CompetencyHandler: command.NewSaveCompetencyHandler(competencyRepo, learnerRepo, ids),

		CreateQuizHandler: command.NewCreateQuizHandler(quizRepo, courseRepo, learnerRepo, competencyRepo, ids),
		StartQuizHandler:  command.NewStartQuizAttemptHandler(quizRepo, attemptRepo, learnerRepo, ids),
		SubmitQuizHandler: command.NewSubmitQuizAttemptHandler(quizRepo, attemptRepo, learnerRepo, learnerCache, changeLog, eventBus),

		MasteryProfileHandler: query.NewGetMasteryProfileHandler(masteryRepo, competencyRepo),
		LearningPathHandler:   query.NewGetLearningPathHandler(masteryRepo, competencyRepo, courseRepo),
		DailyProgressHandler:  query.NewGetDailyProgressHandler(analyticsRepo),
		LeaderboardHandler:    query.NewGetLeaderboardHandler(leaderboardRepo, leaderboardCache),
		CourseFunnelHandler:   query.NewGetCourseFunnelHandler(analyticsRepo),
		MasteryDistHandler:    query.NewGetMasteryDistributionHandler(analyticsRepo),

		ProfileHandler:     query.NewGetLearnerProfileHandler(learnerRepo, learnerCache, awardRepo, leaderboardRepo),
		PreferencesHandler: command.NewUpdatePreferencesHandler(learnerRepo, learnerCache, changeLog),

		NotificationsHandler: query.NewGetNotificationsHandler(notificationRepo, unreadCounter),
		MarkReadHandler:      command.NewMarkNotificationReadHandler(notificationRepo, unreadBadge),

		RegisterDeviceHandler: command.NewRegisterDeviceHandler(deviceRepo, learnerRepo),
		SyncPushHandler: command.NewSyncPushHandler(
			deviceRepo, opLog, changeLog, conflictLog, learnerRepo, learnerCache,
			courseRepo, progressRepo, quizRepo, attemptRepo, ids, eventBus,
		),
		SyncChangesHandler: query.NewGetSyncChangesHandler(deviceRepo, changeLog),

		StoreStatementHandler: command.NewStoreStatementHandler(statementRepo, ids),
		FindStatementsHandler: query.NewFindStatementsHandler(statementRepo),

		ListSessionsHandler: query.NewListChatSessionsHandler(chatRepo),
		GetSessionHandler:   query.NewGetChatSessionHandler(chatRepo),

		HealthChecker: newHealthChecker(cfg.App.Version, conn, cache),
		Logger:        logger,
	}
	if assistant != nil {
		deps.ChatHandler = command.NewChatWithTutorHandler(chatRepo, learnerRepo, masteryRepo, competencyRepo, assistant, ids)
	}

	// ──────────────────────────────────────────────────────────────────
	// HTTP server
	// ──────────────────────────────────────────────────────────────────

	server := httpserver.NewServer(httpserver.Config{
		Host:               cfg.HTTP.Host,
		Port:               cfg.HTTP.Port,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		EnableCORS:         cfg.HTTP.EnableCORS,
		AllowedOrigins:     cfg.HTTP.AllowedOrigins,
		RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
		TrustedProxies:     cfg.HTTP.TrustedProxies,
		MaxBodyBytes:       cfg.HTTP.MaxBodyBytes,
		APIKeyHeader:       cfg.HTTP.APIKeyHeader,
		APIKeys:            cfg.HTTP.APIKeys,
		ActorHomePage:      cfg.App.ActorHomePage,
	}, deps)

	errCh := server.StartAsync()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("rianhub api stopped")
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

// newHealthChecker wires the readiness probes. cache may be nil.
func newHealthChecker(version string, conn *postgres.Connection, cache *rediscache.Cache) handlers.HealthChecker {
	checker := handlers.NewCompositeHealthChecker(version)
	checker.AddCheck("database", handlers.NewDatabaseCheck(conn))
	if cache != nil {
		checker.AddCheck("cache", handlers.NewCacheCheck(cache))
	}
	return checker
}
