package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alcyxob/workout-engine/internal/api"
	"alcyxob/workout-engine/internal/config"
	"alcyxob/workout-engine/internal/events"
	"alcyxob/workout-engine/internal/logging"
	"alcyxob/workout-engine/internal/metrics"
	"alcyxob/workout-engine/internal/repository/memory"
	"alcyxob/workout-engine/internal/repository/mongo"
	"alcyxob/workout-engine/internal/service"
	"alcyxob/workout-engine/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
)

// @title Workout Engine API
// @version 1.0
// @description Session execution, set logging, scheduling and gamification for coached clients.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.Logging.File,
		LogToStdout:   cfg.Logging.Stdout,
		LogLevel:      cfg.Logging.Level,
		LogFormatJSON: cfg.Logging.JSON,
	})
	log.WithField("driver", cfg.Database.Driver).Info("starting workout engine")

	settings, err := service.SettingsFromConfig(cfg)
	if err != nil {
		log.Fatalf("invalid engine settings: %v", err)
	}

	// --- Storage ---
	repos, closeRepos, err := openRepositories(cfg.Database)
	if err != nil {
		log.Fatalf("could not open %s repositories: %v", cfg.Database.Driver, err)
	}
	defer closeRepos()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	fileStorage, err := storage.NewS3Storage(startupCtx, cfg.S3)
	cancelStartup()
	if errors.Is(err, storage.ErrStorageDisabled) {
		log.Warn("no bucket configured, set videos are disabled")
		fileStorage = nil
	} else if err != nil {
		log.Fatalf("failed to initialize S3 storage: %v", err)
	}

	// --- Metrics ---
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsManager := metrics.NewManager("workout_engine", "api", promRegistry)
	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		gatherer = promRegistry
	}

	// --- Events ---
	dispatcher := events.NewDispatcher()
	notifications := service.NewNotificationSink(repos.Notifications)
	service.NewPainHook(repos.Workouts, notifications, service.NewCoachNoteSink(repos.CoachNotes), metricsManager).Register(dispatcher)
	service.NewScoreNotifier(notifications, metricsManager).Register(dispatcher)
	dispatcher.Subscribe(events.TypeWorkoutPlanned, "plan-log", func(ctx context.Context, e events.Event) error {
		planned, ok := e.Payload.(events.WorkoutPlanned)
		if !ok {
			return nil
		}
		log.WithFields(log.Fields{
			"client_id": planned.ClientID.Hex(),
			"workout":   planned.Workout.Name,
			"sessions":  planned.SessionsCreated,
			"first_day": planned.FirstDay,
		}).Debug("workout planned")
		return nil
	})

	// --- Services ---
	scoring := service.NewScoringEngine(repos.Profiles, settings)
	services := api.Services{
		Auth:         service.NewAuthService(repos.Users, cfg.JWT.Secret, cfg.JWT.Expiration),
		Coach:        service.NewCoachService(repos.Users, repos.Workouts),
		Sessions:     service.NewSessionService(repos, scoring, dispatcher, metricsManager, settings),
		SetLogs:      service.NewSetLogService(repos, dispatcher, metricsManager),
		Scheduler:    service.NewSchedulerService(repos, notifications, dispatcher, metricsManager, settings),
		Gamification: service.NewGamificationService(repos, scoring, dispatcher, settings),
		Videos:       service.NewVideoService(repos, fileStorage),
	}

	// --- HTTP ---
	if log.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, cfg.JWT.Secret, services, metricsManager, gatherer)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Infof("server listening on %s", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen and serve: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Errorf("server forced to shutdown: %v", err)
	}
	log.Info("server exiting")
}

// openRepositories builds the repository set for the configured driver. The
// returned func releases the backing connection.
func openRepositories(cfg config.DatabaseConfig) (service.Repositories, func(), error) {
	if cfg.Driver == config.DriverMemory {
		store := memory.NewStore()
		return service.Repositories{
			Users:         store.Users(),
			Workouts:      store.Workouts(),
			Sessions:      store.Sessions(),
			SetLogs:       store.SetLogs(),
			Profiles:      store.Profiles(),
			Notifications: store.Notifications(),
			CoachNotes:    store.CoachNotes(),
			Habits:        store.Habits(),
			Tx:            store,
		}, func() {}, nil
	}

	client, err := mongo.ConnectDB(cfg.URI)
	if err != nil {
		return service.Repositories{}, nil, err
	}
	closeFn := func() {
		if err := mongo.DisconnectDB(client); err != nil {
			log.WithError(err).Error("failed to disconnect mongodb")
		}
	}

	db := client.Database(cfg.Name)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := mongo.EnsureIndexes(ctx, db); err != nil {
		closeFn()
		return service.Repositories{}, nil, err
	}
	log.WithField("database", cfg.Name).Info("mongodb connected, indexes ensured")

	return service.Repositories{
		Users:         mongo.NewMongoUserRepository(db),
		Workouts:      mongo.NewMongoWorkoutRepository(db),
		Sessions:      mongo.NewMongoSessionRepository(db),
		SetLogs:       mongo.NewMongoSetLogRepository(db),
		Profiles:      mongo.NewMongoProfileRepository(db),
		Notifications: mongo.NewMongoNotificationRepository(db),
		CoachNotes:    mongo.NewMongoCoachNoteRepository(db),
		Habits:        mongo.NewMongoHabitRepository(db),
		Tx:            mongo.NewTransactor(client),
	}, closeFn, nil
}
