package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go-clinic-scheduling/config"
	deliveryHttp "go-clinic-scheduling/internal/delivery/http"
	"go-clinic-scheduling/internal/delivery/http/handler"
	"go-clinic-scheduling/internal/delivery/http/middleware"
	"go-clinic-scheduling/internal/domain/entity"
	"go-clinic-scheduling/internal/infrastructure/cache"
	"go-clinic-scheduling/internal/infrastructure/database"
	"go-clinic-scheduling/internal/infrastructure/telemetry"
	"go-clinic-scheduling/internal/notification"
	"go-clinic-scheduling/internal/repository"
	"go-clinic-scheduling/internal/service"
	"go-clinic-scheduling/internal/usecase"
	"go-clinic-scheduling/internal/worker"
	"go-clinic-scheduling/pkg/clock"
	"go-clinic-scheduling/pkg/jwt"
	"go-clinic-scheduling/pkg/validator"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App holds all dependencies for the application
type App struct {
	Config      *config.Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	Server      *http.Server

	doctorLocker      *service.DoctorLocker
	scheduler         *worker.ReminderScheduler
	kafkaWriter       *kafka.Writer
	shutdownTelemetry func(context.Context) error

	stopScheduler context.CancelFunc
	schedulerDone chan struct{}
}

// New creates a new App instance with all dependencies initialized
func New() (*App, error) {
	app := &App{}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	// Setup logger
	app.Log = setupLogger(cfg.App.LogLevel)
	app.Log.Info("Configuration loaded successfully")

	location, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", cfg.App.Timezone, err)
	}

	shutdownTelemetry, err := telemetry.Setup(context.Background(), cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	app.shutdownTelemetry = shutdownTelemetry

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.DB, cfg.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = db
	app.Log.Info("Database connected successfully")

	if cfg.DB.AutoMigrate {
		if err := database.RunMigrations(db); err != nil {
			return nil, err
		}
	}

	// Initialize Redis
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	app.RedisClient = redisClient
	app.Log.Info("Redis connected successfully")

	// Initialize all layers
	if err := app.initialize(location); err != nil {
		return nil, err
	}

	return app, nil
}

// setupLogger configures the logrus logger
func setupLogger(level string) *logrus.Logger {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// initialize wires repositories, services, usecases, the reminder scheduler and the HTTP server
func (app *App) initialize(location *time.Location) error {
	cfg, log, db := app.Config, app.Log, app.DB
	clk := clock.New()

	// Initialize JWT service
	jwtService := jwt.NewJWTService(cfg.JWT)

	// Initialize validator
	customValidator := validator.NewValidator()

	// Initialize repositories
	transactor := repository.NewTransactor(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	auditLogRepo := repository.NewAuditLogRepository(db)

	// Initialize services
	app.doctorLocker = service.NewDoctorLocker(log)
	auditService := service.NewAuditService(log, auditLogRepo)
	reminderClaimer := service.NewRedisReminderClaimer(app.RedisClient, log)

	// Notification dispatcher and channel senders
	dispatcher := notification.NewDispatcher(log, notification.Config{
		MaxRetries:      cfg.Notification.MaxRetries,
		InitialInterval: cfg.Notification.InitialInterval,
		MaxInterval:     cfg.Notification.MaxInterval,
		BulkConcurrency: cfg.Notification.BulkConcurrency,
	}, notificationRepo, subscriptionRepo, app.buildSenders())

	eventChannels, err := entity.ParseChannels(cfg.Booking.EventChannels)
	if err != nil {
		return fmt.Errorf("invalid BOOKING_EVENT_CHANNELS: %w", err)
	}
	bookingOpts := usecase.BookingOptions{
		Location:        location,
		SlotGranularity: cfg.Booking.SlotGranularity,
		Buffer:          cfg.Booking.Buffer,
		MaxRangeDays:    cfg.Booking.MaxRangeDays,
		EventChannels:   eventChannels,
		NotifyTimeout:   cfg.Notification.Timeout,
	}

	// Initialize usecases
	appointmentUsecase := usecase.NewAppointmentUsecase(log, clk, bookingOpts, transactor, appointmentRepo, availabilityRepo, app.doctorLocker, auditService, dispatcher)
	availabilityUsecase := usecase.NewAvailabilityUsecase(log, clk, bookingOpts, availabilityRepo, appointmentRepo)
	doctorScheduleUsecase := usecase.NewDoctorScheduleUsecase(log, transactor, availabilityRepo, app.doctorLocker, auditService)
	notificationUsecase := usecase.NewNotificationUsecase(log, notificationRepo)
	auditLogUsecase := usecase.NewAuditLogUsecase(log, auditLogRepo)

	// Reminder scheduler
	if cfg.Reminder.Enabled {
		windows := make([]worker.Window, 0, len(cfg.Reminder.Windows))
		for _, w := range cfg.Reminder.Windows {
			channels, err := entity.ParseChannels(w.Channels)
			if err != nil {
				return fmt.Errorf("invalid REMINDER_WINDOWS: %w", err)
			}
			windows = append(windows, worker.NewWindow(w.Offset, channels))
		}
		app.scheduler = worker.NewReminderScheduler(log, worker.ReminderConfig{
			Interval:            cfg.Reminder.Interval,
			ClaimTTL:            cfg.Reminder.ClaimTTL,
			BatchSize:           cfg.Reminder.BatchSize,
			Workers:             cfg.Reminder.Workers,
			MaxOverlappingTicks: cfg.Reminder.MaxOverlappingTicks,
			DispatchTimeout:     cfg.Notification.Timeout,
			Windows:             windows,
			Location:            location,
		}, clk, appointmentRepo, reminderClaimer, dispatcher)
	}

	// Initialize handlers
	appointmentHandler := handler.NewAppointmentHandler(appointmentUsecase, customValidator)
	doctorScheduleHandler := handler.NewDoctorScheduleHandler(doctorScheduleUsecase, availabilityUsecase, customValidator)
	notificationHandler := handler.NewNotificationHandler(notificationUsecase)
	auditLogHandler := handler.NewAuditLogHandler(auditLogUsecase, customValidator)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtService, app.RedisClient)
	corsMiddleware := middleware.NewCORSMiddleware(cfg.App.CORSOrigins)

	// Initialize router
	router := deliveryHttp.NewRouter(
		appointmentHandler, doctorScheduleHandler, notificationHandler, auditLogHandler,
		authMiddleware, corsMiddleware,
		deliveryHttp.ReadyCheck{Name: "db", Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}},
		deliveryHttp.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return app.RedisClient.Ping(ctx).Err()
		}},
	)

	// Create server
	app.Server = &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.App.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// buildSenders picks the external channel senders from configuration. in_app needs
// no sender; a channel without a sender is reported as disabled by the dispatcher.
func (app *App) buildSenders() map[entity.Channel]notification.Sender {
	cfg, log := app.Config, app.Log
	senders := map[entity.Channel]notification.Sender{}

	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		senders[entity.ChannelPush] = notification.NewPushSender(notification.PushConfig{
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
			Subscriber:      cfg.Push.Subscriber,
			TTL:             cfg.Push.TTL,
		})
	} else {
		log.Warn("Push channel disabled: VAPID keys are not configured")
	}

	switch cfg.Messaging.Provider {
	case "kafka":
		brokers := splitBrokers(cfg.Messaging.KafkaBrokers)
		if len(brokers) == 0 {
			log.Warn("Messaging channel disabled: KAFKA_BROKERS is empty")
			break
		}
		app.kafkaWriter = notification.NewKafkaWriter(brokers)
		senders[entity.ChannelMessaging] = notification.NewKafkaMessagingSender(app.kafkaWriter, cfg.Messaging.KafkaTopic)
	case "webhook":
		senders[entity.ChannelMessaging] = notification.NewWebhookMessagingSender(cfg.Messaging.WebhookURL, cfg.Messaging.WebhookToken)
	case "noop", "":
		senders[entity.ChannelMessaging] = notification.NewNoopSender(log)
	default:
		log.Warnf("Messaging channel disabled: unknown provider %q", cfg.Messaging.Provider)
	}

	return senders
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Run starts the HTTP server and the reminder scheduler, then handles graceful shutdown
func (app *App) Run() {
	if app.scheduler != nil {
		ctx, cancel := context.WithCancel(context.Background())
		app.stopScheduler = cancel
		app.schedulerDone = make(chan struct{})
		go func() {
			defer close(app.schedulerDone)
			app.scheduler.Run(ctx)
		}()
	}

	// Start server in goroutine
	go func() {
		app.Log.Infof("Server starting on port %s", app.Config.App.Port)
		app.Log.Infof("Environment: %s", app.Config.App.Env)
		if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	app.waitForShutdown()
}

// waitForShutdown blocks until an interrupt signal is received
func (app *App) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Log.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server gracefully
	if err := app.Server.Shutdown(ctx); err != nil {
		app.Log.Errorf("Server forced to shutdown: %v", err)
	}

	// Stop the scheduler and wait for in-flight ticks
	if app.stopScheduler != nil {
		app.stopScheduler()
		select {
		case <-app.schedulerDone:
		case <-ctx.Done():
			app.Log.Warn("Reminder scheduler did not stop before the shutdown deadline")
		}
	}

	if err := app.shutdownTelemetry(ctx); err != nil {
		app.Log.Warnf("Failed to flush traces: %v", err)
	}

	// Close connections
	app.Close()

	app.Log.Info("Server shutdown complete")
}

// Close closes all connections (database, redis, kafka) and stops background services
func (app *App) Close() {
	if app.doctorLocker != nil {
		app.doctorLocker.Stop()
	}

	if app.kafkaWriter != nil {
		if err := app.kafkaWriter.Close(); err != nil {
			app.Log.Warnf("Failed to close kafka writer: %v", err)
		}
	}

	// Close database connection
	if app.DB != nil {
		sqlDB, err := app.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	// Close Redis connection
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
