package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/booking-be/internal/api/broker"
	"github.com/cuongbtq/booking-be/internal/api/handler"
	"github.com/cuongbtq/booking-be/internal/api/router"
	"github.com/cuongbtq/booking-be/internal/api/storage"
	"github.com/cuongbtq/booking-be/internal/booking/audit"
	"github.com/cuongbtq/booking-be/internal/booking/eligibility"
	"github.com/cuongbtq/booking-be/internal/booking/lifecycle"
	"github.com/cuongbtq/booking-be/internal/booking/memstore"
	"github.com/cuongbtq/booking-be/internal/booking/notify"
	"github.com/cuongbtq/booking-be/internal/booking/timeutil"
	"github.com/cuongbtq/booking-be/internal/config"
	"github.com/cuongbtq/booking-be/shared/logger"
	"github.com/cuongbtq/booking-be/shared/postgresql"
	"github.com/cuongbtq/booking-be/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// backend is the data store and outbound channels the engine runs on
type backend struct {
	store       lifecycle.DataStore
	directory   notify.Directory
	sender      notify.Sender
	events      lifecycle.EventBus
	audit       audit.Recorder
	healthCheck func(ctx context.Context) error
	close       func()
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("driver", cfg.Database.Driver),
	)

	var be *backend
	switch cfg.Database.Driver {
	case config.DriverMemory:
		be, err = initMemoryBackend(&cfg.Database, appLogger)
	default:
		be, err = initPostgresBackend(cfg, appLogger)
	}
	if err != nil {
		return err
	}
	defer be.close()

	engine, err := initEngine(&cfg.Booking, be, appLogger)
	if err != nil {
		return err
	}

	r := initRouter(cfg.App.Environment, &handler.Dependencies{
		Logger:      appLogger.Component("http"),
		Engine:      engine,
		HealthCheck: be.healthCheck,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	// Notifications queued by the last requests still go out
	engine.Drain()

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initMemoryBackend runs everything in process. Notifications are only logged.
func initMemoryBackend(cfg *config.DatabaseConfig, appLogger *logger.Logger) (*backend, error) {
	store := memstore.New()
	if cfg.FixturesPath != "" {
		if err := store.LoadFixtures(cfg.FixturesPath); err != nil {
			return nil, fmt.Errorf("failed to load fixtures: %w", err)
		}
		appLogger.Info("Fixtures loaded",
			slog.String("path", cfg.FixturesPath),
		)
	}

	return &backend{
		store:     store,
		directory: store,
		sender:    notify.NewLogSender(appLogger.Component("notify")),
		audit:     audit.NewLogRecorder(appLogger.Component("audit")),
		close:     func() {},
	}, nil
}

func initPostgresBackend(cfg *config.Config, appLogger *logger.Logger) (*backend, error) {
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := dbClient.ApplySchema(context.Background(), storage.Schema); err != nil {
			dbClient.Close()
			return nil, err
		}
	}

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		dbClient.Close()
		return nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	store := storage.NewStorage(dbClient, appLogger.Component("storage"))
	b := broker.NewBroker(rabbitClient, appLogger.Component("broker"))

	return &backend{
		store:     store,
		directory: store,
		sender:    b,
		events:    b,
		audit: audit.MultiRecorder{
			audit.NewLogRecorder(appLogger.Component("audit")),
			audit.NewPostgresRecorder(dbClient.GetDB()),
		},
		healthCheck: func(ctx context.Context) error {
			if err := dbClient.HealthCheck(ctx); err != nil {
				return err
			}
			return b.HealthCheck(ctx)
		},
		close: func() {
			rabbitClient.Close()
			dbClient.Close()
		},
	}, nil
}

// initEngine wires the lifecycle engine and its notification dispatcher
func initEngine(cfg *config.BookingConfig, be *backend, appLogger *logger.Logger) (*lifecycle.Engine, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	clock := func() time.Time { return time.Now().In(loc) }

	night := timeutil.DefaultNightWindow
	if cfg.NightWindow.Start != 0 || cfg.NightWindow.End != 0 {
		night = timeutil.NightWindow{Start: cfg.NightWindow.Start, End: cfg.NightWindow.End}
	}

	filter := eligibility.NewFilter(cfg.TownOverrides)
	dispatcher := notify.NewDispatcher(&notify.Config{
		Sender:      be.sender,
		Directory:   be.directory,
		Filter:      filter,
		NightWindow: night,
		Logger:      appLogger.Component("notify"),
		Concurrency: cfg.NotifyConcurrency,
		Now:         clock,
	})

	expiry := timeutil.DefaultExpiryPolicy
	if cfg.LegacyExpiry {
		expiry = timeutil.LegacyExpiryPolicy
	}

	return lifecycle.NewEngine(&lifecycle.Config{
		Store:         be.store,
		Dispatcher:    dispatcher,
		Events:        be.events,
		Audit:         be.audit,
		Filter:        filter,
		Expiry:        expiry,
		CancelWindow:  cfg.CancelWindow,
		ImmediateLead: cfg.ImmediateLead,
		Logger:        appLogger.Component("lifecycle"),
		Now:           clock,
	}), nil
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		BindingKeys:        cfg.Bindings,
		DelayQueueName:     cfg.DelayQueue.Name,
		DelayRoutingKey:    cfg.DelayQueue.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initRouter initializes the HTTP router with all routes
func initRouter(environment string, deps *handler.Dependencies) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	return router.SetupRouter(deps)
}
