package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/booking-be/internal/api/broker"
	"github.com/cuongbtq/booking-be/internal/config"
	"github.com/cuongbtq/booking-be/internal/worker"
	"github.com/cuongbtq/booking-be/internal/worker/delivery"
	"github.com/cuongbtq/booking-be/internal/worker/domain"
	"github.com/cuongbtq/booking-be/internal/worker/storage"
	"github.com/cuongbtq/booking-be/shared/logger"
	"github.com/cuongbtq/booking-be/shared/postgresql"
	"github.com/cuongbtq/booking-be/shared/rabbitmq"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	appLogger.Info("Database connection established")

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	appLogger.Info("RabbitMQ connection established")

	providers, err := initProviders(&cfg.Notification, appLogger)
	if err != nil {
		return err
	}

	store := storage.NewStorage(dbClient.GetDB(), appLogger.Component("storage"))

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:        appLogger.Component("worker"),
		Store:         store,
		RabbitClient:  rabbitClient,
		Providers:     providers,
		Concurrency:   cfg.Worker.Concurrency,
		PrefetchCount: cfg.RabbitMQ.Consumer.PrefetchCount,
		TaskTimeout:   cfg.Worker.TaskTimeout,
		MaxAttempts:   cfg.Worker.MaxAttempts,
		QueueName:     cfg.RabbitMQ.Queue.Name,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return workerInstance.Start(gctx)
	})

	if cfg.Sweep.Enabled {
		sweeper, err := worker.NewSweeper(&worker.SweepConfig{
			Logger:   appLogger.Component("sweep"),
			Store:    store,
			Events:   broker.NewBroker(rabbitClient, appLogger.Component("broker")),
			Schedule: cfg.Sweep.Schedule,
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return sweeper.Start(gctx)
		})
	}

	appLogger.Info("Worker service started successfully",
		slog.Int("providers", len(providers)),
		slog.Bool("sweep", cfg.Sweep.Enabled),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case <-gctx.Done():
		appLogger.Error("Worker error",
			slog.Any("error", context.Cause(gctx)),
		)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan error, 1)
	go func() {
		workerInstance.Stop()
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil && err != context.Canceled {
			return err
		}
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initProviders builds a delivery provider for every configured channel.
// Tasks for a channel without a provider are recorded as skipped.
func initProviders(cfg *config.NotificationConfig, appLogger *logger.Logger) (map[domain.Channel]worker.Provider, error) {
	providers := make(map[domain.Channel]worker.Provider)

	if cfg.SMTP.Host != "" {
		providers[domain.ChannelEmail] = delivery.NewMailer(&delivery.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	if cfg.SMS.URL != "" {
		providers[domain.ChannelSMS] = delivery.NewSMSGateway(&delivery.SMSConfig{
			URL:     cfg.SMS.URL,
			APIKey:  cfg.SMS.APIKey,
			Sender:  cfg.SMS.Sender,
			Timeout: cfg.SMS.Timeout,
		})
	}

	if cfg.Telegram.Token != "" {
		push, err := delivery.NewTelegramPush(cfg.Telegram.Token, appLogger.Component("telegram"))
		if err != nil {
			return nil, err
		}
		providers[domain.ChannelPush] = push
	}

	for _, ch := range []domain.Channel{domain.ChannelEmail, domain.ChannelSMS, domain.ChannelPush} {
		if _, ok := providers[ch]; !ok {
			appLogger.Warn("No provider configured, tasks will be skipped",
				slog.String("channel", string(ch)),
			)
		}
	}

	return providers, nil
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

// initRabbitMQ initializes the RabbitMQ client. The worker consumes the
// notification queue, so it declares the same topology as the API.
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
