package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"crosspost/internal/config"
	"crosspost/internal/domain"
	"crosspost/internal/events"
	"crosspost/internal/format"
	"crosspost/internal/platform"
	"crosspost/internal/platform/medium"
	"crosspost/internal/platform/wordpress"
	"crosspost/internal/publisher"
	"crosspost/internal/queue"
	"crosspost/internal/scheduler"
	"crosspost/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	emitter, err := events.NewRabbitMQ(events.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer emitter.Close()

	scheduleStore := postgres.NewScheduleStore(db)
	recordStore := postgres.NewPublishRecordStore(db)
	txManager := postgres.NewTransactionManager(db)

	pub := publisher.New(format.New(), emitter, logger, publisher.Config{
		MaxConcurrent:  cfg.Publisher.MaxConcurrent,
		AdapterTimeout: cfg.Publisher.AdapterTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for name, pc := range cfg.Platforms {
		adapter, err := buildAdapter(name, pc, cfg, logger)
		if err != nil {
			logger.Error("failed to build platform adapter", "platform", name, "error", err)
			os.Exit(1)
		}
		if err := pub.AddPlatform(ctx, adapter, pc.Credentials); err != nil {
			logger.Error("failed to register platform", "platform", name, "error", err)
			os.Exit(1)
		}
	}

	manager := queue.NewManager(emitter, logger)
	for _, qc := range cfg.Queues {
		if err := manager.CreateQueue(qc); err != nil {
			logger.Error("failed to create queue", "queue", qc.Name, "error", err)
			os.Exit(1)
		}
	}

	handler := scheduler.NewPublishHandler(pub, scheduleStore, recordStore, logger)
	manager.Register(domain.ItemPublish, handler.Handle)
	manager.RegisterFailureHandler(domain.ItemPublish, handler.HandleFailure)

	svc := scheduler.NewService(
		scheduleStore,
		recordStore,
		txManager,
		manager,
		emitter,
		logger,
		scheduler.Config{
			PollInterval: cfg.Scheduler.PollInterval,
			Grace:        cfg.Scheduler.Grace,
			BatchSize:    cfg.Scheduler.BatchSize,
			QueueName:    cfg.Scheduler.QueueName,
		},
	)

	driver := scheduler.NewDriver(svc, logger)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	manager.Start(ctx)

	logger.Info("starting crosspost daemon",
		"platforms", pub.Platforms(),
		"poll_interval", cfg.Scheduler.PollInterval,
		"queues", len(cfg.Queues),
	)

	if err := driver.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("driver error", "error", err)
		os.Exit(1)
	}

	manager.Wait()
}

func buildAdapter(name string, pc config.PlatformConfig, cfg *config.Config, logger *slog.Logger) (platform.Adapter, error) {
	kind := pc.Adapter
	if kind == "" {
		kind = name
	}

	switch kind {
	case wordpress.PlatformName:
		return wordpress.New(wordpress.Config{
			SiteURL:        pc.Credentials.SiteURL,
			Timeout:        cfg.Publisher.AdapterTimeout,
			MaxAttempts:    cfg.Publisher.Retry.MaxAttempts,
			InitialBackoff: cfg.Publisher.Retry.InitialBackoff,
			MaxBackoff:     cfg.Publisher.Retry.MaxBackoff,
		}, logger), nil
	case medium.PlatformName:
		return medium.New(medium.Config{
			BaseURL:        pc.BaseURL,
			Timeout:        cfg.Publisher.AdapterTimeout,
			MaxAttempts:    cfg.Publisher.Retry.MaxAttempts,
			InitialBackoff: cfg.Publisher.Retry.InitialBackoff,
			MaxBackoff:     cfg.Publisher.Retry.MaxBackoff,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown platform adapter %q", kind)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
