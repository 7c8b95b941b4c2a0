// Command worker consumes lab.text.submitted events, simplifies each report
// and publishes the result to report.simplified.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sneharawat080/medsimplify/internal/application/simplify"
	"github.com/sneharawat080/medsimplify/internal/config"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/database/redis"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/messaging/kafka"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/logging"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/prometheus"
	httpapi "github.com/sneharawat080/medsimplify/internal/interfaces/http"
	"github.com/sneharawat080/medsimplify/internal/interfaces/http/handlers"
	"github.com/sneharawat080/medsimplify/internal/interfaces/messaging"
	"github.com/sneharawat080/medsimplify/pkg/errors"
)

const (
	defaultWorkerConfigPath = "configs/config.yaml"
	shutdownTimeout         = 30 * time.Second
	dedupTTL                = 24 * time.Hour
)

var version = "dev"

func main() {
	configPath := flag.String("config", defaultWorkerConfigPath, "path to configuration file")
	createTopics := flag.Bool("create-topics", false, "create the input, output and dead letter topics before consuming")
	flag.Parse()

	if err := run(*configPath, *createTopics); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, createTopics bool) error {
	_ = config.LoadDotEnv()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting MedSimplify worker",
		logging.String("version", version),
		logging.String("input_topic", cfg.Kafka.InputTopic),
		logging.String("output_topic", cfg.Kafka.OutputTopic),
		logging.Strings("brokers", cfg.Kafka.Brokers))

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return err
	}
	metrics := prometheus.NewAppMetrics(collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, kb, err := simplify.NewFromConfig(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}

	if createTopics {
		if err := ensureTopics(ctx, cfg, logger); err != nil {
			return err
		}
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:    cfg.Kafka.Brokers,
		Acks:       "all",
		MaxRetries: cfg.Kafka.MaxRetries,
	}, logger)
	if err != nil {
		logger.Error("failed to create Kafka producer", logging.Err(err))
		return err
	}
	defer producer.Close()

	checkers := []handlers.HealthChecker{
		handlers.CheckFunc{Component: "knowledge_base", Fn: func(context.Context) error {
			if kb.Len() == 0 {
				return errors.New(errors.ErrCodeServiceUnavailable, "knowledge base is empty")
			}
			return nil
		}},
	}
	handlerOpts := []messaging.HandlerOption{messaging.WithMetrics(metrics)}

	if cfg.Redis.Enabled {
		rc, err := redis.NewClient(redisConfig(cfg.Redis), logger)
		if err != nil {
			logger.Error("failed to connect to redis", logging.Err(err))
			return err
		}
		defer rc.Close()
		handlerOpts = append(handlerOpts, messaging.WithDeduplicator(redis.NewDeduplicator(rc, dedupTTL)))
		checkers = append(checkers, handlers.CheckFunc{Component: "redis", Fn: rc.Ping})
	}

	handler := messaging.NewLabTextHandler(svc, producer, messaging.HandlerConfig{
		InputTopic:      cfg.Kafka.InputTopic,
		OutputTopic:     cfg.Kafka.OutputTopic,
		DeadLetterTopic: cfg.Kafka.DeadLetterTopic,
		Timeout:         cfg.Worker.HandlerTimeout,
	}, logger, handlerOpts...)

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         cfg.Kafka.Brokers,
		GroupID:         cfg.Kafka.GroupID,
		Topics:          []string{handler.Topic()},
		AutoOffsetReset: cfg.Kafka.AutoOffsetReset,
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      cfg.Kafka.MaxRetries,
			DeadLetterTopic: cfg.Kafka.DeadLetterTopic,
		},
	}, producer, logger)
	if err != nil {
		logger.Error("failed to create Kafka consumer", logging.Err(err))
		return err
	}
	consumer.Subscribe(handler.Topic(), handler.Handle)

	healthSrv := startHealthServer(cfg, collector, metrics, logger, checkers...)

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	logger.Info("worker started",
		logging.String("kb_version", kb.Version()),
		logging.Int("health_port", cfg.Worker.HealthPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("received shutdown signal", logging.String("signal", sig.String()))

	cancel()
	if err := consumer.Close(); err != nil {
		logger.Error("consumer close error", logging.Err(err))
	}
	logger.Info("consumer stopped",
		logging.Int64("processed", consumer.Processed()),
		logging.Int64("dead_lettered", consumer.DeadLettered()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := healthSrv.Stop(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", logging.Err(err))
	}

	logger.Info("MedSimplify worker stopped")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err == nil {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}

func redisConfig(rc config.RedisConfig) redis.ClientConfig {
	return redis.ClientConfig{
		Addr:         rc.Addr,
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
		KeyPrefix:    rc.KeyPrefix,
	}
}

func ensureTopics(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	tm, err := kafka.NewTopicManager(cfg.Kafka.Brokers, logger)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, kafka.DefaultTopics(cfg.Kafka.InputTopic, cfg.Kafka.OutputTopic, cfg.Kafka.DeadLetterTopic))
}

// startHealthServer exposes /healthz, /readyz and /metrics on the side port.
func startHealthServer(cfg *config.Config, collector prometheus.MetricsCollector, metrics *prometheus.AppMetrics, logger logging.Logger, checkers ...handlers.HealthChecker) *httpapi.Server {
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Mode:             "release",
		Version:          version,
		HealthHandler:    handlers.NewHealthHandler(version, metrics, checkers...),
		Logger:           logger,
		MetricsCollector: collector,
		MetricsPath:      cfg.Metrics.Path,
	})
	srv := httpapi.NewServer(httpapi.ServerConfig{
		Addr:            fmt.Sprintf(":%d", cfg.Worker.HealthPort),
		ShutdownTimeout: 5 * time.Second,
	}, router, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("health server error", logging.Err(err))
		}
	}()
	return srv
}
