// Command apiserver serves the MedSimplify REST API and, when enabled, the
// gRPC Simplifier service.
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
	grpcapi "github.com/sneharawat080/medsimplify/internal/interfaces/grpc"
	httpapi "github.com/sneharawat080/medsimplify/internal/interfaces/http"
	"github.com/sneharawat080/medsimplify/internal/interfaces/http/handlers"
	"github.com/sneharawat080/medsimplify/internal/interfaces/http/middleware"
)

const (
	defaultConfigPath = "configs/config.yaml"
	shutdownTimeout   = 30 * time.Second
)

var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	grpcPort := flag.Int("grpc-port", 0, "gRPC server port (overrides config)")
	flag.Parse()

	if err := run(*configPath, *httpPort, *grpcPort); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, httpPort, grpcPort int) error {
	_ = config.LoadDotEnv()

	cfg, fromFile, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if httpPort > 0 {
		cfg.Server.Port = httpPort
	}
	if grpcPort > 0 {
		cfg.GRPC.Port = grpcPort
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting MedSimplify API server",
		logging.String("version", version),
		logging.String("http_addr", cfg.Server.ListenAddr()),
		logging.Bool("grpc_enabled", cfg.GRPC.Enabled),
		logging.Int("grpc_port", cfg.GRPC.Port))

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

	infra, err := initInfrastructure(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize infrastructure", logging.Err(err))
		return err
	}
	defer infra.Close()

	var svcOpts []simplify.Option
	if infra.producer != nil {
		svcOpts = append(svcOpts, simplify.WithPublisher(infra.producer, cfg.Kafka.OutputTopic))
	}
	svc, kb, err := simplify.NewFromConfig(ctx, cfg, logger, metrics, svcOpts...)
	if err != nil {
		return err
	}

	checkers := []handlers.HealthChecker{&kbHealthAdapter{kb: kb}}
	if infra.redis != nil {
		checkers = append(checkers, &redisHealthAdapter{client: infra.redis})
	}

	routerCfg := httpapi.RouterConfig{
		Mode:            cfg.Server.Mode,
		Version:         version,
		SimplifyHandler: handlers.NewSimplifyHandler(svc, logger, cfg.Server.MaxUploadSize),
		HealthHandler:   handlers.NewHealthHandler(version, metrics, checkers...),
		CORS:            corsConfig(cfg.Server.AllowedOrigins),
		RateLimit:       middleware.DefaultRateLimitConfig(),
		Logging:         middleware.DefaultLoggingConfig(),
		Logger:          logger,
		Metrics:         metrics,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsCollector = collector
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	var memLimiter *middleware.TokenBucketLimiter
	if cfg.RateLimit.Enabled {
		limiter, stop, err := newRateLimiter(cfg.RateLimit, infra.redis)
		if err != nil {
			return err
		}
		defer stop()
		routerCfg.RateLimiter = limiter
		memLimiter, _ = limiter.(*middleware.TokenBucketLimiter)
	}

	httpSrv := httpapi.NewServer(httpapi.ServerConfig{
		Addr:            cfg.Server.ListenAddr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, httpapi.NewRouter(routerCfg), logger)

	errCh := make(chan error, 2)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcSrv *grpcapi.Server
	if cfg.GRPC.Enabled {
		grpcSrv = grpcapi.NewServer(cfg.GRPC,
			grpcapi.WithLogger(logger),
			grpcapi.WithMetrics(metrics),
			grpcapi.WithGracefulTimeout(cfg.Server.ShutdownTimeout))
		grpcSrv.RegisterService(&grpcapi.SimplifierServiceDesc, grpcapi.NewSimplifierService(svc, logger))
		go func() {
			if err := grpcSrv.Start(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	if fromFile {
		watchConfig(configPath, logger, memLimiter)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", logging.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("server failed", logging.Err(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Stop(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", logging.Err(err))
	}
	if grpcSrv != nil {
		if err := grpcSrv.Stop(shutdownCtx); err != nil {
			logger.Error("gRPC server shutdown error", logging.Err(err))
		}
	}

	logger.Info("MedSimplify API server stopped")
	return nil
}

// loadConfig reads path when it exists and falls back to the environment.
func loadConfig(path string) (*config.Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := config.Load(path)
		return cfg, true, err
	}
	cfg, err := config.LoadFromEnv()
	return cfg, false, err
}

// watchConfig hot-reloads the log level and the in-memory rate limit. Every
// other setting needs a restart.
func watchConfig(path string, logger logging.Logger, limiter *middleware.TokenBucketLimiter) {
	err := config.Watch(path, func(cfg *config.Config) {
		logging.SetLevel(logger, cfg.Log.Level)
		if limiter != nil {
			limiter.SetPerMinute(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
		}
		logger.Info("configuration reloaded",
			logging.String("log_level", cfg.Log.Level),
			logging.Int("requests_per_minute", cfg.RateLimit.RequestsPerMinute))
	}, func(err error) {
		logger.Warn("ignoring invalid configuration change", logging.Err(err))
	})
	if err != nil {
		logger.Warn("config watch disabled", logging.Err(err))
	}
}

type infrastructure struct {
	redis    *redis.Client
	producer *kafka.Producer
}

func (i *infrastructure) Close() {
	if i.producer != nil {
		_ = i.producer.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
}

func initInfrastructure(cfg *config.Config, logger logging.Logger) (*infrastructure, error) {
	infra := &infrastructure{}

	if cfg.Redis.Enabled {
		rc, err := redis.NewClient(redis.ClientConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			KeyPrefix:    cfg.Redis.KeyPrefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		infra.redis = rc
	}

	if cfg.Kafka.Enabled && cfg.Kafka.PublishReports {
		p, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:    cfg.Kafka.Brokers,
			Acks:       "one",
			MaxRetries: cfg.Kafka.MaxRetries,
		}, logger)
		if err != nil {
			infra.Close()
			return nil, err
		}
		infra.producer = p
	}

	logger.Info("infrastructure initialized",
		logging.Bool("redis", infra.redis != nil),
		logging.Bool("kafka_producer", infra.producer != nil))
	return infra, nil
}

func newRateLimiter(cfg config.RateLimitConfig, rc *redis.Client) (middleware.RateLimiter, func(), error) {
	if cfg.Backend == middleware.BackendRedis {
		if rc == nil {
			return nil, nil, fmt.Errorf("rate_limit.backend is redis but redis is disabled")
		}
		l, err := redis.NewRateLimiter(rc, cfg.RequestsPerMinute, time.Minute)
		if err != nil {
			return nil, nil, err
		}
		return middleware.NewRedisLimiter(l), func() {}, nil
	}
	l := middleware.NewPerMinuteLimiter(cfg.RequestsPerMinute, cfg.Burst)
	return l, l.Stop, nil
}

func corsConfig(origins []string) *middleware.CORSConfig {
	c := middleware.DefaultCORSConfig()
	c.AllowedOrigins = origins
	return &c
}
