package simplify

import (
	"context"
	"time"

	"github.com/sneharawat080/medsimplify/internal/config"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/logging"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/prometheus"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/storage/minio"
	"github.com/sneharawat080/medsimplify/internal/intelligence/lab_kb"
	"github.com/sneharawat080/medsimplify/internal/intelligence/report_builder"
	"github.com/sneharawat080/medsimplify/pkg/errors"
)

// KnowledgeBaseSource returns the source selected by cfg.KB. The MinIO source
// owns a client; release it with the returned closer once loading is done.
func KnowledgeBaseSource(cfg *config.Config, logger logging.Logger) (lab_kb.Source, func() error, error) {
	noop := func() error { return nil }
	switch cfg.KB.Source {
	case "", config.KBSourceEmbedded:
		return lab_kb.EmbeddedSource{}, noop, nil
	case config.KBSourceFile:
		return lab_kb.FileSource{Path: cfg.KB.Path}, noop, nil
	case config.KBSourceMinIO:
		client, err := minio.NewClient(minio.Config{
			Endpoint:        cfg.MinIO.Endpoint,
			AccessKeyID:     cfg.MinIO.AccessKeyID,
			SecretAccessKey: cfg.MinIO.SecretAccessKey,
			UseSSL:          cfg.MinIO.UseSSL,
			Region:          cfg.MinIO.Region,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return minio.NewKBSource(client, cfg.KB.Bucket, cfg.KB.Object), client.Close, nil
	default:
		return nil, noop, errors.InvalidParam("unknown knowledge base source").WithDetail(cfg.KB.Source)
	}
}

// LoadKnowledgeBase loads and builds the configured knowledge base. A failure
// here must stop the process.
func LoadKnowledgeBase(ctx context.Context, cfg *config.Config, logger logging.Logger, metrics *prometheus.AppMetrics) (*lab_kb.KnowledgeBase, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	src, closeSrc, err := KnowledgeBaseSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer closeSrc()

	start := time.Now()
	kb, err := lab_kb.Load(ctx, src)
	if err != nil {
		logger.Error("failed to load knowledge base", logging.String("source", src.Name()), logging.Err(err))
		return nil, err
	}

	prometheus.RecordKnowledgeBase(metrics, kb.Version(), src.Name(), kb.Len(), time.Now())
	logger.Info("knowledge base loaded",
		logging.String("source", src.Name()),
		logging.String("version", kb.Version()),
		logging.Int("tests", kb.Len()),
		logging.Duration("took", time.Since(start)),
	)
	return kb, nil
}

// NewFromConfig loads the knowledge base and assembles the engine and the
// service with the configured limits. opts are applied after the config.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger logging.Logger, metrics *prometheus.AppMetrics, opts ...Option) (Service, *lab_kb.KnowledgeBase, error) {
	kb, err := LoadKnowledgeBase(ctx, cfg, logger, metrics)
	if err != nil {
		return nil, nil, err
	}

	var engineOpts []report_builder.Option
	if cfg.Engine.LogLowConfidence && logger != nil {
		engineOpts = append(engineOpts, report_builder.WithLogger(logger.Named("engine")))
	}
	engine, err := report_builder.New(kb, engineOpts...)
	if err != nil {
		return nil, nil, err
	}

	all := append([]Option{
		WithConfig(Config{
			MaxTextLength:    cfg.Engine.MaxTextLength,
			PreviewLength:    cfg.Engine.PreviewLength,
			LogLowConfidence: cfg.Engine.LogLowConfidence,
		}),
		WithMetrics(metrics),
	}, opts...)
	return NewService(engine, logger, all...), kb, nil
}
