package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/bioforge/trialdossier/internal/application/disease"
	"github.com/bioforge/trialdossier/internal/config"
	"github.com/bioforge/trialdossier/internal/domain/relation"
	"github.com/bioforge/trialdossier/internal/infrastructure/chembl"
	"github.com/bioforge/trialdossier/internal/infrastructure/database/postgres"
	redisdb "github.com/bioforge/trialdossier/internal/infrastructure/database/redis"
	"github.com/bioforge/trialdossier/internal/infrastructure/llm"
	"github.com/bioforge/trialdossier/internal/infrastructure/mesh"
	"github.com/bioforge/trialdossier/internal/infrastructure/messaging/kafka"
	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/prometheus"
	"github.com/bioforge/trialdossier/internal/infrastructure/snapshot"
	miniostore "github.com/bioforge/trialdossier/internal/infrastructure/storage/minio"
	"github.com/bioforge/trialdossier/internal/output"
)

// runtime holds every infrastructure component one dossier run needs.  Built
// per command invocation, torn down by Close.
type runtime struct {
	cfg    *config.Config
	logger logging.Logger

	db         *postgres.Connection
	redis      *redisdb.Client
	trials     *postgres.TrialRepo
	chembl     *chembl.Client
	fetcher    relation.AnnotationFetcher
	loader     relation.EntityLoader
	normalizer relation.MentionNormalizer
	canon      disease.Canonicalizer
	metrics    *prometheus.Metrics
	metricsSrv *http.Server
	writer     *output.Writer
	uploader   *miniostore.Uploader
	publisher  *kafka.Publisher
}

// buildRuntime connects to the registry database and wires the annotation
// source, normalizer, and optional sinks according to cfg.
func buildRuntime(ctx context.Context, cfg *config.Config, logger logging.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger}

	db, err := postgres.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	rt.db = db

	trials, err := postgres.NewTrialRepo(db)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.trials = trials

	chemblClient, err := chembl.NewClient(cfg.ChEMBL, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.chembl = chemblClient
	rt.fetcher = chemblClient

	if cfg.Redis.Enabled {
		redisClient, err := redisdb.NewClient(cfg.Redis, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.redis = redisClient

		var opts []redisdb.CacheOption
		if cfg.Redis.KeyPrefix != "" {
			opts = append(opts, redisdb.WithPrefix(cfg.Redis.KeyPrefix))
		}
		if cfg.Redis.DefaultTTL > 0 {
			opts = append(opts, redisdb.WithDefaultTTL(cfg.Redis.DefaultTTL))
		}
		cache := redisdb.NewCache(redisClient, logger, opts...)
		rt.fetcher = chembl.NewCachedFetcher(chemblClient, cache, cfg.ChEMBL.CacheTTL, logger)
	}

	if cfg.Resolver.EntitySnapshot != "" {
		loader, err := snapshot.NewLoader(cfg.Resolver.EntitySnapshot, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.loader = loader
	} else {
		rt.loader = chembl.NewEntityLoader(rt.fetcher, cfg.Pipeline.Concurrency, 0, logger)
	}

	if cfg.LLM.Enabled {
		normalizer, err := llm.NewNormalizer(cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.Timeout, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.normalizer = normalizer
	} else {
		rt.normalizer = llm.NewRuleNormalizer()
	}

	if cfg.MeSH.Enabled {
		canon, err := mesh.NewClient(cfg.MeSH.BaseURL, cfg.MeSH.APIKey, cfg.MeSH.Timeout, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.canon = canon
	}

	if cfg.Metrics.Enabled {
		rt.metrics = prometheus.NewMetrics()
		mux := http.NewServeMux()
		mux.Handle("/metrics", rt.metrics.Handler())
		rt.metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := rt.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", logging.Err(err))
			}
		}()
	}

	writer, err := output.NewWriter(cfg.Output.Dir, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.writer = writer

	if cfg.MinIO.Enabled {
		uploader, err := miniostore.NewUploader(ctx, cfg.MinIO, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.uploader = uploader
	}

	if cfg.Kafka.Enabled {
		publisher, err := kafka.NewPublisher(cfg.Kafka, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.publisher = publisher
	}

	return rt, nil
}

// finishRun pushes a written dossier into the optional sinks: object storage
// upload and run-event publication.  Sink failures are logged, not fatal; the
// CSV on disk is the primary artifact.
func (r *runtime) finishRun(ctx context.Context, shape, subject, path string, rows int) {
	var objectKey string
	if r.uploader != nil {
		key, err := r.uploader.UploadDossier(ctx, path)
		if err != nil {
			r.logger.Warn("dossier upload failed", logging.String("path", path), logging.Err(err))
		} else {
			objectKey = key
		}
	}

	if r.publisher != nil {
		err := r.publisher.PublishRunCompleted(ctx, kafka.RunEvent{
			Shape:      shape,
			Subject:    subject,
			Rows:       rows,
			OutputPath: path,
			ObjectKey:  objectKey,
		})
		if err != nil {
			r.logger.Warn("run event publication failed", logging.Err(err))
		}
	}
}

// Close tears the runtime down in reverse construction order.
func (r *runtime) Close() {
	if r.publisher != nil {
		if err := r.publisher.Close(); err != nil {
			r.logger.Warn("publisher close failed", logging.Err(err))
		}
	}
	if r.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := r.metricsSrv.Shutdown(ctx); err != nil {
			r.logger.Warn("metrics server shutdown failed", logging.Err(err))
		}
		cancel()
	}
	if r.redis != nil {
		if err := r.redis.Close(); err != nil {
			r.logger.Warn("redis close failed", logging.Err(err))
		}
	}
	if r.db != nil {
		r.db.Close()
	}
}
