package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/kandyfoma/hk-management-systems-sub000/internal/config"
	"github.com/kandyfoma/hk-management-systems-sub000/internal/domain/checklist"
	"github.com/kandyfoma/hk-management-systems-sub000/internal/domain/protocol"
	"github.com/kandyfoma/hk-management-systems-sub000/internal/platform/db"
	"github.com/kandyfoma/hk-management-systems-sub000/internal/platform/metrics"
	"github.com/kandyfoma/hk-management-systems-sub000/internal/platform/snapshot"
	"github.com/kandyfoma/hk-management-systems-sub000/internal/platform/syncgw"
)

// app holds the wired components shared by serve and the one-shot commands.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
	engine  *protocol.Engine
	source  protocol.Source
	cache   *snapshot.Store
	pool    *pgxpool.Pool
	redis   *redis.Client
	closers []func()
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Str("service", "ohs-server").Logger()
}

// newApp builds the engine from the bundled snapshot, replaces it with the
// cached one when available and connects the configured sync source.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	initial, err := protocol.DefaultSnapshot()
	if err != nil {
		return nil, fmt.Errorf("load bundled snapshot: %w", err)
	}

	opts := []protocol.EngineOption{
		protocol.WithLogger(logger.With().Str("component", "protocol").Logger()),
		protocol.WithMetrics(a.metrics),
		protocol.WithProtocolTieBreak(protocol.ParseTieBreak(cfg.ProtocolTieBreak)),
	}
	if cfg.SnapshotCachePath != "" {
		store, err := snapshot.Open(ctx, cfg.SnapshotCachePath)
		if err != nil {
			return nil, err
		}
		a.cache = store
		a.closers = append(a.closers, func() { _ = store.Close() })
		opts = append(opts, protocol.WithSnapshotCache(store))
	}
	a.engine = protocol.NewEngine(initial, opts...)

	if err := a.engine.Restore(ctx); err != nil {
		if !errors.Is(err, snapshot.ErrNoSnapshot) {
			logger.Warn().Err(err).Msg("ignoring unreadable snapshot cache")
		}
	}

	if err := a.connectSource(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) connectSource(ctx context.Context) error {
	cfg := a.cfg
	switch cfg.SyncSource {
	case config.SourceHTTP:
		a.source = syncgw.NewHTTPSource(syncgw.HTTPConfig{
			BaseURL: cfg.SyncBaseURL,
			Token:   cfg.SyncAPIToken,
			Timeout: cfg.SyncTimeout,
			Retries: cfg.SyncRetries,
		}, a.logger.With().Str("component", "syncgw").Logger())
	case config.SourceS3:
		src, err := syncgw.NewS3Source(ctx, syncgw.S3Config{
			Bucket:    cfg.SyncS3Bucket,
			Region:    cfg.SyncS3Region,
			Endpoint:  cfg.SyncS3Endpoint,
			Prefix:    cfg.SyncS3Prefix,
			PathStyle: cfg.SyncS3PathStyle,
		})
		if err != nil {
			return fmt.Errorf("connect s3 source: %w", err)
		}
		a.source = src
	case config.SourcePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return err
		}
		a.pool = pool
		a.closers = append(a.closers, pool.Close)
		a.source = syncgw.NewPostgresSource(pool)
	}
	return nil
}

// draftStore returns the Redis store when REDIS_URL is set, otherwise an
// in-process store that loses drafts on restart.
func (a *app) draftStore() (checklist.DraftStore, error) {
	if a.cfg.RedisURL == "" {
		a.logger.Warn().Msg("REDIS_URL not set, checklist drafts are kept in memory")
		return checklist.NewMemoryDraftStore(), nil
	}
	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	a.redis = redis.NewClient(opts)
	a.closers = append(a.closers, func() { _ = a.redis.Close() })
	return checklist.NewRedisDraftStore(a.redis), nil
}

func (a *app) checklistService() (*checklist.Service, error) {
	store, err := a.draftStore()
	if err != nil {
		return nil, err
	}
	svc := checklist.NewService(checklist.NewBuilder(a.engine, nil), store, a.cfg.DraftTTL)
	svc.SetMetrics(a.metrics)
	svc.SetLogger(a.logger.With().Str("component", "checklist").Logger())
	return svc, nil
}

func (a *app) healthChecks() map[string]db.Check {
	checks := map[string]db.Check{
		"protocol_index": func(context.Context) error {
			if a.engine.Index().Counts().Positions == 0 {
				return errors.New("protocol index is empty")
			}
			return nil
		},
	}
	if a.cache != nil {
		checks["snapshot_cache"] = a.cache.Ping
	}
	if a.pool != nil {
		checks["postgres"] = a.pool.Ping
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	return checks
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bootstrap loads config and builds the app, logging to stderr so command
// output on stdout stays machine-readable.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, newLogger(cfg, os.Stderr))
}
