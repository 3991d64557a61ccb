package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/ldwatch/internal/breach"
	"github.com/wonny/ldwatch/internal/clause"
	"github.com/wonny/ldwatch/internal/contracts"
	"github.com/wonny/ldwatch/internal/detector"
	"github.com/wonny/ldwatch/internal/engine"
	"github.com/wonny/ldwatch/internal/notify"
	"github.com/wonny/ldwatch/internal/quality"
	"github.com/wonny/ldwatch/internal/rules"
	"github.com/wonny/ldwatch/internal/rulesconfig"
	"github.com/wonny/ldwatch/internal/timeseries"
	"github.com/wonny/ldwatch/pkg/config"
	"github.com/wonny/ldwatch/pkg/database"
	"github.com/wonny/ldwatch/pkg/logger"
	"github.com/wonny/ldwatch/pkg/observability"
	"github.com/wonny/ldwatch/pkg/redis"
)

const keyPrefix = "ldwatch"

// app holds the wired runtime shared by api, evaluate and scheduler
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *database.DB
	redis      *redis.Client
	telemetry  *observability.Provider
	rules      *rulesconfig.Config
	configHash string

	clauses   *clause.Repository
	breaches  *breach.SQLRepository
	snapshots *quality.Repository
	pgSeries  *timeseries.Repository
	series    contracts.TimeSeriesStore
	runner    *engine.Runner

	closers []func()
}

// newApp connects every dependency and builds the engine
// ⭐ SSOT: 런타임 조립은 여기서만
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, log: logger.New(cfg)}

	// 1. Rules configuration
	rcfg, err := rulesconfig.LoadOrDefault(cfg.Engine.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("load rules config: %w", err)
	}
	for _, w := range rulesconfig.Warn(rcfg) {
		a.log.WithField("code", w.Code).Warn(w.Message)
	}
	hash, err := rulesconfig.Hash(rcfg)
	if err != nil {
		return nil, fmt.Errorf("hash rules config: %w", err)
	}
	a.rules, a.configHash = rcfg, hash

	// 2. Database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	// 3. Redis (run lock + latest result cache)
	rc, err := redis.New(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = rc
	a.closers = append(a.closers, func() { _ = rc.Close() })

	// 4. Telemetry
	tp, err := observability.New(ctx, cfg.Telemetry, cfg.Env, a.log.Component("observability"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.telemetry = tp
	a.closers = append(a.closers, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(sctx)
	})

	// 5. Repositories
	a.clauses = clause.NewRepository(db.Pool)
	a.breaches = breach.NewSQLRepository(db.SQL())
	a.snapshots = quality.NewRepository(db.Pool)
	a.pgSeries = timeseries.NewRepository(db.Pool)
	a.series = a.pgSeries

	if cfg.Engine.TimeSeriesSource == "influx" {
		influx := timeseries.NewInfluxStore(timeseries.InfluxConfig{
			URL:         cfg.Influx.URL,
			Token:       cfg.Influx.Token,
			Org:         cfg.Influx.Org,
			Bucket:      cfg.Influx.Bucket,
			Measurement: cfg.Influx.Measurement,
		}, a.pgSeries)
		a.closers = append(a.closers, influx.Close)

		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := influx.Ping(pctx); err != nil {
			a.Close()
			return nil, err
		}
		a.series = influx
	}

	// 6. Notification fan-out
	var publisher contracts.NotificationPublisher = notify.NopPublisher{}
	if cfg.NATS.Enabled {
		np, err := notify.NewNATSPublisher(notify.Config{
			URL:           cfg.NATS.URL,
			Subject:       cfg.NATS.Subject,
			Name:          "ldwatch-" + cfg.Env,
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait,
		}, a.log.Component("notify"))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to nats: %w", err)
		}
		publisher = np
		a.closers = append(a.closers, func() { _ = np.Close() })
	}

	// 7. Engine
	orch := engine.NewOrchestrator(engine.Deps{
		Clauses:   a.clauses,
		Series:    a.series,
		Store:     a.breaches,
		Detector:  detector.New(rcfg.DetectorConfig(), a.log.Component("detector")),
		Checker:   quality.NewValidator(rcfg.QualityConfig()),
		Registry:  rules.NewRegistry(rcfg.CategoryKinds(), rcfg.RulesEnv()),
		Publisher: publisher,
		Snapshots: a.snapshots,
		Telemetry: tp,
	}, engine.Options{
		Workers:       cfg.Engine.Workers,
		Timeout:       cfg.Engine.Timeout,
		MeterTypeCode: cfg.Engine.MeterTypeCode,
		ConfigHash:    hash,
		Severity:      rcfg.Severity,
	}, a.log.Component("engine"))

	a.runner = engine.NewRunner(
		orch,
		newRunLock(rc, cfg.Engine.LockTTL),
		redis.NewCache(rc, keyPrefix),
		cfg.Engine.ResultCacheTTL,
		a.log.Component("runner"),
	)

	a.log.WithFields(map[string]interface{}{
		"ruleset":     rcfg.Meta.RulesetID,
		"config_hash": hash[:12],
		"series":      cfg.Engine.TimeSeriesSource,
		"redis":       rc.Enabled(),
		"nats":        cfg.NATS.Enabled,
	}).Info("Engine initialized")

	return a, nil
}

// health checks the database and, when enabled, Redis
func (a *app) health(ctx context.Context) error {
	if err := a.db.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if a.redis.Enabled() {
		if err := a.redis.Redis().Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases dependencies in reverse order
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// newRunLock 는 ldwatch:lock:<key> 형태의 잠금 키를 쓴다 (":lock" 은 RunLock 이 붙임)
func newRunLock(rc *redis.Client, ttl time.Duration) *redis.RunLock {
	return redis.NewRunLock(rc, keyPrefix, ttl)
}
