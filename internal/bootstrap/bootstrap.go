// Package bootstrap wires configuration into the collaborators shared by
// the API and worker processes.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/campus-bookx/exchange-hub/config"
	"github.com/campus-bookx/exchange-hub/internal/application/command"
	"github.com/campus-bookx/exchange-hub/internal/application/query"
	"github.com/campus-bookx/exchange-hub/internal/domain/exchange"
	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
	"github.com/campus-bookx/exchange-hub/internal/domain/student"
	"github.com/campus-bookx/exchange-hub/internal/infrastructure/messaging"
	"github.com/campus-bookx/exchange-hub/internal/infrastructure/persistence/memory"
	"github.com/campus-bookx/exchange-hub/internal/infrastructure/persistence/postgres"
	"github.com/campus-bookx/exchange-hub/internal/infrastructure/persistence/redis"
	"github.com/campus-bookx/exchange-hub/internal/interface/http/handlers"
	"github.com/campus-bookx/exchange-hub/pkg/logger"
	"github.com/campus-bookx/exchange-hub/pkg/retry"
	"github.com/campus-bookx/exchange-hub/pkg/timeutil"
)

// Dependencies holds everything a process needs to serve matching runs.
type Dependencies struct {
	Config *config.Config
	Logger *logger.Logger

	// Exactly one of DB and Memory is set, following the store backend.
	DB     *postgres.Connection
	Memory *memory.Store
	Redis  *redis.Client

	Publisher shared.EventPublisher

	RunMatching *command.RunMatchingHandler
	ListRuns    *query.ListMatchingRunsHandler
	ListSlots   *query.ListSlotsHandler
	Health      *handlers.CompositeHealthChecker

	closers []func()
}

// store groups the repository roles one backend fills.
type store struct {
	students  student.Repository
	checker   student.MatchChecker
	terms     exchange.TermResolver
	slots     exchange.SlotRepository
	locations exchange.LocationRepository
	committer exchange.MatchCommitter
	runs      exchange.RunRecorder
	ping      handlers.HealthCheckFunc
}

// NewLogger builds the process logger from the app section.
func NewLogger(cfg config.AppConfig) *logger.Logger {
	format := logger.FormatJSON
	if cfg.LogFormat == string(logger.FormatText) {
		format = logger.FormatText
	}
	return logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: format,
	}).With(
		logger.String("app", cfg.Name),
		logger.String("env", string(cfg.Environment)),
	)
}

// Build connects to the configured backends and assembles the handlers.
// On error everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (deps *Dependencies, err error) {
	if cfg.App.Location != nil {
		timeutil.SetLocation(cfg.App.Location)
	}

	d := &Dependencies{
		Config: cfg,
		Logger: log,
		Health: handlers.NewCompositeHealthChecker(cfg.App.Version),
	}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	st, err := d.openStore(ctx)
	if err != nil {
		return nil, err
	}
	d.Health.AddCheck("store", st.ping)

	lock, err := d.openLock(ctx)
	if err != nil {
		return nil, err
	}

	d.Publisher, err = d.openPublisher()
	if err != nil {
		return nil, err
	}

	m := cfg.Matching
	d.RunMatching = command.NewRunMatchingHandler(command.RunMatchingDeps{
		Lock:       lock,
		Terms:      st.terms,
		Students:   st.students,
		Checker:    st.checker,
		Slots:      st.slots,
		Locations:  st.locations,
		Committer:  st.committer,
		Recorder:   st.runs,
		Publisher:  d.Publisher,
		DatePolicy: m.DatePolicy(),
		Allocation: m.AllocatorOptions(),
		Logger:     log,
	})
	d.ListRuns = query.NewListMatchingRunsHandler(st.runs)
	d.ListSlots = query.NewListSlotsHandler(st.slots, m.DatePolicy(), timeutil.Now)

	log.Info("dependencies ready",
		logger.String("store", m.StoreBackend),
		logger.String("lock", m.LockBackend),
		logger.Bool("kafka", cfg.Kafka.Enabled()),
	)
	return d, nil
}

func (d *Dependencies) openStore(ctx context.Context) (*store, error) {
	cfg := d.Config

	if cfg.Matching.StoreBackend == config.BackendMemory {
		d.Memory = memory.New()
		d.Logger.Warn("using in-memory store; data is lost on exit")
		return &store{
			students: d.Memory, checker: d.Memory, terms: d.Memory,
			slots: d.Memory, locations: d.Memory, committer: d.Memory,
			runs: d.Memory, ping: d.Memory.Ping,
		}, nil
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = cfg.Database.MaxConns
	pgCfg.MinConns = cfg.Database.MinConns
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	pgCfg.ConnectTimeout = cfg.Database.ConnectTimeout
	pgCfg.TimeZone = cfg.App.Timezone

	policy := retry.StartupPolicy(cfg.Database.ConnectRetries)
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		d.Logger.Warn("database not reachable, retrying",
			logger.Int("attempt", attempt), logger.Duration("delay", delay), logger.Err(err))
	}
	conn, err := retry.Value(ctx, policy, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnection(ctx, pgCfg)
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	d.DB = conn
	d.closers = append(d.closers, conn.Close)

	if cfg.Database.AutoMigrate {
		n, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		d.Logger.Info("migrations applied", logger.Int("count", n))
	}

	students := postgres.NewStudentRepository(conn)
	slots := postgres.NewSlotRepository(conn)
	matches := postgres.NewMatchRepository(conn)
	return &store{
		students: students, checker: students, terms: matches,
		slots: slots, locations: slots, committer: matches,
		runs: postgres.NewRunRepository(conn), ping: conn.Ping,
	}, nil
}

func (d *Dependencies) openLock(ctx context.Context) (exchange.RunLock, error) {
	m := d.Config.Matching
	switch m.LockBackend {
	case config.BackendRedis:
		rc := redis.DefaultConfig()
		rc.URL = d.Config.Redis.URL
		rc.PoolSize = d.Config.Redis.PoolSize
		rc.DialTimeout = d.Config.Redis.DialTimeout
		rc.ReadTimeout = d.Config.Redis.ReadTimeout
		rc.WriteTimeout = d.Config.Redis.WriteTimeout

		client, err := retry.Value(ctx, retry.StartupPolicy(d.Config.Database.ConnectRetries),
			func(ctx context.Context) (*redis.Client, error) { return redis.NewClient(ctx, rc) })
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		d.Redis = client
		d.closers = append(d.closers, func() { _ = client.Close() })
		d.Health.AddCheck("redis", client.Ping)
		return redis.NewRunLock(client, m.LockName, m.LockTTL), nil

	case config.BackendPostgres:
		if d.DB == nil {
			return nil, fmt.Errorf("postgres lock requires the postgres store")
		}
		return postgres.NewAdvisoryLock(d.DB, m.LockName), nil

	default:
		return memory.NewRunLock(), nil
	}
}

func (d *Dependencies) openPublisher() (shared.EventPublisher, error) {
	k := d.Config.Kafka
	if !k.Enabled() {
		return messaging.NewLogPublisher(d.Logger), nil
	}
	kp, err := messaging.NewKafkaPublisher(messaging.KafkaConfig{
		Brokers:      k.Brokers,
		Topic:        k.Topic,
		WriteTimeout: k.WriteTimeout,
	}, d.Logger)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, func() {
		if err := kp.Close(); err != nil {
			d.Logger.Warn("failed to close kafka writer", logger.Err(err))
		}
	})
	// Events also go to the log so a broker outage leaves a trace.
	return messaging.NewMultiPublisher(kp, messaging.NewLogPublisher(d.Logger)), nil
}

// Close releases connections in reverse order of opening.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}
