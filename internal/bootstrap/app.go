package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"videojobs/internal/adapter/memory"
	"videojobs/internal/adapter/repo"
	"videojobs/internal/config"
	"videojobs/internal/domain"
	"videojobs/internal/infra"
	"videojobs/internal/infra/credentials"
	"videojobs/internal/infra/geoip"
	"videojobs/internal/notify"
	"videojobs/internal/pipeline"
	"videojobs/internal/providers/inference"
	"videojobs/internal/storage"
)

// Options overrides collaborators that would otherwise be built from Config.
type Options struct {
	Objects domain.ObjectStore
	Runners map[string]domain.StepRunner
	// HTTPClient is used for inference calls.
	HTTPClient *http.Client
	// RelayEvents makes Redis the only source of the local EventBus, so a
	// process that also relays does not record its own updates twice.
	RelayEvents bool
}

// App holds every long-lived component of a process.
type App struct {
	Config   *infra.Config
	Settings *config.Settings
	Logger   infra.Logger

	Jobs     domain.JobStore
	Batches  domain.BatchStore
	StepLogs domain.StepLogStore
	Accounts domain.AccountStore
	Objects  domain.ObjectStore

	Ledger       *pipeline.Ledger
	Steps        *pipeline.StepLog
	Read         *pipeline.ReadModel
	Service      *pipeline.JobService
	Orchestrator *pipeline.Orchestrator
	Pool         *pipeline.Pool

	Events *notify.EventBus
	// Statuses is the Redis status cache; nil without Redis.
	Statuses    *notify.RedisNotifier
	Redis       *redis.Client
	GeoIP       *geoip.Resolver
	Credentials *credentials.Store

	closers []func() error
}

// New wires the application from configuration. Callers must Close it.
func New(ctx context.Context, cfg *infra.Config, logger infra.Logger, opts Options) (app *App, err error) {
	settings, err := config.Load(cfg.PipelineConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load pipeline config: %w", err)
	}
	app = &App{Config: cfg, Settings: settings, Logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	if err := app.openStores(ctx); err != nil {
		return nil, err
	}
	if err := app.openObjects(ctx, opts.Objects); err != nil {
		return nil, err
	}
	notifier, err := app.openNotifiers(ctx, opts.RelayEvents)
	if err != nil {
		return nil, err
	}
	if app.GeoIP, err = geoip.Open(cfg.GeoIPDBPath); err != nil {
		return nil, err
	}
	app.closers = append(app.closers, app.GeoIP.Close)

	catalog := settings.Catalog
	app.Ledger = pipeline.NewLedger(pipeline.LedgerOptions{
		Jobs:     app.Jobs,
		Steps:    app.StepLogs,
		Accounts: app.Accounts,
		Objects:  app.Objects,
		Catalog:  catalog,
		Notifier: notifier,
		Logger:   logger,
	})
	app.Steps = pipeline.NewStepLog(app.StepLogs, app.Jobs, catalog, notifier, logger)
	app.Read = pipeline.NewReadModel(app.Jobs, app.StepLogs, catalog)
	app.Service = pipeline.NewJobService(pipeline.ServiceOptions{
		Ledger:    app.Ledger,
		Steps:     app.Steps,
		Read:      app.Read,
		Admission: pipeline.NewAdmission(settings.Presets),
		Accounts:  app.Accounts,
		Objects:   app.Objects,
		Batches:   app.Batches,
		Tiers:     settings.Tiers,
		Logger:    logger,
	})

	runners := opts.Runners
	if runners == nil {
		if runners, err = app.inferenceRunners(opts.HTTPClient); err != nil {
			return nil, err
		}
	}
	app.Orchestrator, err = pipeline.NewOrchestrator(pipeline.OrchestratorOptions{
		Ledger:     app.Ledger,
		Steps:      app.Steps,
		Catalog:    catalog,
		Runners:    runners,
		Retry:      settings.Retry,
		CancelPoll: cfg.CancelPollInterval,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	app.Pool = pipeline.NewPool(app.Ledger, app.Orchestrator, cfg.WorkerPoolSize, cfg.JobPollInterval, logger)
	return app, nil
}

func (a *App) openStores(ctx context.Context) error {
	tier := domain.Tier(a.Config.DefaultTier)
	if a.Config.StoreDriver == infra.StoreDriverMemory {
		a.Logger.Warn().Msg("bootstrap: using in-memory stores; state is lost on exit")
		a.Jobs = memory.NewJobStore()
		a.Batches = memory.NewBatchStore()
		a.StepLogs = memory.NewStepLogStore()
		a.Accounts = memory.NewAccountStore(tier)
		return nil
	}

	pool, err := infra.NewDBPool(ctx, a.Config)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, closePool(pool))
	sql := infra.NewSQLRunner(pool, a.Logger)
	a.Jobs = repo.NewJobRepository(sql)
	a.Batches = repo.NewBatchRepository(sql)
	a.StepLogs = repo.NewStepLogRepository(sql)
	a.Accounts = repo.NewAccountRepository(sql, tier)
	a.Credentials = credentials.NewStore(sql)
	return nil
}

func (a *App) openObjects(ctx context.Context, override domain.ObjectStore) error {
	if override != nil {
		a.Objects = override
		return nil
	}
	if a.Config.StorageBackend == infra.StorageBackendS3 {
		client, err := infra.NewMinioClient(ctx, a.Config)
		if err != nil {
			return err
		}
		a.Objects = storage.NewS3Store(client, a.Config.S3Bucket)
		return nil
	}
	store, err := storage.NewFileStore(a.Config.StoragePath)
	if err != nil {
		return err
	}
	a.Objects = store
	return nil
}

// openNotifiers feeds the local EventBus and adds Redis and RabbitMQ when
// they are configured.
func (a *App) openNotifiers(ctx context.Context, relay bool) (pipeline.Notifier, error) {
	a.Events = notify.NewEventBus(a.Config.EventBufferSize)
	var sinks []pipeline.Notifier

	client, err := infra.NewRedisClient(ctx, a.Config)
	if err != nil {
		return nil, err
	}
	if client != nil {
		a.Redis = client
		a.closers = append(a.closers, client.Close)
		a.Statuses = notify.NewRedisNotifier(client, notify.DefaultChannel, a.Config.StatusTTL)
		sinks = append(sinks, a.Statuses)
	}
	if client == nil || !relay {
		sinks = append(sinks, a.Events)
	}

	conn, err := infra.NewAMQPConnection(a.Config)
	if err != nil {
		return nil, err
	}
	if conn != nil {
		a.closers = append(a.closers, closeAMQP(conn))
		rabbit, err := notify.NewRabbitNotifier(conn, a.Config.RabbitMQExchange)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rabbit.Close)
		sinks = append(sinks, rabbit)
	}
	return pipeline.NewMultiNotifier(a.Logger, sinks...), nil
}

func (a *App) inferenceRunners(httpClient *http.Client) (map[string]domain.StepRunner, error) {
	var keys inference.KeySource
	if a.Credentials != nil {
		keys = a.Credentials
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: a.Config.InferenceTimeout}
	}
	client, err := inference.NewClient(inference.Options{
		BaseURL:    a.Config.InferenceBaseURL,
		APIKey:     a.Config.InferenceAPIKey,
		Keys:       keys,
		HTTPClient: httpClient,
		Objects:    a.Objects,
		Logger:     a.Logger,
	})
	if err != nil {
		return nil, err
	}
	var services []string
	for _, step := range a.Settings.Catalog.Steps() {
		services = append(services, step.Service)
	}
	return inference.Runners(client, inference.NewValidator(a.Objects), services), nil
}

// RelayRedis feeds updates published by other processes into the local
// EventBus until ctx ends. It is a no-op without Redis.
func (a *App) RelayRedis(ctx context.Context) error {
	if a.Redis == nil {
		return nil
	}
	return notify.Relay(ctx, a.Redis, notify.DefaultChannel, a.Events, a.Logger)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func closePool(pool *pgxpool.Pool) func() error {
	return func() error {
		pool.Close()
		return nil
	}
}

func closeAMQP(conn *amqp.Connection) func() error {
	return func() error {
		if conn.IsClosed() {
			return nil
		}
		return conn.Close()
	}
}
