package dashboard

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/modq/internal/auth"
	"github.com/matheus3301/modq/internal/backend"
	"github.com/matheus3301/modq/internal/bus"
	"github.com/matheus3301/modq/internal/config"
	"github.com/matheus3301/modq/internal/jobs"
	"github.com/matheus3301/modq/internal/live"
	"github.com/matheus3301/modq/internal/lock"
	"github.com/matheus3301/modq/internal/logging"
	"github.com/matheus3301/modq/internal/profile"
	"github.com/matheus3301/modq/internal/queue"
	"github.com/matheus3301/modq/internal/review"
	"github.com/matheus3301/modq/internal/store"
)

// Params holds the resolved profile passed to the fx module.
type Params struct {
	Profile string
	// Interactive takes the profile lock, performs the first fetch on start
	// and opens the live channel when enabled. The CLI leaves it off.
	Interactive bool
	// Console mirrors warnings to stderr.
	Console bool
}

// App is everything a front end needs from a running dashboard.
type App struct {
	Profile   string
	Config    *config.Dashboard
	Logger    *zap.Logger
	Bus       *bus.Bus
	DB        *store.DB
	Session   *auth.Session
	Client    *backend.Client
	Queue     *queue.Store
	Dashboard *Dashboard
	Ingestor  *jobs.Ingestor
	Scorer    *jobs.Scorer
	Live      *live.Subscriber
	Review    *review.Manager
}

// Module returns the fx module for a dashboard, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("dashboard",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideLock,
			provideStore,
			provideSession,
			provideClient,
			provideQueueStore,
			provideExecutor,
			provideDashboard,
			provideIngestor,
			provideScorer,
			provideSubscriber,
			provideReviewManager,
			provideApp,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	return logging.New(profile.LogPath(p.Profile), p.Profile, p.Console)
}

func provideConfig(p Params, logger *zap.Logger) (*config.Dashboard, error) {
	path := profile.DashboardConfigPath(p.Profile)
	cfg, err := config.LoadDashboard(path)
	if err != nil {
		return nil, err
	}
	logger.Info("config loaded", zap.String("path", path), zap.String("backend", cfg.Backend.BaseURL))
	return cfg, nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if !p.Interactive {
		return nil, nil
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.Profile)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideSession(db *store.DB, b *bus.Bus, logger *zap.Logger) (*auth.Session, error) {
	return auth.NewSession(db, b, logger.Named("auth"))
}

func provideClient(cfg *config.Dashboard, s *auth.Session, logger *zap.Logger) (*backend.Client, error) {
	return backend.New(backend.Options{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		Tokens:  s,
		Logger:  logger.Named("backend"),
	})
}

func provideQueueStore(b *bus.Bus) *queue.Store {
	return queue.NewStore(b)
}

func provideExecutor(c *backend.Client, st *queue.Store, s *auth.Session, b *bus.Bus, logger *zap.Logger) *queue.Executor {
	return queue.NewExecutor(c, st, s, b, logger.Named("queue"))
}

func provideDashboard(exec *queue.Executor, st *queue.Store, db *store.DB, cfg *config.Dashboard, logger *zap.Logger) *Dashboard {
	return New(exec, st, db, cfg.Queue.PerPage, logger)
}

func provideIngestor(c *backend.Client, d *Dashboard, s *auth.Session, cfg *config.Dashboard, b *bus.Bus, logger *zap.Logger) *jobs.Ingestor {
	return jobs.NewIngestor(c, d, s, jobs.WallClock{}, jobs.IngestOptions{
		Limit:        cfg.Ingest.Limit,
		DaysBack:     cfg.Ingest.DaysBack,
		PollInterval: cfg.Ingest.PollInterval,
		MaxAttempts:  cfg.Ingest.MaxAttempts,
	}, b, logger.Named("ingest"))
}

func provideScorer(c *backend.Client, st *queue.Store, d *Dashboard, s *auth.Session, b *bus.Bus, logger *zap.Logger) *jobs.Scorer {
	return jobs.NewScorer(c, st, d, s, b, logger.Named("score"))
}

func provideSubscriber(c *backend.Client, st *queue.Store, s *auth.Session, b *bus.Bus, logger *zap.Logger) *live.Subscriber {
	return live.NewSubscriber(c, st, s, b, logger.Named("live"))
}

func provideReviewManager(c *backend.Client, st *queue.Store, s *auth.Session, db *store.DB, cfg *config.Dashboard, b *bus.Bus, logger *zap.Logger) *review.Manager {
	return review.NewManager(c, st, s, cfg.Review.Concurrency, b, logger.Named("review")).WithJournal(db)
}

type appDeps struct {
	fx.In

	Params    Params
	Config    *config.Dashboard
	Logger    *zap.Logger
	Bus       *bus.Bus
	DB        *store.DB
	Session   *auth.Session
	Client    *backend.Client
	Queue     *queue.Store
	Dashboard *Dashboard
	Ingestor  *jobs.Ingestor
	Scorer    *jobs.Scorer
	Live      *live.Subscriber
	Review    *review.Manager
}

func provideApp(d appDeps) *App {
	return &App{
		Profile:   d.Params.Profile,
		Config:    d.Config,
		Logger:    d.Logger,
		Bus:       d.Bus,
		DB:        d.DB,
		Session:   d.Session,
		Client:    d.Client,
		Queue:     d.Queue,
		Dashboard: d.Dashboard,
		Ingestor:  d.Ingestor,
		Scorer:    d.Scorer,
		Live:      d.Live,
		Review:    d.Review,
	}
}

func registerLifecycle(lc fx.Lifecycle, p Params, app *App, exec *queue.Executor, lk *lock.Lock) {
	var cancel context.CancelFunc
	logger := app.Logger

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())

			if err := app.Dashboard.Restore(); err != nil {
				logger.Warn("view restore incomplete", zap.Error(err))
			}
			if !p.Interactive {
				return nil
			}

			watchAuth(ctx, app.Bus, app.Live.Close, logger)

			if !app.Session.Authenticated() {
				logger.Info("no credential, login required")
				return nil
			}
			go func() {
				if err := app.Dashboard.Refetch(ctx); err != nil {
					logger.Warn("initial fetch failed", zap.Error(err))
				}
			}()
			if app.Config.Live.Enabled {
				go func() {
					if err := app.Live.Open(ctx); err != nil {
						logger.Warn("live channel unavailable", zap.Error(err))
					}
				}()
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			if cancel != nil {
				cancel()
			}
			app.Ingestor.Stop()
			app.Live.Close()
			exec.Invalidate()
			if err := app.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("dashboard stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
