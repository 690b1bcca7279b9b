package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/felixgeelhaar/codequest/internal/api/middleware"
	"github.com/felixgeelhaar/codequest/internal/auth"
	"github.com/felixgeelhaar/codequest/internal/config"
	"github.com/felixgeelhaar/codequest/internal/domain"
	"github.com/felixgeelhaar/codequest/internal/grader"
	"github.com/felixgeelhaar/codequest/internal/leaderboard"
	"github.com/felixgeelhaar/codequest/internal/progress"
	"github.com/felixgeelhaar/codequest/internal/queue"
	"github.com/felixgeelhaar/codequest/internal/repository"
	"github.com/felixgeelhaar/codequest/internal/storage/sqlite"
	"github.com/felixgeelhaar/codequest/internal/task"
)

// App holds all daemon dependencies
type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	Tasks       task.Store
	Grader      *grader.Service
	Progress    *progress.Service
	Submissions *sqlite.SubmissionStore
	Leaderboard *leaderboard.Board
	Server      *Server

	db        *sqlite.DB
	pgDB      *sql.DB
	pgPool    *pgxpool.Pool
	queueConn *queue.Connection
	results   *queue.ResultConsumer
}

// NewGrader builds the grading service from configuration
func NewGrader(cfg config.GraderConfig, logger *zap.Logger) *grader.Service {
	gc := grader.DefaultConfig()
	if cfg.TimeoutMS > 0 {
		gc.Timeout = cfg.Timeout()
	}
	if cfg.MaxCallStackSize > 0 {
		gc.MaxCallStackSize = cfg.MaxCallStackSize
	}
	if len(cfg.Candidates) > 0 {
		gc.Candidates = cfg.Candidates
	}
	gc.MaxConcurrent = cfg.MaxConcurrent
	gc.MaxQueue = cfg.MaxQueue
	return grader.NewService(gc, grader.WithLogger(logger.Named("grader")))
}

// Loaders returns the task pack sources named by the configuration
func Loaders(cfg config.TasksConfig) []*task.Loader {
	var loaders []*task.Loader
	if !cfg.SkipBuiltin {
		loaders = append(loaders, task.BuiltinLoader())
	}
	if cfg.PacksPath != "" {
		loaders = append(loaders, task.NewLoader(cfg.PacksPath))
	}
	return loaders
}

// LoadCatalog builds an in-memory catalog from the configured packs
func LoadCatalog(cfg config.TasksConfig, logger *zap.Logger) (*task.Catalog, error) {
	catalog := task.NewCatalog()
	for _, l := range Loaders(cfg) {
		n, err := catalog.Seed(l)
		if err != nil {
			return nil, fmt.Errorf("load tasks: %w", err)
		}
		logger.Debug("task pack loaded", zap.Int("tasks", n))
	}
	return catalog, nil
}

// GradeJobHandler grades queued jobs against the task store
func GradeJobHandler(tasks task.Store, g Grader) queue.JobHandler {
	return func(ctx context.Context, job *queue.GradeJob) (*domain.ExecutionResult, error) {
		t, err := tasks.Get(ctx, job.TaskID)
		if err != nil {
			return nil, err
		}
		return g.Grade(ctx, job.Source, t, job.Language), nil
	}
}

// NewApp wires every service from configuration
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	app.db, err = sqlite.Open(cfg.Storage.SQLitePath, logger.Named("sqlite"))
	if err != nil {
		return nil, err
	}
	if err := app.db.Migrate(ctx); err != nil {
		return nil, err
	}
	app.Submissions = sqlite.NewSubmissionStore(app.db)

	var remote progress.Store
	if url := cfg.Storage.PostgresURL; url != "" {
		if app.pgDB, err = repository.OpenSQL(ctx, url); err != nil {
			return nil, err
		}
		if err := repository.EnsureSchema(ctx, app.pgDB); err != nil {
			return nil, err
		}
		if app.pgPool, err = repository.OpenPool(ctx, url); err != nil {
			return nil, err
		}

		tasks := repository.NewTaskRepository(app.pgDB)
		for _, l := range Loaders(cfg.Tasks) {
			n, err := task.SeedStore(ctx, tasks, l)
			if err != nil {
				return nil, err
			}
			logger.Info("hosted task catalog seeded", zap.Int("added", n))
		}
		app.Tasks = tasks
		remote = repository.NewProgressRepository(app.pgPool)
	} else {
		if app.Tasks, err = LoadCatalog(cfg.Tasks, logger); err != nil {
			return nil, err
		}
	}

	store := progress.NewSyncedStore(sqlite.NewProgressStore(app.db), remote,
		progress.DefaultSyncConfig(), logger.Named("sync"))

	opts := []progress.Option{progress.WithLogger(logger.Named("progress"))}
	if cfg.Redis.Addr != "" {
		app.Leaderboard, err = leaderboard.New(leaderboard.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.LeaderboardKey,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, progress.WithLeaderboard(app.Leaderboard))
	}
	app.Progress = progress.NewService(store, opts...)
	app.Grader = NewGrader(cfg.Grader, logger)

	deps := Deps{
		Tasks:               app.Tasks,
		Grader:              app.Grader,
		Progress:            app.Progress,
		Submissions:         app.Submissions,
		Issuer:              auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL()),
		AdminPassphraseHash: cfg.Auth.AdminPassphraseHash,
		JobTimeout:          time.Duration(cfg.Queue.JobTimeoutSeconds) * time.Second,
		Logger:              logger.Named("api"),
	}
	if app.Leaderboard != nil {
		deps.Leaderboard = app.Leaderboard
	}
	if cfg.Server.RateLimitPerMinute > 0 {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerMinute = cfg.Server.RateLimitPerMinute
		deps.RateLimit = &rl
	}

	if cfg.Queue.Enabled {
		app.queueConn, err = queue.NewConnection(cfg.Queue.URL, logger.Named("queue"))
		if err != nil {
			return nil, err
		}
		deps.Jobs = queue.NewProducer(app.queueConn)
	}

	app.Server = NewServer(deps)
	if app.queueConn != nil {
		app.results = queue.NewResultConsumer(app.queueConn, app.Server.ApplyResult)
	}
	return app, nil
}

// Start runs the background consumers
func (a *App) Start(ctx context.Context) error {
	if a.results == nil {
		return nil
	}
	return a.results.Start(ctx)
}

// Close releases every resource the app opened
func (a *App) Close() error {
	var errs []error
	if a.results != nil {
		a.results.Stop()
	}
	if a.queueConn != nil {
		errs = append(errs, a.queueConn.Close())
	}
	if a.Leaderboard != nil {
		errs = append(errs, a.Leaderboard.Close())
	}
	if a.pgPool != nil {
		a.pgPool.Close()
	}
	if a.pgDB != nil {
		errs = append(errs, a.pgDB.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
