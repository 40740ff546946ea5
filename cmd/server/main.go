package main

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goRedis "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/timesheet/api/handler"
	"github.com/fastygo/timesheet/domain"
	"github.com/fastygo/timesheet/internal/config"
	"github.com/fastygo/timesheet/internal/infrastructure/buffer"
	"github.com/fastygo/timesheet/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/timesheet/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/timesheet/internal/infrastructure/redis"
	"github.com/fastygo/timesheet/internal/middleware"
	"github.com/fastygo/timesheet/internal/router"
	"github.com/fastygo/timesheet/internal/services"
	"github.com/fastygo/timesheet/internal/services/lifecycle"
	"github.com/fastygo/timesheet/pkg/httpcontext"
	"github.com/fastygo/timesheet/pkg/logger"
	"github.com/fastygo/timesheet/repository"
	"github.com/fastygo/timesheet/repository/memory"
	"github.com/fastygo/timesheet/repository/postgres"
	redisRepo "github.com/fastygo/timesheet/repository/redis"
	"github.com/fastygo/timesheet/usecase"
	"github.com/fastygo/timesheet/usecase/aggregation"
	contributionUC "github.com/fastygo/timesheet/usecase/contribution"
	"github.com/fastygo/timesheet/usecase/tasktree"
)

// stores groups the ports of one backend.
type stores struct {
	tasks         repository.TaskRepository
	contributions repository.ContributionRepository
	durations     repository.DurationRepository
	tx            repository.Transactor
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	var (
		pool  *pgxpool.Pool
		store stores
	)
	if cfg.UsesPostgres() {
		if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
			zapLogger.Fatal("migrations failed", zap.Error(err))
		}

		pool, err = pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
		if err != nil {
			zapLogger.Fatal("postgres connection failed", zap.Error(err))
		}
		manager.Register("postgres", func(ctx context.Context) error {
			pool.Close()
			return nil
		})

		store = stores{
			tasks:         postgres.NewTaskRepository(pool, cfg.Tree.FetchBatchSize),
			contributions: postgres.NewContributionRepository(pool, cfg.Tree.FetchBatchSize),
			durations:     postgres.NewDurationRepository(pool),
			tx:            postgres.NewTxManager(pool, zapLogger),
		}
	} else {
		mem := memory.New()
		store = stores{
			tasks:         mem.Tasks(),
			contributions: mem.Contributions(),
			durations:     mem.Durations(),
			tx:            mem,
		}
		zapLogger.Warn("using in-memory store, data is lost on restart")
	}

	var (
		redisClient *goRedis.Client
		sumsCache   repository.SumsCache
	)
	if cfg.Cache.Enabled {
		redisClient, err = redisInfra.NewClient(cfg.Redis, zapLogger)
		if err != nil {
			zapLogger.Fatal("redis connection failed", zap.Error(err))
		}
		manager.Register("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
		sumsCache = redisRepo.NewSumsCache(redisClient, cfg.Cache.TTL)
	}

	var (
		bufferStore *buffer.Store
		opBuffer    usecase.OperationBuffer
	)
	if cfg.UsesPostgres() {
		bufferStore, err = buffer.Open(cfg.Buffer.Path, "contributions")
		if err != nil {
			zapLogger.Fatal("failed to open buffer store", zap.Error(err))
		}
		manager.Register("buffer", func(ctx context.Context) error {
			return bufferStore.Close()
		})
	}

	mon := monitor.New(pool, redisClient, bufferStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	var (
		contributionUseCase *contributionUC.UseCase
		bufferProcessor     *services.BufferProcessor
	)
	if bufferStore != nil {
		replay := services.ReplayFunc(func(ctx context.Context, operation string, c *domain.Contribution) error {
			return contributionUseCase.ReplayContribution(ctx, operation, c)
		})
		bufferProcessor = services.NewBufferProcessor(
			bufferStore,
			mon,
			replay,
			zapLogger,
			services.ProcessorConfig{
				Interval:   cfg.Buffer.SyncInterval,
				BatchSize:  50,
				MaxRetries: cfg.Buffer.MaxRetry,
				Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
			},
		)
		manager.Register("buffer_processor", func(ctx context.Context) error {
			bufferProcessor.Stop(ctx)
			return nil
		})
		opBuffer = services.NewBufferBridge(bufferProcessor)
	}

	treeUseCase := tasktree.New(store.tasks, store.contributions, store.tx, zapLogger)
	sums := aggregation.NewCached(
		aggregation.New(store.tasks, store.contributions, store.tx, zapLogger),
		sumsCache,
		zapLogger,
	)
	contributionUseCase = contributionUC.New(
		store.contributions,
		store.durations,
		store.tasks,
		store.tx,
		opBuffer,
		sums,
		zapLogger,
	)
	// replay goes through the use case, so the scheduler starts once it exists
	bufferProcessor.Start()

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Task:         apiHandler.NewTaskHandler(treeUseCase, sums, ctxAdapter, zapLogger),
		Contribution: apiHandler.NewContributionHandler(contributionUseCase, treeUseCase, sums, ctxAdapter, zapLogger),
		Duration:     apiHandler.NewDurationHandler(contributionUseCase, ctxAdapter, zapLogger),
		Health:       apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	manager.Run("http_server", func() error {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("store", cfg.Store.Driver),
			zap.Bool("sums_cache", cfg.Cache.Enabled))
		return server.ListenAndServe(cfg.Address())
	})
	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
