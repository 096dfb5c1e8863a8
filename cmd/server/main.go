package main

import (
	"context"
	"fmt"
	"log"

	"github.com/valyala/fasthttp"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/aurano/api/handler"
	"github.com/fastygo/aurano/internal/config"
	"github.com/fastygo/aurano/internal/infrastructure/boltdb"
	"github.com/fastygo/aurano/internal/infrastructure/buffer"
	"github.com/fastygo/aurano/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/aurano/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/aurano/internal/infrastructure/redis"
	"github.com/fastygo/aurano/internal/middleware"
	"github.com/fastygo/aurano/internal/router"
	"github.com/fastygo/aurano/internal/services"
	"github.com/fastygo/aurano/internal/services/lifecycle"
	"github.com/fastygo/aurano/pkg/httpcontext"
	"github.com/fastygo/aurano/pkg/logger"
	"github.com/fastygo/aurano/repository"
	boltRepo "github.com/fastygo/aurano/repository/bolt"
	pgRepo "github.com/fastygo/aurano/repository/postgres"
	redisRepo "github.com/fastygo/aurano/repository/redis"
	"github.com/fastygo/aurano/usecase"
	taskUC "github.com/fastygo/aurano/usecase/task"
)

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

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx, stop := manager.Listen(context.Background())
	defer stop()

	repo, ping, err := openBackend(appCtx, cfg, manager, zapLogger)
	if err != nil {
		zapLogger.Fatal("user data backend unavailable", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}

	var (
		bufferStore *buffer.Store
		snapshots   usecase.SnapshotBuffer
	)
	if cfg.Buffer.Enabled {
		bufferStore, err = buffer.Open(cfg.Buffer.Path, "buffer")
		if err != nil {
			zapLogger.Fatal("failed to open buffer store", zap.Error(err))
		}
		manager.RegisterCloser("buffer", bufferStore.Close)
		snapshots = services.NewBufferBridge(bufferStore)
	}

	mon := monitor.New(cfg.Storage.Driver, ping, bufferStore, cfg.Buffer.CheckInterval, zapLogger)
	mon.Check(appCtx)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	registry, err := taskUC.NewRegistry(taskUC.Deps{
		Repo:   repo,
		Buffer: snapshots,
		Logger: zapLogger.Named("store"),
	}, cfg.Store.CacheSize)
	if err != nil {
		zapLogger.Fatal("failed to create store registry", zap.Error(err))
	}

	if bufferStore != nil {
		bufferProcessor := services.NewBufferProcessor(
			bufferStore,
			mon,
			registry,
			zapLogger,
			services.ProcessorConfig{
				Interval:  cfg.Buffer.SyncInterval,
				BatchSize: cfg.Buffer.BatchSize,
			},
		)
		bufferProcessor.Start()
		manager.Register("buffer_processor", func(ctx context.Context) error {
			bufferProcessor.Stop(ctx)
			return nil
		})
	}

	captureSessions := services.NewCaptureSessions(registry, services.CaptureConfig{
		SpeechEnabled: cfg.Capture.SpeechEnabled,
		TTL:           cfg.Capture.SessionTTL,
		MaxSessions:   cfg.Capture.MaxSessions,
	}, zapLogger.Named("capture"))
	manager.Register("capture_sessions", func(ctx context.Context) error {
		captureSessions.Close()
		return nil
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Task:    apiHandler.NewTaskHandler(registry, ctxAdapter, zapLogger),
		Habit:   apiHandler.NewHabitHandler(registry, ctxAdapter, zapLogger),
		Data:    apiHandler.NewDataHandler(registry, ctxAdapter, zapLogger),
		Capture: apiHandler.NewCaptureHandler(captureSessions, ctxAdapter, zapLogger),
		Health:  apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	r := router.New(handlers,
		middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer, zapLogger),
		limiter.Middleware,
	)

	server := &fasthttp.Server{
		Handler:            r.Handler,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxConnsPerIP:      cfg.HTTP.MaxConn,
		Name:               cfg.AppName,
		MaxRequestBodySize: 1 << 20,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("storage", cfg.Storage.Driver),
			zap.Bool("buffer", cfg.Buffer.Enabled),
			zap.Bool("speech", cfg.Capture.SpeechEnabled))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

// openBackend connects the configured primary store and returns its repository with a health probe.
func openBackend(
	ctx context.Context,
	cfg *config.Config,
	manager *lifecycle.Manager,
	zapLogger *zap.Logger,
) (repository.UserDataRepository, monitor.PingFunc, error) {
	switch cfg.Storage.Driver {
	case config.DriverBolt:
		db, err := boltdb.Open(cfg.Storage.BoltPath, boltRepo.Bucket)
		if err != nil {
			return nil, nil, err
		}
		manager.RegisterCloser("bolt", db.Close)
		ping := func(context.Context) error {
			return db.View(func(*bolt.Tx) error { return nil })
		}
		return boltRepo.NewUserDataRepository(db), ping, nil

	case config.DriverRedis:
		client, err := redisInfra.NewClient(ctx, cfg.Redis, zapLogger)
		if err != nil {
			return nil, nil, err
		}
		manager.RegisterCloser("redis", client.Close)
		ping := func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
		return redisRepo.NewUserDataRepository(client), ping, nil

	case config.DriverPostgres:
		if err := pgInfra.RunMigrations(cfg.Database, cfg.Migrations, zapLogger); err != nil {
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, zapLogger)
		if err != nil {
			return nil, nil, err
		}
		manager.Register("postgres", func(context.Context) error {
			pgInfra.Close(pool, zapLogger)
			return nil
		})
		return pgRepo.NewUserDataRepository(pool), pool.Ping, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
