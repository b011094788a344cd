package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"travelplan_backend/internal/adapters/storage"
	"travelplan_backend/internal/auth"
	"travelplan_backend/internal/auth/session"
	"travelplan_backend/internal/bookings"
	"travelplan_backend/internal/bookings/repository"
	"travelplan_backend/internal/bookings/service"
	"travelplan_backend/internal/email"
	"travelplan_backend/internal/events"
	apphttp "travelplan_backend/internal/http"
	"travelplan_backend/internal/http/router"
	"travelplan_backend/internal/notification"
	"travelplan_backend/internal/scheduler"
	"travelplan_backend/internal/staff"
	"travelplan_backend/platform/config"
	"travelplan_backend/platform/db"
	"travelplan_backend/platform/logger"
	"travelplan_backend/platform/phone"
	"travelplan_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// bookingStore is a record store that can report readiness.
type bookingStore interface {
	repository.Store
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "store", cfg.GetStoreDriver())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open booking store", "error", err)
		panic("failed to open booking store: " + err.Error())
	}
	defer closeStore()

	staffDir, err := staff.NewFileDirectory(cfg.GetStaffFile())
	if err != nil {
		log.Error("failed to load staff directory", "error", err, "path", cfg.GetStaffFile())
		panic("failed to load staff directory: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)

	sessions, closeSessions, err := openSessions(gctx, g, cfg, log)
	if err != nil {
		log.Error("failed to initialize session store", "error", err)
		panic("failed to initialize session store: " + err.Error())
	}
	defer closeSessions()

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	if cfg.IsKafkaEnabled() {
		forwarder, err := events.NewKafkaForwarder(cfg.GetKafkaBrokers(), cfg.GetKafkaTopic(), log)
		if err != nil {
			log.Error("failed to initialize kafka forwarder", "error", err)
			panic("failed to initialize kafka forwarder: " + err.Error())
		}
		forwarder.Attach(eventBus)
		defer func() { _ = forwarder.Close() }()
		log.Info("booking events forwarded to kafka", "topic", cfg.GetKafkaTopic())
	}

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module subscribes to domain events (not HTTP-facing)
	notificationModule := notification.New(sender, staffDir, cfg.GetAppBaseURL(), log)
	notificationModule.RegisterHandlers(eventBus)

	bookingsModule := bookings.NewModule(store, staffDir, eventBus, val, log,
		service.WithPhoneNormalizer(phone.NewNormalizer(cfg.GetDefaultPhoneRegion())),
	)

	closeScheduler, err := initSLAScheduler(gctx, g, cfg, bookingsModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize sla scheduler", "error", err)
		panic("failed to initialize sla scheduler: " + err.Error())
	}
	defer closeScheduler()

	authModule := auth.NewModule(sessions, cfg, log)
	staffModule := staff.NewModule(staffDir)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   store,
		Sessions: sessions,
		Modules: []apphttp.Module{
			authModule,
			bookingsModule,
			staffModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
	}
	eventBus.Wait()
	log.Info("server stopped")
}

// openStore opens the booking store named by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (bookingStore, func(), error) {
	if cfg.GetStoreDriver() == config.StoreDriverPostgres {
		pool, err := connectDatabase(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPostgresStore(pool), pool.Close, nil
	}

	var persister repository.Persister = repository.NewFilePersister(cfg.GetStoreFilePath())
	if cfg.GetStoreSnapshotTarget() == config.SnapshotTargetMinIO {
		objects, err := storage.NewMinIOService(cfg)
		if err != nil {
			return nil, nil, err
		}
		var snapshots *storage.SnapshotPersister
		if err := withRetry(ctx, log, "ensure snapshot bucket", 5, 2*time.Second, func() error {
			p, err := storage.NewSnapshotPersister(ctx, objects, cfg.GetMinIOBucketSnapshots(), cfg.GetMinIOSnapshotObject())
			if err != nil {
				return err
			}
			snapshots = p
			return nil
		}); err != nil {
			return nil, nil, err
		}
		persister = snapshots
		log.Info("store snapshots kept in object storage", "bucket", cfg.GetMinIOBucketSnapshots(), "object", cfg.GetMinIOSnapshotObject())
	}

	store, err := repository.NewMemoryStore(ctx, persister, log)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// connectDatabase opens the pool and applies embedded migrations.
func connectDatabase(ctx context.Context, cfg *config.Config, log *logger.Logger) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, db.Migrations(), log)
	}); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run database migrations: %w", err)
	}
	log.Info("database migrations complete")
	return pool, nil
}

// openSessions returns the Redis session store when REDIS_URL is set and
// otherwise an in-memory store swept by a background goroutine.
func openSessions(ctx context.Context, g *errgroup.Group, cfg *config.Config, log *logger.Logger) (session.Store, func(), error) {
	if cfg.IsRedisEnabled() {
		client, err := session.NewRedisClient(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
		if err != nil {
			return nil, nil, err
		}
		if err := withRetry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
			return client.Ping(ctx).Err()
		}); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		log.Info("sessions stored in redis")
		return session.NewRedisStore(client), func() { _ = client.Close() }, nil
	}

	sessions := session.NewMemoryStore(log)
	g.Go(func() error {
		return sessions.Run(ctx, cfg.GetSessionSweepInterval())
	})
	log.Warn("REDIS_URL not configured; sessions kept in memory")
	return sessions, func() {}, nil
}

// initSLAScheduler wires the SLA deadline scheduler into the booking service.
// With Redis the checks go through asynq; the in-process worker only runs here
// for the file store, since postgres deployments run cmd/scheduler instead.
func initSLAScheduler(ctx context.Context, g *errgroup.Group, cfg *config.Config, svc *service.Service, log *logger.Logger) (func(), error) {
	if !cfg.IsRedisEnabled() {
		local := scheduler.NewLocalScheduler(svc, log)
		svc.SetSLAScheduler(local)
		g.Go(func() error {
			return local.Run(ctx)
		})
		log.Warn("REDIS_URL not configured; SLA checks run in-process and are lost on restart")
		return func() {}, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	svc.SetSLAScheduler(client)

	if cfg.GetStoreDriver() == config.StoreDriverFile {
		worker, err := scheduler.NewWorker(cfg, svc, log)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		g.Go(func() error {
			return worker.Run(ctx)
		})
		log.Info("sla worker running in-process", "queue", cfg.GetAsynqQueueName())
	}

	return func() { _ = client.Close() }, nil
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}
