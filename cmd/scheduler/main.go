package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"travelplan_backend/internal/bookings/repository"
	"travelplan_backend/internal/bookings/service"
	"travelplan_backend/internal/email"
	"travelplan_backend/internal/events"
	"travelplan_backend/internal/notification"
	"travelplan_backend/internal/scheduler"
	"travelplan_backend/internal/staff"
	"travelplan_backend/platform/config"
	"travelplan_backend/platform/db"
	"travelplan_backend/platform/logger"
	"travelplan_backend/platform/phone"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	if !cfg.IsRedisEnabled() {
		panic("REDIS_URL is required to run the scheduler")
	}
	if cfg.GetStoreDriver() != config.StoreDriverPostgres {
		panic("the standalone scheduler needs STORE_DRIVER=postgres; the file store runs its worker inside the api process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	staffDir, err := staff.NewFileDirectory(cfg.GetStaffFile())
	if err != nil {
		log.Error("failed to load staff directory", "error", err, "path", cfg.GetStaffFile())
		panic("failed to load staff directory: " + err.Error())
	}

	eventBus := events.NewInMemoryBus(log)

	if cfg.IsKafkaEnabled() {
		forwarder, err := events.NewKafkaForwarder(cfg.GetKafkaBrokers(), cfg.GetKafkaTopic(), log)
		if err != nil {
			log.Error("failed to initialize kafka forwarder", "error", err)
			panic("failed to initialize kafka forwarder: " + err.Error())
		}
		forwarder.Attach(eventBus)
		defer func() { _ = forwarder.Close() }()
	}

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	notificationModule := notification.New(sender, staffDir, cfg.GetAppBaseURL(), log)
	notificationModule.RegisterHandlers(eventBus)

	// SLA checks re-enter the booking service, which may reschedule the next
	// deadline through the same asynq queue.
	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	bookingSvc := service.New(repository.NewPostgresStore(pool), staffDir, eventBus, log,
		service.WithPhoneNormalizer(phone.NewNormalizer(cfg.GetDefaultPhoneRegion())),
		service.WithSLAScheduler(client),
	)

	worker, err := scheduler.NewWorker(cfg, bookingSvc, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	log.Info("scheduler worker running", "queue", cfg.GetAsynqQueueName())
	if err := worker.Run(ctx); err != nil {
		log.Error("scheduler worker stopped with error", "error", err)
	}
	eventBus.Wait()
	log.Info("scheduler stopped")
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
