package scheduler

import (
	"context"
	"fmt"
	"time"

	"travelplan_backend/platform/config"
	"travelplan_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// SLAChecker records a breach when the booking still sits in stage past dueAt.
type SLAChecker interface {
	CheckSLA(ctx context.Context, bookingID, stage string, dueAt time.Time) (bool, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	checker SLAChecker
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, checker SLAChecker, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		checker: checker,
		log:     log,
	}

	mux.HandleFunc(TaskBookingSLACheck, w.handleSLACheck)

	return w, nil
}

func (w *Worker) handleSLACheck(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseBookingSLACheckPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	breached, err := w.checker.CheckSLA(ctx, payload.BookingID, payload.Stage, payload.DueAt)
	if err != nil {
		return err
	}
	w.log.Debug("sla check processed", "bookingId", payload.BookingID, "stage", payload.Stage, "breached", breached)
	return nil
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	if err := w.server.Start(w.mux); err != nil {
		w.log.Error("scheduler worker failed to start", "error", err)
		return err
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}
