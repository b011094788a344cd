package scheduler

import (
	"context"
	"sync"
	"time"

	"travelplan_backend/platform/logger"
)

// LocalScheduler runs SLA checks on in-process timers. It is used when no
// Redis is configured; pending checks are lost on restart.
type LocalScheduler struct {
	checker SLAChecker
	log     *logger.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
}

func NewLocalScheduler(checker SLAChecker, log *logger.Logger) *LocalScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalScheduler{
		checker: checker,
		log:     log,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		timers:  make(map[string]*time.Timer),
	}
}

// ScheduleSLACheck arms a timer for dueAt. A deadline already armed is ignored.
func (s *LocalScheduler) ScheduleSLACheck(_ context.Context, bookingID, stage string, dueAt time.Time) error {
	payload := BookingSLACheckPayload{BookingID: bookingID, Stage: stage, DueAt: dueAt.UTC()}
	id := payload.TaskID()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return nil
	}
	if _, ok := s.timers[id]; ok {
		return nil
	}

	s.wg.Add(1)
	s.timers[id] = time.AfterFunc(dueAt.Sub(s.now()), func() {
		defer s.wg.Done()
		s.run(id, payload)
	})
	return nil
}

func (s *LocalScheduler) run(id string, payload BookingSLACheckPayload) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	if _, err := s.checker.CheckSLA(s.ctx, payload.BookingID, payload.Stage, payload.DueAt); err != nil {
		s.log.Error("sla check failed", "bookingId", payload.BookingID, "stage", payload.Stage, "error", err)
	}
}

// Pending returns the number of armed checks.
func (s *LocalScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Run blocks until ctx is cancelled, then stops every pending timer and waits
// for checks already in flight.
func (s *LocalScheduler) Run(ctx context.Context) error {
	<-ctx.Done()
	s.Stop()
	return nil
}

func (s *LocalScheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	for id, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
