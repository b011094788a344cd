package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TaskBookingSLACheck = "bookings.sla_check"

// BookingSLACheckPayload identifies one deadline of one stage visit. A check
// whose stage or deadline no longer matches the booking is a no-op.
type BookingSLACheckPayload struct {
	BookingID string    `json:"bookingId"`
	Stage     string    `json:"stage"`
	DueAt     time.Time `json:"dueAt"`
}

// TaskID is unique per booking, stage and deadline so re-scheduling the same
// deadline does not enqueue a second check.
func (p BookingSLACheckPayload) TaskID() string {
	return fmt.Sprintf("sla:%s:%s:%d", p.BookingID, p.Stage, p.DueAt.UnixMilli())
}

func NewBookingSLACheckTask(payload BookingSLACheckPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBookingSLACheck, data), nil
}

func ParseBookingSLACheckPayload(task *asynq.Task) (BookingSLACheckPayload, error) {
	var payload BookingSLACheckPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return BookingSLACheckPayload{}, err
	}
	if payload.BookingID == "" || payload.Stage == "" {
		return BookingSLACheckPayload{}, fmt.Errorf("%s: booking id and stage are required", TaskBookingSLACheck)
	}
	return payload, nil
}
