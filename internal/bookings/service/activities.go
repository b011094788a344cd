package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"travelplan_backend/internal/bookings/domain"
	"travelplan_backend/internal/bookings/repository"
	"travelplan_backend/internal/bookings/transport"
	"travelplan_backend/internal/events"
	"travelplan_backend/platform/apperr"
	"travelplan_backend/platform/sanitize"
)

// ListActivities returns the booking's audit trail in chronological order.
func (s *Service) ListActivities(ctx context.Context, bookingID string, actor Actor) (transport.ActivityListResponse, error) {
	vis, _, err := s.visibilityFor(ctx, actor)
	if err != nil {
		return transport.ActivityListResponse{}, err
	}

	var resp transport.ActivityListResponse
	err = s.store.View(ctx, func(tx repository.Tx) error {
		b, err := loadBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !vis.canSee(b) {
			return apperr.Forbidden(msgForbidden)
		}
		list, err := tx.ListActivities(ctx, bookingID)
		if err != nil {
			return err
		}
		items := make([]transport.ActivityResponse, 0, len(list))
		for _, a := range list {
			items = append(items, toActivityResponse(a))
		}
		resp = transport.ActivityListResponse{Items: items, Total: len(items)}
		return nil
	})
	return resp, err
}

// CreateActivity appends a manual entry to the audit trail. The booking itself
// is not modified, so its updated_at and booking_hash stay the same.
func (s *Service) CreateActivity(ctx context.Context, bookingID string, req transport.CreateActivityRequest, actor Actor) (transport.CreateActivityResponse, error) {
	kind := strings.ToUpper(strings.TrimSpace(req.Type))
	if kind == "" {
		return transport.CreateActivityResponse{}, apperr.Validation("type is required")
	}
	detail := sanitize.Text(req.Detail)

	vis, _, err := s.visibilityFor(ctx, actor)
	if err != nil {
		return transport.CreateActivityResponse{}, err
	}

	var created domain.Activity
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		b, err := loadBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !vis.canSee(b) {
			return apperr.Forbidden(msgForbidden)
		}
		created = newActivity(b.ID, domain.ActivityType(kind), actor.Label(), detail, s.clock())
		return tx.AppendActivity(ctx, created)
	})
	if err != nil {
		return transport.CreateActivityResponse{}, err
	}
	return transport.CreateActivityResponse{Activity: toActivityResponse(created)}, nil
}

// CheckSLA records a breach when the booking is still in stage with the same
// due time. It reports whether a breach was recorded; a booking that moved on,
// or a breach already recorded for this deadline, is a no-op.
func (s *Service) CheckSLA(ctx context.Context, bookingID, stage string, dueAt time.Time) (bool, error) {
	now := s.clock()
	if now.Before(dueAt) {
		return false, nil
	}
	detail := fmt.Sprintf("SLA for %s was due at %s", stage, dueAt.UTC().Format(time.RFC3339))

	var (
		breached bool
		booking  domain.Booking
	)
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		b, err := tx.GetBooking(ctx, bookingID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if string(b.Stage) != stage || b.SLADueAt == nil || !b.SLADueAt.Equal(dueAt) {
			return nil
		}
		trail, err := tx.ListActivities(ctx, bookingID)
		if err != nil {
			return err
		}
		for _, a := range trail {
			if a.Type == domain.ActivitySLABreached && a.Detail == detail {
				return nil
			}
		}
		if err := tx.AppendActivity(ctx, newActivity(b.ID, domain.ActivitySLABreached, domain.ActorSystem, detail, now)); err != nil {
			return err
		}
		breached, booking = true, b
		return nil
	})
	if err != nil {
		return false, err
	}
	if !breached {
		return false, nil
	}

	s.log.Warn("booking sla breached", "bookingId", booking.ID, "stage", stage, "dueAt", dueAt)
	s.publish(ctx, events.BookingSLABreached{
		BaseEvent: events.NewBaseEvent(),
		BookingID: booking.ID,
		Stage:     stage,
		SLADueAt:  dueAt,
		OwnerID:   booking.OwnerID,
		OwnerName: booking.OwnerName,
	})
	return true, nil
}
