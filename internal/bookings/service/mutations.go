package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"travelplan_backend/internal/auth/roles"
	"travelplan_backend/internal/bookings/domain"
	"travelplan_backend/internal/bookings/repository"
	"travelplan_backend/internal/bookings/transport"
	"travelplan_backend/internal/events"
	"travelplan_backend/internal/staff"
	"travelplan_backend/platform/apperr"
	"travelplan_backend/platform/sanitize"
)

// mutation is the shared shape of every booking edit. check runs on the loaded
// booking after authorization and the hash check; apply returns the changed
// booking, or ok=false when there is nothing to write.
type mutation struct {
	op        string
	authorize func(members []domain.StaffMember, b domain.Booking) bool
	apply     func(b domain.Booking) (next domain.Booking, activity *domain.Activity, ok bool, err error)
}

func requireHash(token string) error {
	if strings.TrimSpace(token) == "" {
		return apperr.Validation(msgHashRequired)
	}
	return nil
}

// mutate runs m against booking id inside one write transaction.
func (s *Service) mutate(ctx context.Context, id, token string, actor Actor, members []domain.StaffMember, m mutation) (before, after domain.Booking, changed bool, err error) {
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		current, err := loadBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if !m.authorize(members, current) {
			return apperr.Forbidden(msgForbidden).WithOp(m.op)
		}
		if !current.MatchesHash(strings.TrimSpace(token)) {
			return s.conflict(m.op, current, actor)
		}

		next, activity, ok, err := m.apply(current.Clone())
		if err != nil {
			return err
		}
		before, after, changed = current, current, ok
		if !ok {
			return nil
		}
		if err := tx.PutBooking(ctx, next); err != nil {
			return err
		}
		if activity != nil {
			if err := tx.AppendActivity(ctx, *activity); err != nil {
				return err
			}
		}
		after = next
		return nil
	})
	return before, after, changed, err
}

// ChangeStage moves the booking to stage and recomputes its SLA deadline.
func (s *Service) ChangeStage(ctx context.Context, id string, req transport.ChangeStageRequest, actor Actor) (transport.MutationResponse, error) {
	const op = "bookings.ChangeStage"
	next, err := domain.ParseStage(req.Stage)
	if err != nil {
		return transport.MutationResponse{}, apperr.Validation("Invalid stage").WithOp(op)
	}
	if err := requireHash(req.BookingHash); err != nil {
		return transport.MutationResponse{}, err
	}
	members, err := s.listStaff(ctx)
	if err != nil {
		return transport.MutationResponse{}, err
	}

	before, after, _, err := s.mutate(ctx, id, req.BookingHash, actor, members, mutation{
		op: op,
		authorize: func(members []domain.StaffMember, b domain.Booking) bool {
			return roles.CanChangeStage(actor, owns(members, actor, b))
		},
		apply: func(b domain.Booking) (domain.Booking, *domain.Activity, bool, error) {
			if err := domain.CheckTransition(b.Stage, next); err != nil {
				var terr *domain.TransitionError
				errors.As(err, &terr)
				return b, nil, false, apperr.Conflict(err.Error()).
					WithCode(apperr.CodeTransitionNotAllowed).
					WithOp(op).
					WithDetails(map[string]string{"from": string(terr.From), "to": string(terr.To)})
			}
			now := s.clock()
			b.Stage = next
			b.SLADueAt = domain.SLADueAt(next, now)
			b.Touch(now)
			activity := newActivity(b.ID, domain.ActivityStageChanged, actor.Label(), fmt.Sprintf("Stage updated to %s", next), now)
			return b, &activity, true, nil
		},
	})
	if err != nil {
		return transport.MutationResponse{}, err
	}

	s.log.StageChanged(after.ID, string(before.Stage), string(after.Stage), actor.Label())
	s.publish(ctx, events.BookingStageChanged{
		BaseEvent: events.NewBaseEvent(),
		BookingID: after.ID,
		FromStage: string(before.Stage),
		ToStage:   string(after.Stage),
		SLADueAt:  after.SLADueAt,
		OwnerID:   after.OwnerID,
		Actor:     actor.Label(),
	})
	s.scheduleSLA(ctx, after)
	return transport.MutationResponse{Booking: ToBookingResponse(after)}, nil
}

// ChangeOwner assigns the booking to an active staff member, or unassigns it
// when the requested owner is empty.
func (s *Service) ChangeOwner(ctx context.Context, id string, req transport.ChangeOwnerRequest, actor Actor) (transport.MutationResponse, error) {
	const op = "bookings.ChangeOwner"
	if err := requireHash(req.BookingHash); err != nil {
		return transport.MutationResponse{}, err
	}
	ownerID := ""
	if req.OwnerID != nil {
		ownerID = strings.TrimSpace(*req.OwnerID)
	}
	members, err := s.listStaff(ctx)
	if err != nil {
		return transport.MutationResponse{}, err
	}

	before, after, changed, err := s.mutate(ctx, id, req.BookingHash, actor, members, mutation{
		op: op,
		authorize: func(_ []domain.StaffMember, _ domain.Booking) bool {
			return roles.CanChangeAssignment(actor)
		},
		apply: func(b domain.Booking) (domain.Booking, *domain.Activity, bool, error) {
			var detail string
			if ownerID == "" {
				if b.OwnerID == nil {
					return b, nil, false, nil
				}
				b.OwnerID, b.OwnerName = nil, nil
				detail = "Owner unassigned"
			} else {
				owner, ok := staff.FindByID(members, ownerID)
				if !ok || !owner.Active {
					return b, nil, false, apperr.Validation("Owner not found or inactive").
						WithCode(apperr.CodeOwnerNotFound).
						WithOp(op)
				}
				if b.OwnedBy(owner.ID) && b.OwnerName != nil && *b.OwnerName == owner.Name {
					return b, nil, false, nil
				}
				newID, newName := owner.ID, owner.Name
				b.OwnerID, b.OwnerName = &newID, &newName
				detail = fmt.Sprintf("Owner set to %s", owner.Name)
			}
			now := s.clock()
			b.Touch(now)
			activity := newActivity(b.ID, domain.ActivityOwnerChanged, actor.Label(), detail, now)
			return b, &activity, true, nil
		},
	})
	if err != nil {
		return transport.MutationResponse{}, err
	}
	if !changed {
		return transport.MutationResponse{Booking: ToBookingResponse(after), Unchanged: true}, nil
	}

	s.publish(ctx, events.BookingOwnerChanged{
		BaseEvent:   events.NewBaseEvent(),
		BookingID:   after.ID,
		FromOwnerID: before.OwnerID,
		ToOwnerID:   after.OwnerID,
		ToOwnerName: after.OwnerName,
		Actor:       actor.Label(),
	})
	return transport.MutationResponse{Booking: ToBookingResponse(after)}, nil
}

// ChangeNotes replaces the booking notes. Identical text after trimming is
// reported as unchanged and not written.
func (s *Service) ChangeNotes(ctx context.Context, id string, req transport.ChangeNotesRequest, actor Actor) (transport.MutationResponse, error) {
	const op = "bookings.ChangeNotes"
	if err := requireHash(req.BookingHash); err != nil {
		return transport.MutationResponse{}, err
	}
	notes := sanitize.Text(req.Notes)
	members, err := s.listStaff(ctx)
	if err != nil {
		return transport.MutationResponse{}, err
	}

	_, after, changed, err := s.mutate(ctx, id, req.BookingHash, actor, members, mutation{
		op: op,
		authorize: func(members []domain.StaffMember, b domain.Booking) bool {
			return roles.CanEditBooking(actor, owns(members, actor, b))
		},
		apply: func(b domain.Booking) (domain.Booking, *domain.Activity, bool, error) {
			if b.Notes == notes {
				return b, nil, false, nil
			}
			now := s.clock()
			b.Notes = notes
			b.Touch(now)
			activity := newActivity(b.ID, domain.ActivityNote, actor.Label(), "Notes updated", now)
			return b, &activity, true, nil
		},
	})
	if err != nil {
		return transport.MutationResponse{}, err
	}
	if !changed {
		return transport.MutationResponse{Booking: ToBookingResponse(after), Unchanged: true}, nil
	}

	s.publish(ctx, events.BookingNotesChanged{
		BaseEvent: events.NewBaseEvent(),
		BookingID: after.ID,
		Actor:     actor.Label(),
	})
	return transport.MutationResponse{Booking: ToBookingResponse(after)}, nil
}

// ChangePricing validates the draft, derives tax, gross and the summary, and
// stores it. The first invalid field is reported.
func (s *Service) ChangePricing(ctx context.Context, id string, req transport.ChangePricingRequest, actor Actor) (transport.MutationResponse, error) {
	const op = "bookings.ChangePricing"
	draft, err := domain.ParsePricing(draftToPricing(req.Pricing))
	if err != nil {
		return transport.MutationResponse{}, fieldError(op, err)
	}
	if err := requireHash(req.BookingHash); err != nil {
		return transport.MutationResponse{}, err
	}
	members, err := s.listStaff(ctx)
	if err != nil {
		return transport.MutationResponse{}, err
	}

	_, after, changed, err := s.mutate(ctx, id, req.BookingHash, actor, members, mutation{
		op: op,
		authorize: func(members []domain.StaffMember, b domain.Booking) bool {
			return roles.CanEditBooking(actor, owns(members, actor, b))
		},
		apply: func(b domain.Booking) (domain.Booking, *domain.Activity, bool, error) {
			pricing := domain.NormalizePricing(draft, b.Pricing.Currency, domain.NewPricingItemID)
			if samePricing(b.Pricing, pricing) {
				return b, nil, false, nil
			}
			now := s.clock()
			b.Pricing = pricing
			b.Touch(now)
			detail := fmt.Sprintf("Pricing updated: %d adjustment(s), %d payment(s), %s %d outstanding",
				len(pricing.Adjustments), len(pricing.Payments), pricing.Currency, pricing.Summary.OutstandingGrossAmountCents)
			activity := newActivity(b.ID, domain.ActivityPricingUpdated, actor.Label(), detail, now)
			return b, &activity, true, nil
		},
	})
	if err != nil {
		return transport.MutationResponse{}, err
	}
	if !changed {
		return transport.MutationResponse{Booking: ToBookingResponse(after), Unchanged: true}, nil
	}

	summary := after.Pricing.Summary
	s.publish(ctx, events.BookingPricingChanged{
		BaseEvent:                   events.NewBaseEvent(),
		BookingID:                   after.ID,
		Currency:                    after.Pricing.Currency,
		AdjustedNetAmountCents:      summary.AdjustedNetAmountCents,
		OutstandingGrossAmountCents: summary.OutstandingGrossAmountCents,
		IsScheduleBalanced:          summary.IsScheduleBalanced,
		Actor:                       actor.Label(),
	})
	return transport.MutationResponse{Booking: ToBookingResponse(after)}, nil
}

// samePricing compares two normalized pricings. Drafts that omit ids get fresh
// ones, so ids are ignored when the stored list has the same length.
func samePricing(a, b domain.Pricing) bool {
	a, b = a.Clone(), b.Clone()
	if len(a.Adjustments) == len(b.Adjustments) {
		for i := range b.Adjustments {
			b.Adjustments[i].ID = a.Adjustments[i].ID
		}
	}
	if len(a.Payments) == len(b.Payments) {
		for i := range b.Payments {
			b.Payments[i].ID = a.Payments[i].ID
		}
	}
	return reflect.DeepEqual(a, b)
}
