// Package service is the single entry point for reading and changing bookings.
// Every edit runs as one store transaction: authorization, the booking_hash
// check and the domain rules all pass before anything is written, and the
// record update and its audit activity commit together.
package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"travelplan_backend/internal/auth/roles"
	"travelplan_backend/internal/bookings/domain"
	"travelplan_backend/internal/bookings/repository"
	"travelplan_backend/internal/events"
	"travelplan_backend/internal/staff"
	"travelplan_backend/platform/apperr"
	"travelplan_backend/platform/logger"
	"travelplan_backend/platform/phone"
)

const (
	msgBookingNotFound  = "booking not found"
	msgCustomerNotFound = "customer not found"
	msgHashRequired     = "booking_hash is required"
	msgHashMismatch     = "booking was changed by someone else; reload it and redo your edit"
	msgForbidden        = "forbidden"
)

// StaffDirectory supplies the configured staff list.
type StaffDirectory interface {
	ListStaff(ctx context.Context) ([]domain.StaffMember, error)
}

// SLAScheduler arranges for a booking's SLA to be checked once it is due.
type SLAScheduler interface {
	ScheduleSLACheck(ctx context.Context, bookingID, stage string, dueAt time.Time) error
}

// Actor is the caller of an operation.
type Actor struct {
	ID       string
	Username string
	Roles    []string
}

// HasRole reports whether the actor holds role.
func (a Actor) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// Label is the name written to the audit trail.
func (a Actor) Label() string {
	if a.Username != "" {
		return a.Username
	}
	if a.ID != "" {
		return a.ID
	}
	return domain.ActorStaff
}

// Service implements booking intake, edits and queries.
type Service struct {
	store  repository.Store
	staff  StaffDirectory
	bus    events.Bus
	phones *phone.Normalizer
	sla    SLAScheduler
	log    *logger.Logger
	now    func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithPhoneNormalizer sets the region used to canonicalise phone numbers.
func WithPhoneNormalizer(n *phone.Normalizer) Option {
	return func(s *Service) { s.phones = n }
}

// WithSLAScheduler enables SLA breach checks.
func WithSLAScheduler(sched SLAScheduler) Option {
	return func(s *Service) { s.sla = sched }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates the bookings service.
func New(store repository.Store, staffDir StaffDirectory, bus events.Bus, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		staff:  staffDir,
		bus:    bus,
		phones: phone.NewNormalizer(""),
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetSLAScheduler wires the scheduler after construction, for when the
// scheduler itself depends on the service.
func (s *Service) SetSLAScheduler(sched SLAScheduler) {
	s.sla = sched
}

// clock returns the current time in UTC at millisecond precision, which is
// what survives a JSON round trip unchanged.
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Service) listStaff(ctx context.Context) ([]domain.StaffMember, error) {
	if s.staff == nil {
		return nil, nil
	}
	members, err := s.staff.ListStaff(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "staff directory unavailable", err)
	}
	return members, nil
}

// staffIDFor returns the staff record id behind the actor's login, if any.
func staffIDFor(members []domain.StaffMember, actor Actor) (string, bool) {
	member, ok := staff.FindByUsername(members, actor.Username)
	if !ok {
		return "", false
	}
	return member.ID, true
}

func owns(members []domain.StaffMember, actor Actor, b domain.Booking) bool {
	id, ok := staffIDFor(members, actor)
	return ok && b.OwnedBy(id)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus != nil {
		s.bus.Publish(ctx, event)
	}
}

func (s *Service) scheduleSLA(ctx context.Context, b domain.Booking) {
	if s.sla == nil || b.SLADueAt == nil {
		return
	}
	if err := s.sla.ScheduleSLACheck(ctx, b.ID, string(b.Stage), *b.SLADueAt); err != nil {
		s.log.Error("failed to schedule sla check", "bookingId", b.ID, "stage", b.Stage, "error", err)
	}
}

func loadBooking(ctx context.Context, tx repository.BookingReader, id string) (domain.Booking, error) {
	b, err := tx.GetBooking(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Booking{}, apperr.NotFound(msgBookingNotFound).WithCode(apperr.CodeBookingNotFound)
	}
	return b, err
}

func (s *Service) conflict(op string, current domain.Booking, actor Actor) error {
	s.log.MutationConflict(op, current.ID, actor.Label())
	return apperr.Conflict(msgHashMismatch).
		WithCode(apperr.CodeBookingHashMismatch).
		WithOp(op).
		WithDetails(ToBookingResponse(current))
}

func newActivity(bookingID string, kind domain.ActivityType, actor, detail string, at time.Time) domain.Activity {
	return domain.Activity{
		ID:        domain.NewActivityID(),
		BookingID: bookingID,
		Type:      kind,
		Actor:     actor,
		Detail:    detail,
		CreatedAt: at,
	}
}

var _ roles.HasRoles = Actor{}
