// Package notification sends staff and customer emails in response to booking events.
// Domain modules publish events and never talk to the mail provider directly.
package notification

import (
	"context"
	"strings"
	"time"

	"travelplan_backend/internal/bookings/domain"
	"travelplan_backend/internal/email"
	"travelplan_backend/internal/events"
	"travelplan_backend/internal/staff"
	"travelplan_backend/platform/logger"
)

// StaffLister resolves owner ids to staff members and their email addresses.
type StaffLister interface {
	ListStaff(ctx context.Context) ([]domain.StaffMember, error)
}

// Module handles all notification-related event subscriptions.
type Module struct {
	sender  email.Sender
	staff   StaffLister
	baseURL string
	log     *logger.Logger
}

// New creates the module. baseURL is the staff app address used for booking links.
func New(sender email.Sender, staffDir StaffLister, baseURL string, log *logger.Logger) *Module {
	return &Module{
		sender:  sender,
		staff:   staffDir,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		log:     log,
	}
}

// RegisterHandlers subscribes to the booking events that notify an owner.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.NameBookingCreated, m)
	bus.Subscribe(events.NameBookingOwnerChanged, m)
	bus.Subscribe(events.NameBookingSLABreached, m)
	bus.Subscribe(events.NameBookingInvoiceSent, m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.BookingCreated:
		return m.notifyAssigned(ctx, e.BookingID, e.OwnerID, e.Destination, e.Stage, e.SLADueAt)
	case events.BookingOwnerChanged:
		return m.notifyAssigned(ctx, e.BookingID, e.ToOwnerID, "", "", nil)
	case events.BookingSLABreached:
		return m.handleSLABreached(ctx, e)
	case events.BookingInvoiceSent:
		return m.handleInvoiceSent(ctx, e)
	default:
		return nil
	}
}

func (m *Module) notifyAssigned(ctx context.Context, bookingID string, ownerID *string, destination, stage string, dueAt *time.Time) error {
	member, ok := m.recipient(ctx, bookingID, ownerID)
	if !ok {
		return nil
	}
	notice := email.BookingNotice{
		StaffName:   member.Name,
		BookingID:   bookingID,
		Destination: destination,
		Stage:       stage,
		DueAt:       dueAt,
		BookingURL:  m.bookingURL(bookingID),
	}
	if err := m.sender.SendBookingAssignedEmail(ctx, member.Email, notice); err != nil {
		m.log.Error("failed to send booking assigned email", "bookingId", bookingID, "staffId", member.ID, "error", err)
		return err
	}
	m.log.Info("booking assigned email sent", "bookingId", bookingID, "staffId", member.ID)
	return nil
}

func (m *Module) handleSLABreached(ctx context.Context, e events.BookingSLABreached) error {
	member, ok := m.recipient(ctx, e.BookingID, e.OwnerID)
	if !ok {
		return nil
	}
	due := e.SLADueAt
	notice := email.BookingNotice{
		StaffName:  member.Name,
		BookingID:  e.BookingID,
		Stage:      e.Stage,
		DueAt:      &due,
		BookingURL: m.bookingURL(e.BookingID),
	}
	if err := m.sender.SendSLABreachedEmail(ctx, member.Email, notice); err != nil {
		m.log.Error("failed to send sla breached email", "bookingId", e.BookingID, "staffId", member.ID, "error", err)
		return err
	}
	m.log.Info("sla breached email sent", "bookingId", e.BookingID, "staffId", member.ID, "stage", e.Stage)
	return nil
}

func (m *Module) handleInvoiceSent(ctx context.Context, e events.BookingInvoiceSent) error {
	to := strings.TrimSpace(e.CustomerEmail)
	if to == "" {
		m.log.Debug("invoice has no recipient", "bookingId", e.BookingID, "invoiceId", e.InvoiceID)
		return nil
	}
	notice := email.InvoiceNotice{
		CustomerName:   e.CustomerName,
		Number:         e.Number,
		Title:          e.Title,
		Currency:       e.Currency,
		DueAmountCents: e.DueAmountCents,
		DueDate:        e.DueDate,
		InvoiceURL:     m.invoiceURL(e.PublicToken),
	}
	if err := m.sender.SendInvoiceEmail(ctx, to, notice); err != nil {
		m.log.Error("failed to send invoice email", "bookingId", e.BookingID, "invoiceId", e.InvoiceID, "error", err)
		return err
	}
	m.log.Info("invoice email sent", "bookingId", e.BookingID, "invoiceId", e.InvoiceID, "number", e.Number)
	return nil
}

// recipient returns the active owner with an email address, if there is one.
func (m *Module) recipient(ctx context.Context, bookingID string, ownerID *string) (domain.StaffMember, bool) {
	if ownerID == nil || *ownerID == "" {
		return domain.StaffMember{}, false
	}
	members, err := m.staff.ListStaff(ctx)
	if err != nil {
		m.log.Error("staff directory unavailable for notification", "bookingId", bookingID, "error", err)
		return domain.StaffMember{}, false
	}
	member, ok := staff.FindByID(members, *ownerID)
	if !ok || !member.Active || strings.TrimSpace(member.Email) == "" {
		m.log.Debug("no notification recipient", "bookingId", bookingID, "staffId", *ownerID)
		return domain.StaffMember{}, false
	}
	return member, true
}

func (m *Module) bookingURL(bookingID string) string {
	if m.baseURL == "" {
		return ""
	}
	return m.baseURL + "/bookings/" + bookingID
}

func (m *Module) invoiceURL(token string) string {
	if m.baseURL == "" || token == "" {
		return ""
	}
	return m.baseURL + "/invoices/" + token
}
