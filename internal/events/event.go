// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"travelplan_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// BookingEvent is implemented by every event about a single booking.
type BookingEvent interface {
	Event
	AggregateID() string
}

// Event names, also used as Kafka message headers.
const (
	NameBookingCreated        = "bookings.booking.created"
	NameBookingStageChanged   = "bookings.booking.stage_changed"
	NameBookingOwnerChanged   = "bookings.booking.owner_changed"
	NameBookingNotesChanged   = "bookings.booking.notes_changed"
	NameBookingPricingChanged = "bookings.booking.pricing_changed"
	NameBookingSLABreached    = "bookings.booking.sla_breached"
	NameBookingInvoiceSent    = "bookings.invoice.sent"
	NameBookingInvoicePaid    = "bookings.invoice.paid"
)

// BookingEventNames lists every booking event, for subscribers that want all of them.
var BookingEventNames = []string{
	NameBookingCreated,
	NameBookingStageChanged,
	NameBookingOwnerChanged,
	NameBookingNotesChanged,
	NameBookingPricingChanged,
	NameBookingSLABreached,
	NameBookingInvoiceSent,
	NameBookingInvoicePaid,
}

// BookingCreated is published once per new lead. Deduplicated retries do not publish.
type BookingCreated struct {
	BaseEvent
	BookingID       string     `json:"booking_id"`
	CustomerID      string     `json:"customer_id"`
	CustomerMatched bool       `json:"customer_matched"`
	Stage           string     `json:"stage"`
	OwnerID         *string    `json:"owner_id"`
	OwnerName       *string    `json:"owner_name"`
	SLADueAt        *time.Time `json:"sla_due_at"`
	Destination     string     `json:"destination"`
}

func (e BookingCreated) EventName() string   { return NameBookingCreated }
func (e BookingCreated) AggregateID() string { return e.BookingID }

// BookingStageChanged is published after a committed stage transition.
type BookingStageChanged struct {
	BaseEvent
	BookingID string     `json:"booking_id"`
	FromStage string     `json:"from_stage"`
	ToStage   string     `json:"to_stage"`
	SLADueAt  *time.Time `json:"sla_due_at"`
	OwnerID   *string    `json:"owner_id"`
	Actor     string     `json:"actor"`
}

func (e BookingStageChanged) EventName() string   { return NameBookingStageChanged }
func (e BookingStageChanged) AggregateID() string { return e.BookingID }

// BookingOwnerChanged is published when a booking gets a different owner.
type BookingOwnerChanged struct {
	BaseEvent
	BookingID   string  `json:"booking_id"`
	FromOwnerID *string `json:"from_owner_id"`
	ToOwnerID   *string `json:"to_owner_id"`
	ToOwnerName *string `json:"to_owner_name"`
	Actor       string  `json:"actor"`
}

func (e BookingOwnerChanged) EventName() string   { return NameBookingOwnerChanged }
func (e BookingOwnerChanged) AggregateID() string { return e.BookingID }

// BookingNotesChanged is published when the notes text actually changes.
type BookingNotesChanged struct {
	BaseEvent
	BookingID string `json:"booking_id"`
	Actor     string `json:"actor"`
}

func (e BookingNotesChanged) EventName() string   { return NameBookingNotesChanged }
func (e BookingNotesChanged) AggregateID() string { return e.BookingID }

// BookingPricingChanged carries the recomputed summary.
type BookingPricingChanged struct {
	BaseEvent
	BookingID                   string `json:"booking_id"`
	Currency                    string `json:"currency"`
	AdjustedNetAmountCents      int64  `json:"adjusted_net_amount_cents"`
	OutstandingGrossAmountCents int64  `json:"outstanding_gross_amount_cents"`
	IsScheduleBalanced          bool   `json:"is_schedule_balanced"`
	Actor                       string `json:"actor"`
}

func (e BookingPricingChanged) EventName() string   { return NameBookingPricingChanged }
func (e BookingPricingChanged) AggregateID() string { return e.BookingID }

// BookingSLABreached is published by the SLA worker when a booking is still
// sitting in the same stage past its due time.
type BookingSLABreached struct {
	BaseEvent
	BookingID string    `json:"booking_id"`
	Stage     string    `json:"stage"`
	SLADueAt  time.Time `json:"sla_due_at"`
	OwnerID   *string   `json:"owner_id"`
	OwnerName *string   `json:"owner_name"`
}

func (e BookingSLABreached) EventName() string   { return NameBookingSLABreached }
func (e BookingSLABreached) AggregateID() string { return e.BookingID }

// BookingInvoiceSent is published when staff send an invoice to the customer.
// The recipient is only needed by the customer email and is not exported.
type BookingInvoiceSent struct {
	BaseEvent
	BookingID      string  `json:"booking_id"`
	InvoiceID      string  `json:"invoice_id"`
	Number         string  `json:"number"`
	Title          string  `json:"-"`
	Currency       string  `json:"currency"`
	DueAmountCents int64   `json:"due_amount_cents"`
	DueDate        *string `json:"due_date"`
	PublicToken    string  `json:"-"`
	CustomerName   string  `json:"-"`
	CustomerEmail  string  `json:"-"`
	Actor          string  `json:"actor"`
}

func (e BookingInvoiceSent) EventName() string   { return NameBookingInvoiceSent }
func (e BookingInvoiceSent) AggregateID() string { return e.BookingID }

// BookingInvoicePaid is published when an invoice is marked as paid.
type BookingInvoicePaid struct {
	BaseEvent
	BookingID      string    `json:"booking_id"`
	InvoiceID      string    `json:"invoice_id"`
	Number         string    `json:"number"`
	Currency       string    `json:"currency"`
	DueAmountCents int64     `json:"due_amount_cents"`
	PaidAt         time.Time `json:"paid_at"`
	Actor          string    `json:"actor"`
}

func (e BookingInvoicePaid) EventName() string   { return NameBookingInvoicePaid }
func (e BookingInvoicePaid) AggregateID() string { return e.BookingID }
