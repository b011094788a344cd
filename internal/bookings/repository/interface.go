package repository

import (
	"context"
	"errors"

	"travelplan_backend/internal/bookings/domain"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrReadOnly is returned by write methods inside View.
	ErrReadOnly = errors.New("read-only transaction")
	// ErrClosed is returned after the store has been closed.
	ErrClosed = errors.New("store closed")
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// BookingReader provides read-only access to bookings.
type BookingReader interface {
	GetBooking(ctx context.Context, id string) (domain.Booking, error)
	FindBookingByIdempotencyKey(ctx context.Context, key string) (domain.Booking, bool, error)
	ListBookings(ctx context.Context) ([]domain.Booking, error)
}

// BookingWriter inserts or replaces bookings.
type BookingWriter interface {
	PutBooking(ctx context.Context, b domain.Booking) error
}

// CustomerReader provides read-only access to customers.
type CustomerReader interface {
	GetCustomer(ctx context.Context, id string) (domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
}

// CustomerWriter inserts or replaces customers.
type CustomerWriter interface {
	PutCustomer(ctx context.Context, c domain.Customer) error
}

// ActivityReader lists a booking's audit trail in chronological order.
type ActivityReader interface {
	ListActivities(ctx context.Context, bookingID string) ([]domain.Activity, error)
}

// ActivityWriter appends to the audit trail.
type ActivityWriter interface {
	AppendActivity(ctx context.Context, a domain.Activity) error
}

// InvoiceReader provides read-only access to invoices.
type InvoiceReader interface {
	GetInvoice(ctx context.Context, id string) (domain.Invoice, error)
	FindInvoiceByToken(ctx context.Context, token string) (domain.Invoice, error)
	// ListInvoices returns a booking's invoices oldest first, or every invoice
	// when bookingID is empty.
	ListInvoices(ctx context.Context, bookingID string) ([]domain.Invoice, error)
}

// InvoiceWriter inserts or replaces invoices.
type InvoiceWriter interface {
	PutInvoice(ctx context.Context, inv domain.Invoice) error
}

// Tx is the unit of work passed to View and Update.
type Tx interface {
	BookingReader
	BookingWriter
	CustomerReader
	CustomerWriter
	ActivityReader
	ActivityWriter
	InvoiceReader
	InvoiceWriter
}

// Store runs units of work against the record store.
//
// Update runs fn as one atomic read-modify-write: every write made through tx
// is committed together, or none is if fn returns an error. Updates are
// totally ordered: each one observes every update committed before it.
// View runs fn against a consistent read-only snapshot.
type Store interface {
	View(ctx context.Context, fn func(tx Tx) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
