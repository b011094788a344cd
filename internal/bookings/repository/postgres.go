package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"travelplan_backend/internal/bookings/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// writeLockKey serializes all write transactions through pg_advisory_xact_lock.
const writeLockKey int64 = 0x7472_6176_656c

// PostgresStore keeps records in Postgres. Booking and customer rows carry the
// full record as JSONB plus the columns needed for lookups.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps a pool. Migrations must already be applied.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// View runs fn in a read-only repeatable-read transaction.
func (s *PostgresStore) View(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx, readOnly: true})
	})
}

// Update runs fn in a transaction holding the global write lock.
func (s *PostgresStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, writeLockKey); err != nil {
			return fmt.Errorf("acquire write lock: %w", err)
		}
		return fn(&pgTx{tx: tx})
	})
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

type pgTx struct {
	tx       pgx.Tx
	readOnly bool
}

func (t *pgTx) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	var doc []byte
	err := t.tx.QueryRow(ctx, `SELECT doc FROM bookings WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, ErrNotFound
	}
	if err != nil {
		return domain.Booking{}, err
	}
	return decodeBooking(doc)
}

func (t *pgTx) FindBookingByIdempotencyKey(ctx context.Context, key string) (domain.Booking, bool, error) {
	if key == "" {
		return domain.Booking{}, false, nil
	}
	var doc []byte
	err := t.tx.QueryRow(ctx, `SELECT doc FROM bookings WHERE idempotency_key = $1`, key).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, false, nil
	}
	if err != nil {
		return domain.Booking{}, false, err
	}
	b, err := decodeBooking(doc)
	return b, err == nil, err
}

func (t *pgTx) ListBookings(ctx context.Context) ([]domain.Booking, error) {
	rows, err := t.tx.Query(ctx, `SELECT doc FROM bookings ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Booking, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		b, err := decodeBooking(doc)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (t *pgTx) PutBooking(ctx context.Context, b domain.Booking) error {
	if t.readOnly {
		return ErrReadOnly
	}
	doc, err := json.Marshal(b)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO bookings (id, customer_id, stage, owner_id, idempotency_key, sla_due_at, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			stage = EXCLUDED.stage,
			owner_id = EXCLUDED.owner_id,
			sla_due_at = EXCLUDED.sla_due_at,
			doc = EXCLUDED.doc,
			updated_at = EXCLUDED.updated_at
	`, b.ID, b.CustomerID, string(b.Stage), b.OwnerID, b.IdempotencyKey, b.SLADueAt, doc, b.CreatedAt, b.UpdatedAt)
	return err
}

func (t *pgTx) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	var doc []byte
	err := t.tx.QueryRow(ctx, `SELECT doc FROM customers WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Customer{}, ErrNotFound
	}
	if err != nil {
		return domain.Customer{}, err
	}
	var c domain.Customer
	if err := json.Unmarshal(doc, &c); err != nil {
		return domain.Customer{}, fmt.Errorf("decode customer %s: %w", id, err)
	}
	return c, nil
}

func (t *pgTx) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := t.tx.Query(ctx, `SELECT doc FROM customers ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Customer, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var c domain.Customer
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, fmt.Errorf("decode customer: %w", err)
		}
		items = append(items, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (t *pgTx) PutCustomer(ctx context.Context, c domain.Customer) error {
	if t.readOnly {
		return ErrReadOnly
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO customers (id, email, phone, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			doc = EXCLUDED.doc,
			updated_at = EXCLUDED.updated_at
	`, c.ID, c.Email, c.Phone, doc, c.CreatedAt, c.UpdatedAt)
	return err
}

func (t *pgTx) ListActivities(ctx context.Context, bookingID string) ([]domain.Activity, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, booking_id, type, actor, detail, created_at
		FROM booking_activities
		WHERE booking_id = $1
		ORDER BY created_at ASC, id ASC
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Activity, 0)
	for rows.Next() {
		var a domain.Activity
		var activityType string
		if err := rows.Scan(&a.ID, &a.BookingID, &activityType, &a.Actor, &a.Detail, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Type = domain.ActivityType(activityType)
		a.CreatedAt = a.CreatedAt.UTC()
		items = append(items, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (t *pgTx) AppendActivity(ctx context.Context, a domain.Activity) error {
	if t.readOnly {
		return ErrReadOnly
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO booking_activities (id, booking_id, type, actor, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.BookingID, string(a.Type), a.Actor, a.Detail, a.CreatedAt)
	return err
}

func (t *pgTx) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	return t.queryInvoice(ctx, `SELECT doc FROM invoices WHERE id = $1`, id)
}

func (t *pgTx) FindInvoiceByToken(ctx context.Context, token string) (domain.Invoice, error) {
	if token == "" {
		return domain.Invoice{}, ErrNotFound
	}
	return t.queryInvoice(ctx, `SELECT doc FROM invoices WHERE public_token = $1`, token)
}

func (t *pgTx) queryInvoice(ctx context.Context, query string, arg string) (domain.Invoice, error) {
	var doc []byte
	err := t.tx.QueryRow(ctx, query, arg).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Invoice{}, ErrNotFound
	}
	if err != nil {
		return domain.Invoice{}, err
	}
	return decodeInvoice(doc)
}

func (t *pgTx) ListInvoices(ctx context.Context, bookingID string) ([]domain.Invoice, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT doc FROM invoices
		WHERE $1 = '' OR booking_id = $1
		ORDER BY created_at ASC, id ASC
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Invoice, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		inv, err := decodeInvoice(doc)
		if err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (t *pgTx) PutInvoice(ctx context.Context, inv domain.Invoice) error {
	if t.readOnly {
		return ErrReadOnly
	}
	doc, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO invoices (id, booking_id, number, public_token, status, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			number = EXCLUDED.number,
			status = EXCLUDED.status,
			doc = EXCLUDED.doc,
			updated_at = EXCLUDED.updated_at
	`, inv.ID, inv.BookingID, inv.Number, inv.PublicToken, string(inv.Status), doc, inv.CreatedAt, inv.UpdatedAt)
	return err
}

func decodeInvoice(doc []byte) (domain.Invoice, error) {
	var inv domain.Invoice
	if err := json.Unmarshal(doc, &inv); err != nil {
		return domain.Invoice{}, fmt.Errorf("decode invoice: %w", err)
	}
	return inv, nil
}

func decodeBooking(doc []byte) (domain.Booking, error) {
	var b domain.Booking
	if err := json.Unmarshal(doc, &b); err != nil {
		return domain.Booking{}, fmt.Errorf("decode booking: %w", err)
	}
	return b, nil
}

var _ Store = (*PostgresStore)(nil)
