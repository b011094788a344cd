package repository

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	"travelplan_backend/internal/bookings/domain"
	"travelplan_backend/platform/logger"
)

// snapshot is the persisted document layout.
type snapshot struct {
	Customers  []domain.Customer `json:"customers"`
	Bookings   []domain.Booking  `json:"bookings"`
	Activities []domain.Activity `json:"activities"`
	Invoices   []domain.Invoice  `json:"invoices"`
}

type state struct {
	customers   map[string]domain.Customer
	bookings    map[string]domain.Booking
	activities  map[string][]domain.Activity
	invoices    map[string]domain.Invoice
	idempotency map[string]string
}

func newState() *state {
	return &state{
		customers:   make(map[string]domain.Customer),
		bookings:    make(map[string]domain.Booking),
		activities:  make(map[string][]domain.Activity),
		invoices:    make(map[string]domain.Invoice),
		idempotency: make(map[string]string),
	}
}

type job struct {
	ctx    context.Context
	fn     func(tx Tx) error
	result chan error
}

// MemoryStore keeps all records in memory. A single writer goroutine applies
// updates one at a time: it runs the unit of work against a copy-on-write view,
// saves the resulting snapshot through the Persister and only then commits.
// Readers see committed state only.
type MemoryStore struct {
	mu        sync.RWMutex
	state     *state
	persister Persister
	log       *logger.Logger

	jobs      chan *job
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore loads the last snapshot from persister (which may be nil for a
// purely in-memory store) and starts the writer.
func NewMemoryStore(ctx context.Context, persister Persister, log *logger.Logger) (*MemoryStore, error) {
	st := newState()
	if persister != nil {
		data, err := persister.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		if len(data) > 0 {
			var snap snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return nil, fmt.Errorf("decode snapshot: %w", err)
			}
			st = stateFromSnapshot(snap)
		}
	}

	s := &MemoryStore{
		state:     st,
		persister: persister,
		log:       log,
		jobs:      make(chan *job),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// View runs fn against committed state while holding the read lock.
func (s *MemoryStore) View(_ context.Context, fn func(tx Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(newMemTx(s.state, true))
}

// Update queues fn on the writer and waits for its outcome.
func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	j := &job{ctx: ctx, fn: fn, result: make(chan error, 1)}
	select {
	case s.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stop:
		return ErrClosed
	}
	return <-j.result
}

// Close stops the writer. Updates queued after Close return ErrClosed.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

// Ping reports ErrClosed once the writer has stopped.
func (s *MemoryStore) Ping(_ context.Context) error {
	select {
	case <-s.stop:
		return ErrClosed
	default:
		return nil
	}
}

func (s *MemoryStore) run() {
	defer close(s.done)
	for {
		select {
		case j := <-s.jobs:
			j.result <- s.apply(j)
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) apply(j *job) (err error) {
	if err := j.ctx.Err(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("update panicked: %v", r)
		}
	}()

	// Only this goroutine mutates s.state, so reading it without the lock is safe.
	tx := newMemTx(s.state, false)
	if err := j.fn(tx); err != nil {
		return err
	}
	if tx.empty() {
		return nil
	}

	if s.persister != nil {
		data, err := json.MarshalIndent(tx.snapshot(), "", "  ")
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		if err := s.persister.Save(j.ctx, data); err != nil {
			if s.log != nil {
				s.log.DatabaseError("snapshot_save", err)
			}
			return fmt.Errorf("save snapshot: %w", err)
		}
	}

	s.mu.Lock()
	tx.commit()
	s.mu.Unlock()
	return nil
}

func stateFromSnapshot(snap snapshot) *state {
	st := newState()
	for _, c := range snap.Customers {
		st.customers[c.ID] = c.Clone()
	}
	for _, b := range snap.Bookings {
		st.bookings[b.ID] = b.Clone()
		if b.IdempotencyKey != nil && *b.IdempotencyKey != "" {
			st.idempotency[*b.IdempotencyKey] = b.ID
		}
	}
	for _, a := range snap.Activities {
		st.activities[a.BookingID] = append(st.activities[a.BookingID], a)
	}
	for id := range st.activities {
		sortActivities(st.activities[id])
	}
	for _, inv := range snap.Invoices {
		st.invoices[inv.ID] = inv.Clone()
	}
	return st
}

// memTx overlays uncommitted writes on top of the committed state.
type memTx struct {
	base       *state
	readOnly   bool
	bookings   map[string]domain.Booking
	customers  map[string]domain.Customer
	activities []domain.Activity
	invoices   map[string]domain.Invoice
}

func newMemTx(base *state, readOnly bool) *memTx {
	return &memTx{
		base:      base,
		readOnly:  readOnly,
		bookings:  make(map[string]domain.Booking),
		customers: make(map[string]domain.Customer),
		invoices:  make(map[string]domain.Invoice),
	}
}

func (t *memTx) empty() bool {
	return len(t.bookings) == 0 && len(t.customers) == 0 && len(t.activities) == 0 && len(t.invoices) == 0
}

func (t *memTx) GetBooking(_ context.Context, id string) (domain.Booking, error) {
	if b, ok := t.bookings[id]; ok {
		return b.Clone(), nil
	}
	if b, ok := t.base.bookings[id]; ok {
		return b.Clone(), nil
	}
	return domain.Booking{}, ErrNotFound
}

func (t *memTx) FindBookingByIdempotencyKey(ctx context.Context, key string) (domain.Booking, bool, error) {
	if key == "" {
		return domain.Booking{}, false, nil
	}
	for _, b := range t.bookings {
		if b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			return b.Clone(), true, nil
		}
	}
	id, ok := t.base.idempotency[key]
	if !ok {
		return domain.Booking{}, false, nil
	}
	b, err := t.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, false, err
	}
	return b, true, nil
}

func (t *memTx) ListBookings(_ context.Context) ([]domain.Booking, error) {
	merged := maps.Clone(t.base.bookings)
	maps.Copy(merged, t.bookings)
	out := make([]domain.Booking, 0, len(merged))
	for _, b := range merged {
		out = append(out, b.Clone())
	}
	slices.SortFunc(out, func(a, b domain.Booking) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (t *memTx) PutBooking(_ context.Context, b domain.Booking) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.bookings[b.ID] = b.Clone()
	return nil
}

func (t *memTx) GetCustomer(_ context.Context, id string) (domain.Customer, error) {
	if c, ok := t.customers[id]; ok {
		return c.Clone(), nil
	}
	if c, ok := t.base.customers[id]; ok {
		return c.Clone(), nil
	}
	return domain.Customer{}, ErrNotFound
}

func (t *memTx) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	merged := maps.Clone(t.base.customers)
	maps.Copy(merged, t.customers)
	out := make([]domain.Customer, 0, len(merged))
	for _, c := range merged {
		out = append(out, c.Clone())
	}
	slices.SortFunc(out, func(a, b domain.Customer) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (t *memTx) PutCustomer(_ context.Context, c domain.Customer) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.customers[c.ID] = c.Clone()
	return nil
}

func (t *memTx) ListActivities(_ context.Context, bookingID string) ([]domain.Activity, error) {
	out := slices.Clone(t.base.activities[bookingID])
	for _, a := range t.activities {
		if a.BookingID == bookingID {
			out = append(out, a)
		}
	}
	sortActivities(out)
	if out == nil {
		out = []domain.Activity{}
	}
	return out, nil
}

func (t *memTx) AppendActivity(_ context.Context, a domain.Activity) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.activities = append(t.activities, a)
	return nil
}

func (t *memTx) GetInvoice(_ context.Context, id string) (domain.Invoice, error) {
	if inv, ok := t.invoices[id]; ok {
		return inv.Clone(), nil
	}
	if inv, ok := t.base.invoices[id]; ok {
		return inv.Clone(), nil
	}
	return domain.Invoice{}, ErrNotFound
}

func (t *memTx) FindInvoiceByToken(ctx context.Context, token string) (domain.Invoice, error) {
	if token == "" {
		return domain.Invoice{}, ErrNotFound
	}
	all, _ := t.ListInvoices(ctx, "")
	for _, inv := range all {
		if inv.PublicToken == token {
			return inv, nil
		}
	}
	return domain.Invoice{}, ErrNotFound
}

func (t *memTx) ListInvoices(_ context.Context, bookingID string) ([]domain.Invoice, error) {
	merged := maps.Clone(t.base.invoices)
	maps.Copy(merged, t.invoices)
	out := make([]domain.Invoice, 0)
	for _, inv := range merged {
		if bookingID == "" || inv.BookingID == bookingID {
			out = append(out, inv.Clone())
		}
	}
	slices.SortFunc(out, func(a, b domain.Invoice) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (t *memTx) PutInvoice(_ context.Context, inv domain.Invoice) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.invoices[inv.ID] = inv.Clone()
	return nil
}

func (t *memTx) commit() {
	for id, b := range t.bookings {
		t.base.bookings[id] = b
		if b.IdempotencyKey != nil && *b.IdempotencyKey != "" {
			t.base.idempotency[*b.IdempotencyKey] = id
		}
	}
	maps.Copy(t.base.customers, t.customers)
	for _, a := range t.activities {
		t.base.activities[a.BookingID] = append(t.base.activities[a.BookingID], a)
	}
	maps.Copy(t.base.invoices, t.invoices)
}

// snapshot renders committed state plus this transaction's writes.
func (t *memTx) snapshot() snapshot {
	ctx := context.Background()
	customers, _ := t.ListCustomers(ctx)
	bookings, _ := t.ListBookings(ctx)
	slices.Reverse(bookings)

	activities := make([]domain.Activity, 0)
	for _, list := range t.base.activities {
		activities = append(activities, list...)
	}
	activities = append(activities, t.activities...)
	sortActivities(activities)

	invoices, _ := t.ListInvoices(ctx, "")

	return snapshot{Customers: customers, Bookings: bookings, Activities: activities, Invoices: invoices}
}

func sortActivities(list []domain.Activity) {
	slices.SortStableFunc(list, func(a, b domain.Activity) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

var _ Store = (*MemoryStore)(nil)
