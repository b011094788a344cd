package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"travelplan_backend/internal/auth/roles"
	"travelplan_backend/internal/bookings/domain"
	"travelplan_backend/internal/bookings/repository"
	"travelplan_backend/internal/bookings/transport"
	"travelplan_backend/internal/events"
	"travelplan_backend/internal/staff"
	"travelplan_backend/platform/apperr"
	"travelplan_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	manager    = Actor{ID: "u-mai", Username: "mai", Roles: []string{roles.Manager}}
	accountant = Actor{ID: "u-lan", Username: "lan", Roles: []string{roles.Accountant}}
	anna       = Actor{ID: "u-anna", Username: "anna", Roles: []string{roles.Staff}}
	binh       = Actor{ID: "u-binh", Username: "binh", Roles: []string{roles.Staff}}
	stranger   = Actor{ID: "u-x", Username: "x"}
)

var testStaff = staff.StaticDirectory{
	{ID: "st_anna", Name: "Anna", Active: true, Usernames: []string{"anna"}, Destinations: []string{"Vietnam"}, Languages: []string{"English"}},
	{ID: "st_binh", Name: "Binh", Active: true, Usernames: []string{"binh"}, Destinations: []string{"Vietnam", "Laos"}, Languages: []string{"Vietnamese"}},
	{ID: "st_chi", Name: "Chi", Active: false, Usernames: []string{"chi"}, Destinations: []string{"Vietnam"}},
}

type fakeScheduler struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeScheduler) ScheduleSLACheck(_ context.Context, bookingID, stage string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, bookingID+":"+stage)
	return nil
}

type fixture struct {
	svc    *Service
	store  *repository.MemoryStore
	bus    *events.InMemoryBus
	sched  *fakeScheduler
	now    time.Time
	mu     sync.Mutex
	events []events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := repository.NewMemoryStore(context.Background(), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	log := logger.New("test")
	f := &fixture{
		store: store,
		bus:   events.NewInMemoryBus(log),
		sched: &fakeScheduler{},
		now:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	for _, name := range events.BookingEventNames {
		f.bus.Subscribe(name, events.HandlerFunc(func(_ context.Context, e events.Event) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.events = append(f.events, e)
			return nil
		}))
	}
	f.svc = New(store, testStaff, f.bus, log,
		WithClock(func() time.Time { return f.now }),
		WithSLAScheduler(f.sched),
	)
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) publishedNames() []string {
	f.bus.Wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.events))
	for _, e := range f.events {
		names = append(names, e.EventName())
	}
	return names
}

func leadRequest() transport.CreateLeadRequest {
	return transport.CreateLeadRequest{
		Name:        "Nguyen Van An",
		Email:       "An.Nguyen@Example.com ",
		Phone:       "0912 345 678",
		Language:    "English",
		Destination: "Vietnam",
		Style:       "Adventure",
		TravelMonth: "2025-10",
		Travelers:   2,
		Duration:    "10 days",
		Notes:       "  vegetarian  ",
		PageURL:     "https://example.com/plan",
		UTMSource:   "newsletter",
	}
}

func (f *fixture) createLead(t *testing.T) transport.BookingResponse {
	t.Helper()
	resp, err := f.svc.CreateLead(context.Background(), leadRequest(), "")
	require.NoError(t, err)
	detail, err := f.svc.GetBooking(context.Background(), resp.BookingID, manager)
	require.NoError(t, err)
	return detail.Booking
}

func (f *fixture) booking(t *testing.T, id string) domain.Booking {
	t.Helper()
	var b domain.Booking
	require.NoError(t, f.store.View(context.Background(), func(tx repository.Tx) error {
		var err error
		b, err = tx.GetBooking(context.Background(), id)
		return err
	}))
	return b
}

func (f *fixture) activities(t *testing.T, id string) []domain.Activity {
	t.Helper()
	var list []domain.Activity
	require.NoError(t, f.store.View(context.Background(), func(tx repository.Tx) error {
		var err error
		list, err = tx.ListActivities(context.Background(), id)
		return err
	}))
	return list
}

func (f *fixture) bookingCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.store.View(context.Background(), func(tx repository.Tx) error {
		all, err := tx.ListBookings(context.Background())
		n = len(all)
		return err
	}))
	return n
}

func activityTypes(list []domain.Activity) []domain.ActivityType {
	out := make([]domain.ActivityType, 0, len(list))
	for _, a := range list {
		out = append(out, a.Type)
	}
	return out
}

func TestCreateLeadAssignsOwnerAndSLA(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.CreateLead(context.Background(), leadRequest(), "")
	require.NoError(t, err)

	assert.Equal(t, "accepted", resp.Status)
	assert.False(t, resp.Deduplicated)
	assert.False(t, resp.CustomerMatched)
	require.NotNil(t, resp.Owner)
	assert.Equal(t, "Anna", *resp.Owner)
	require.NotNil(t, resp.SLADueAt)
	assert.Equal(t, f.now.Add(2*time.Hour), *resp.SLADueAt)

	b := f.booking(t, resp.BookingID)
	assert.Equal(t, domain.StageNew, b.Stage)
	assert.Equal(t, "vegetarian", b.Notes)
	assert.Equal(t, "newsletter", b.Source.UTMSource)
	assert.Equal(t, domain.ComputeBookingHash(b), b.BookingHash)
	assert.Equal(t, "USD", b.Pricing.Currency)

	assert.Equal(t, []domain.ActivityType{domain.ActivityLeadCreated, domain.ActivityOwnerAssigned}, activityTypes(f.activities(t, b.ID)))
	assert.Equal(t, []string{events.NameBookingCreated}, f.publishedNames())
	assert.Equal(t, []string{b.ID + ":NEW"}, f.sched.calls)

	var customer domain.Customer
	require.NoError(t, f.store.View(context.Background(), func(tx repository.Tx) error {
		var err error
		customer, err = tx.GetCustomer(context.Background(), resp.CustomerID)
		return err
	}))
	assert.Equal(t, "an.nguyen@example.com", customer.Email)
	assert.Equal(t, "+84912345678", customer.Phone)
	assert.Equal(t, "English", customer.Language)
}

func TestCreateLeadIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateLead(ctx, leadRequest(), "form-123")
	require.NoError(t, err)
	f.advance(time.Minute)
	second, err := f.svc.CreateLead(ctx, leadRequest(), "form-123")
	require.NoError(t, err)

	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.BookingID, second.BookingID)
	assert.Equal(t, first.CustomerID, second.CustomerID)
	assert.Equal(t, 1, f.bookingCount(t))
	assert.Equal(t, []string{events.NameBookingCreated}, f.publishedNames())
}

func TestCreateLeadConcurrentRetriesProduceOneBooking(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.svc.CreateLead(context.Background(), leadRequest(), "retry-key")
			if assert.NoError(t, err) {
				ids[i] = resp.BookingID
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.bookingCount(t))
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestCreateLeadReusesMatchingCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateLead(ctx, leadRequest(), "")
	require.NoError(t, err)

	req := leadRequest()
	req.Name = "Nguyen Van Anh"
	req.Email = "an.nguyen@example.com"
	req.Language = ""
	second, err := f.svc.CreateLead(ctx, req, "")
	require.NoError(t, err)

	assert.True(t, second.CustomerMatched)
	assert.Equal(t, first.CustomerID, second.CustomerID)
	assert.NotEqual(t, first.BookingID, second.BookingID)

	var customers []domain.Customer
	require.NoError(t, f.store.View(ctx, func(tx repository.Tx) error {
		var err error
		customers, err = tx.ListCustomers(ctx)
		return err
	}))
	require.Len(t, customers, 1)
	assert.Equal(t, "Nguyen Van Anh", customers[0].Name)
	assert.Equal(t, "English", customers[0].Language)
}

func TestCreateLeadBalancesLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := leadRequest()
	req.Language = ""
	owners := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := f.svc.CreateLead(ctx, req, "")
		require.NoError(t, err)
		owners = append(owners, *resp.Owner)
	}
	assert.Equal(t, []string{"Anna", "Binh", "Anna"}, owners)
}

func TestCreateLeadValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *transport.CreateLeadRequest)
		message string
	}{
		{"missing fields", func(r *transport.CreateLeadRequest) { r.Name = "  "; r.Duration = "" }, "Missing required fields: name, duration"},
		{"missing travelers", func(r *transport.CreateLeadRequest) { r.Travelers = 0 }, "Missing required fields: travelers"},
		{"bad email", func(r *transport.CreateLeadRequest) { r.Email = "not-an-email" }, "Invalid email"},
		{"too many travelers", func(r *transport.CreateLeadRequest) { r.Travelers = 31 }, "Travelers must be between 1 and 30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := leadRequest()
			tt.mutate(&req)

			_, err := f.svc.CreateLead(context.Background(), req, "")
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			e, _ := apperr.As(err)
			assert.Equal(t, tt.message, e.Message)
			assert.Equal(t, 0, f.bookingCount(t))
		})
	}
}

func TestChangeStageUpdatesSLAAndHash(t *testing.T) {
	f := newFixture(t)
	b := f.createLead(t)
	f.advance(30 * time.Minute)

	resp, err := f.svc.ChangeStage(context.Background(), b.ID, transport.ChangeStageRequest{Stage: "qualified", BookingHash: b.BookingHash}, anna)
	require.NoError(t, err)

	assert.Equal(t, "QUALIFIED", resp.Booking.Stage)
	require.NotNil(t, resp.Booking.SLADueAt)
	assert.Equal(t, f.now.Add(8*time.Hour), *resp.Booking.SLADueAt)
	assert.Equal(t, f.now, resp.Booking.UpdatedAt)
	assert.NotEqual(t, b.BookingHash, resp.Booking.BookingHash)
	assert.Equal(t, resp.Booking.BookingHash, f.booking(t, b.ID).BookingHash)

	trail := f.activities(t, b.ID)
	last := trail[len(trail)-1]
	assert.Equal(t, domain.ActivityStageChanged, last.Type)
	assert.Equal(t, "anna", last.Actor)
	assert.Equal(t, "Stage updated to QUALIFIED", last.Detail)
	assert.Contains(t, f.publishedNames(), events.NameBookingStageChanged)
	assert.Contains(t, f.sched.calls, b.ID+":QUALIFIED")
}

func TestChangeStageToTerminalClearsSLA(t *testing.T) {
	f := newFixture(t)
	b := f.createLead(t)

	resp, err := f.svc.ChangeStage(context.Background(), b.ID, transport.ChangeStageRequest{Stage: "LOST", BookingHash: b.BookingHash}, manager)
	require.NoError(t, err)
	assert.Nil(t, resp.Booking.SLADueAt)
}

func TestChangeStageRejectsDisallowedTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createLead(t)

	hash := b.BookingHash
	for _, stage := range []string{"QUALIFIED", "PROPOSAL_SENT", "WON"} {
		resp, err := f.svc.ChangeStage(ctx, b.ID, transport.ChangeStageRequest{Stage: stage, BookingHash: hash}, manager)
		require.NoError(t, err)
		hash = resp.Booking.BookingHash
	}
	before := f.booking(t, b.ID)
	f.advance(time.Hour)

	_, err := f.svc.ChangeStage(ctx, b.ID, transport.ChangeStageRequest{Stage: "QUALIFIED", BookingHash: hash}, manager)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, apperr.CodeTransitionNotAllowed, apperr.GetCode(err))
	e, _ := apperr.As(err)
	assert.Equal(t, map[string]string{"from": "WON", "to": "QUALIFIED"}, e.Details)

	after := f.booking(t, b.ID)
	assert.Equal(t, domain.StageWon, after.Stage)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	assert.Equal(t, before.BookingHash, after.BookingHash)
}

func TestChangeStageInvalidStage(t *testing.T) {
	f := newFixture(t)
	b := f.createLead(t)

	_, err := f.svc.ChangeStage(context.Background(), b.ID, transport.ChangeStageRequest{Stage: "ARCHIVED", BookingHash: b.BookingHash}, manager)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestChangeStageUnknownBooking(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ChangeStage(context.Background(), "bkg_missing", transport.ChangeStageRequest{Stage: "QUALIFIED", BookingHash: "x"}, manager)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, apperr.CodeBookingNotFound, apperr.GetCode(err))
}

func TestStaleHashReturnsCurrentRecordForEveryEdit(t *testing.T) {
	paidAt := "2025-03-01T00:00:00Z"
	owner := "st_binh"
	edits := map[string]func(s *Service, id, hash string) error{
		"stage": func(s *Service, id, hash string) error {
			_, err := s.ChangeStage(context.Background(), id, transport.ChangeStageRequest{Stage: "QUALIFIED", BookingHash: hash}, manager)
			return err
		},
		"owner": func(s *Service, id, hash string) error {
			_, err := s.ChangeOwner(context.Background(), id, transport.ChangeOwnerRequest{OwnerID: &owner, BookingHash: hash}, manager)
			return err
		},
		"notes": func(s *Service, id, hash string) error {
			_, err := s.ChangeNotes(context.Background(), id, transport.ChangeNotesRequest{Notes: "call back", BookingHash: hash}, manager)
			return err
		},
		"pricing": func(s *Service, id, hash string) error {
			_, err := s.ChangePricing(context.Background(), id, transport.ChangePricingRequest{
				Pricing: transport.PricingDraft{
					AgreedNetAmountCents: 1000,
					Payments:             []transport.PaymentDraft{{Label: "Deposit", NetAmountCents: 1000, Status: "PAID", PaidAt: &paidAt}},
				},
				BookingHash: hash,
			}, manager)
			return err
		},
	}

	for name, edit := range edits {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			b := f.createLead(t)
			before := f.booking(t, b.ID)
			trailBefore := len(f.activities(t, b.ID))
			f.advance(time.Minute)

			err := edit(f.svc, b.ID, "stale-token")
			require.Error(t, err)
			assert.Equal(t, apperr.CodeBookingHashMismatch, apperr.GetCode(err))
			assert.True(t, apperr.Is(err, apperr.KindConflict))

			e, _ := apperr.As(err)
			current, ok := e.Details.(transport.BookingResponse)
			require.True(t, ok, "conflict must carry the current record")
			assert.Equal(t, before.BookingHash, current.BookingHash)

			after := f.booking(t, b.ID)
			assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
			assert.Equal(t, before.BookingHash, after.BookingHash)
			assert.Len(t, f.activities(t, b.ID), trailBefore)
		})
	}
}

func TestEditsRequireBookingHash(t *testing.T) {
	f := newFixture(t)
	b := f.createLead(t)

	_, err := f.svc.ChangeNotes(context.Background(), b.ID, transport.ChangeNotesRequest{Notes: "x"}, manager)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = f.svc.ChangeOwner(context.Background(), b.ID, transport.ChangeOwnerRequest{BookingHash: "  "}, manager)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestChangeOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createLead(t)

	binhID := "st_binh"
	resp, err := f.svc.ChangeOwner(ctx, b.ID, transport.ChangeOwnerRequest{OwnerID: &binhID, BookingHash: b.BookingHash}, manager)
	require.NoError(t, err)
	require.NotNil(t, resp.Booking.OwnerName)
	assert.Equal(t, "Binh", *resp.Booking.OwnerName)
	assert.False(t, resp.Unchanged)

	same, err := f.svc.ChangeOwner(ctx, b.ID, transport.ChangeOwnerRequest{OwnerID: &binhID, BookingHash: resp.Booking.BookingHash}, manager)
	require.NoError(t, err)
	assert.True(t, same.Unchanged)
	assert.Equal(t, resp.Booking.BookingHash, same.Booking.BookingHash)

	inactive := "st_chi"
	_, err = f.svc.ChangeOwner(ctx, b.ID, transport.ChangeOwnerRequest{OwnerID: &inactive, BookingHash: resp.Booking.BookingHash}, manager)
	assert.Equal(t, apperr.CodeOwnerNotFound, apperr.GetCode(err))

	unassigned, err := f.svc.ChangeOwner(ctx, b.ID, transport.ChangeOwnerRequest{OwnerID: nil, BookingHash: resp.Booking.BookingHash}, manager)
	require.NoError(t, err)
	assert.Nil(t, unassigned.Booking.OwnerID)
	assert.Nil(t, unassigned.Booking.OwnerName)

	trail := f.activities(t, b.ID)
	assert.Equal(t, "Owner unassigned", trail[len(trail)-1].Detail)
	assert.Equal(t, "Owner set to Binh", trail[len(trail)-2].Detail)
}

func TestChangeOwnerRequiresManager(t *testing.T) {
	f := newFixture(t)
	b := f.createLead(t)
	binhID := "st_binh"

	for _, actor := range []Actor{anna, accountant} {
		_, err := f.svc.ChangeOwner(context.Background(), b.ID, transport.ChangeOwnerRequest{OwnerID: &binhID, BookingHash: b.BookingHash}, actor)
		assert.True(t, apperr.Is(err, apperr.KindForbidden), actor.Username)
	}
}

func TestStaffCanOnlyEditOwnBookings(t *testing.T) {
	f := newFixture(t)
	b := f.createLead(t)
	require.NotNil(t, b.OwnerID)
	require.Equal(t, "st_anna", *b.OwnerID)

	_, err := f.svc.ChangeNotes(context.Background(), b.ID, transport.ChangeNotesRequest{Notes: "hi", BookingHash: b.BookingHash}, binh)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.ChangeStage(context.Background(), b.ID, transport.ChangeStageRequest{Stage: "QUALIFIED", BookingHash: b.BookingHash}, binh)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.ChangeNotes(context.Background(), b.ID, transport.ChangeNotesRequest{Notes: "hi", BookingHash: b.BookingHash}, anna)
	assert.NoError(t, err)
}

func TestChangeNotesUnchanged(t *testing.T) {
	f := newFixture(t)
	b := f.createLead(t)
	trailBefore := len(f.activities(t, b.ID))

	resp, err := f.svc.ChangeNotes(context.Background(), b.ID, transport.ChangeNotesRequest{Notes: " vegetarian ", BookingHash: b.BookingHash}, anna)
	require.NoError(t, err)
	assert.True(t, resp.Unchanged)
	assert.Equal(t, b.BookingHash, resp.Booking.BookingHash)
	assert.Len(t, f.activities(t, b.ID), trailBefore)

	resp, err = f.svc.ChangeNotes(context.Background(), b.ID, transport.ChangeNotesRequest{Notes: "vegan", BookingHash: b.BookingHash}, anna)
	require.NoError(t, err)
	assert.False(t, resp.Unchanged)
	assert.Equal(t, "vegan", resp.Booking.Notes)
	assert.Len(t, f.activities(t, b.ID), trailBefore+1)
}

func TestChangePricingComputesSummary(t *testing.T) {
	f := newFixture(t)
	b := f.createLead(t)
	paidAt := "2025-03-09T12:00:00Z"

	resp, err := f.svc.ChangePricing(context.Background(), b.ID, transport.ChangePricingRequest{
		Pricing: transport.PricingDraft{
			Currency:             "EUR",
			AgreedNetAmountCents: 10000,
			Adjustments:          []transport.AdjustmentDraft{{Type: "DISCOUNT", Label: "Early bird", AmountCents: 2000}},
			Payments:             []transport.PaymentDraft{{Label: "Full payment", NetAmountCents: 8000, Status: "PAID", PaidAt: &paidAt}},
		},
		BookingHash: b.BookingHash,
	}, manager)
	require.NoError(t, err)

	summary := resp.Booking.Pricing.Summary
	assert.Equal(t, int64(8000), summary.AdjustedNetAmountCents)
	assert.GreaterOrEqual(t, summary.PaidGrossAmountCents, int64(8000))
	assert.Equal(t, int64(0), summary.OutstandingGrossAmountCents)
	assert.True(t, summary.IsScheduleBalanced)
	assert.Equal(t, "EUR", resp.Booking.Pricing.Currency)
	assert.NotEmpty(t, resp.Booking.Pricing.Adjustments[0].ID)
	assert.NotEmpty(t, resp.Booking.Pricing.Payments[0].ID)

	trail := f.activities(t, b.ID)
	assert.Equal(t, domain.ActivityPricingUpdated, trail[len(trail)-1].Type)
}

func TestChangePricingUnchangedWhenResubmitted(t *testing.T) {
	f := newFixture(t)
	b := f.createLead(t)
	draft := transport.PricingDraft{
		AgreedNetAmountCents: 5000,
		Payments:             []transport.PaymentDraft{{Label: "Deposit", NetAmountCents: 5000, TaxRateBasisPoints: 1000, Status: "PENDING"}},
	}

	first, err := f.svc.ChangePricing(context.Background(), b.ID, transport.ChangePricingRequest{Pricing: draft, BookingHash: b.BookingHash}, manager)
	require.NoError(t, err)
	assert.Equal(t, int64(500), first.Booking.Pricing.Payments[0].TaxAmountCents)

	again, err := f.svc.ChangePricing(context.Background(), b.ID, transport.ChangePricingRequest{Pricing: draft, BookingHash: first.Booking.BookingHash}, manager)
	require.NoError(t, err)
	assert.True(t, again.Unchanged)
}

func TestChangePricingRejectsPaidWithoutPaidAt(t *testing.T) {
	f := newFixture(t)
	b := f.createLead(t)

	_, err := f.svc.ChangePricing(context.Background(), b.ID, transport.ChangePricingRequest{
		Pricing: transport.PricingDraft{
			AgreedNetAmountCents: 100,
			Payments:             []transport.PaymentDraft{{Label: "Deposit", NetAmountCents: 100, Status: "PAID"}},
		},
		BookingHash: b.BookingHash,
	}, manager)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	e, _ := apperr.As(err)
	assert.Equal(t, map[string]string{"field": "payments[0].paid_at", "message": "is required when status is PAID"}, e.Details)
	assert.Equal(t, b.BookingHash, f.booking(t, b.ID).BookingHash)
}

func TestChangePricingParsesPaidAt(t *testing.T) {
	tests := []struct {
		name    string
		paidAt  string
		details map[string]string
	}{
		{"blank counts as missing", "  ", map[string]string{"field": "payments[0].paid_at", "message": "is required when status is PAID"}},
		{"not a timestamp", "yesterday", map[string]string{"field": "payments[0].paid_at", "message": "must be an RFC 3339 timestamp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			b := f.createLead(t)
			paidAt := tt.paidAt

			_, err := f.svc.ChangePricing(context.Background(), b.ID, transport.ChangePricingRequest{
				Pricing: transport.PricingDraft{
					AgreedNetAmountCents: 100,
					Payments:             []transport.PaymentDraft{{Label: "Deposit", NetAmountCents: 100, Status: "PAID", PaidAt: &paidAt}},
				},
				BookingHash: b.BookingHash,
			}, manager)
			require.Error(t, err)
			e, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.details, e.Details)
		})
	}
}

func TestChangePricingNormalizesCurrencyAndCapsAmounts(t *testing.T) {
	f := newFixture(t)
	b := f.createLead(t)

	resp, err := f.svc.ChangePricing(context.Background(), b.ID, transport.ChangePricingRequest{
		Pricing:     transport.PricingDraft{Currency: " eur", AgreedNetAmountCents: 100},
		BookingHash: b.BookingHash,
	}, manager)
	require.NoError(t, err)
	assert.Equal(t, "EUR", resp.Booking.Pricing.Currency)

	_, err = f.svc.ChangePricing(context.Background(), b.ID, transport.ChangePricingRequest{
		Pricing: transport.PricingDraft{
			AgreedNetAmountCents: 1_000_000_000_000_000,
			Payments:             []transport.PaymentDraft{{Label: "All", NetAmountCents: 1_000_000_000_000_000, TaxRateBasisPoints: 10000, Status: "PENDING"}},
		},
		BookingHash: resp.Booking.BookingHash,
	}, manager)
	require.Error(t, err)
	e, _ := apperr.As(err)
	assert.Equal(t, "agreed_net_amount_cents", e.Details.(map[string]string)["field"])
	assert.Equal(t, resp.Booking.BookingHash, f.booking(t, b.ID).BookingHash)
}

func TestConcurrentEditsWithSameHashOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	b := f.createLead(t)

	const writers = 10
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.ChangeNotes(context.Background(), b.ID, transport.ChangeNotesRequest{
				Notes:       "edit " + string(rune('a'+i)),
				BookingHash: b.BookingHash,
			}, manager)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case apperr.GetCode(err) == apperr.CodeBookingHashMismatch:
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, writers-1, conflicts)
}

func TestManualActivityKeepsHash(t *testing.T) {
	f := newFixture(t)
	b := f.createLead(t)
	f.advance(time.Hour)

	resp, err := f.svc.CreateActivity(context.Background(), b.ID, transport.CreateActivityRequest{Type: "call", Detail: "Left voicemail"}, anna)
	require.NoError(t, err)
	assert.Equal(t, "CALL", resp.Activity.Type)
	assert.Equal(t, "anna", resp.Activity.Actor)

	after := f.booking(t, b.ID)
	assert.Equal(t, b.BookingHash, after.BookingHash)
	assert.Equal(t, b.UpdatedAt, after.UpdatedAt)

	list, err := f.svc.ListActivities(context.Background(), b.ID, anna)
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total)
	assert.Equal(t, "CALL", list.Items[2].Type)

	_, err = f.svc.CreateActivity(context.Background(), b.ID, transport.CreateActivityRequest{Type: " "}, anna)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestReadVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	annaBooking := f.createLead(t)

	req := leadRequest()
	req.Destination = "Laos"
	req.Email = "other@example.com"
	req.Name = "Somchai Phommachanh"
	req.Phone = ""
	other, err := f.svc.CreateLead(ctx, req, "")
	require.NoError(t, err)
	require.Equal(t, "Binh", *other.Owner)

	all, err := f.svc.ListBookings(ctx, transport.ListBookingsRequest{}, accountant)
	require.NoError(t, err)
	assert.Equal(t, 2, all.Total)

	own, err := f.svc.ListBookings(ctx, transport.ListBookingsRequest{}, anna)
	require.NoError(t, err)
	require.Equal(t, 1, own.Total)
	assert.Equal(t, annaBooking.ID, own.Items[0].ID)

	_, err = f.svc.GetBooking(ctx, other.BookingID, anna)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.ListBookings(ctx, transport.ListBookingsRequest{}, stranger)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	customer, err := f.svc.GetCustomer(ctx, other.CustomerID, anna)
	require.NoError(t, err)
	assert.Empty(t, customer.Bookings)
}

func TestListBookingsFiltersSortsAndPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := f.svc.CreateLead(ctx, leadRequest(), "")
		require.NoError(t, err)
		ids = append(ids, resp.BookingID)
		f.advance(time.Minute)
	}
	first := f.booking(t, ids[0])
	_, err := f.svc.ChangeStage(ctx, ids[0], transport.ChangeStageRequest{Stage: "QUALIFIED", BookingHash: first.BookingHash}, manager)
	require.NoError(t, err)

	byStage, err := f.svc.ListBookings(ctx, transport.ListBookingsRequest{Stage: "qualified"}, manager)
	require.NoError(t, err)
	require.Equal(t, 1, byStage.Total)
	assert.Equal(t, ids[0], byStage.Items[0].ID)
	require.NotNil(t, byStage.Filters.Stage)
	assert.Equal(t, "QUALIFIED", *byStage.Filters.Stage)

	asc, err := f.svc.ListBookings(ctx, transport.ListBookingsRequest{Sort: SortCreatedAtAsc}, manager)
	require.NoError(t, err)
	assert.Equal(t, ids[0], asc.Items[0].ID)

	desc, err := f.svc.ListBookings(ctx, transport.ListBookingsRequest{}, manager)
	require.NoError(t, err)
	assert.Equal(t, ids[2], desc.Items[0].ID)
	assert.Equal(t, SortCreatedAtDesc, desc.Sort)

	slaDesc, err := f.svc.ListBookings(ctx, transport.ListBookingsRequest{Sort: SortSLADueAtDesc}, manager)
	require.NoError(t, err)
	assert.Equal(t, ids[0], slaDesc.Items[0].ID, "QUALIFIED has the latest deadline")

	paged, err := f.svc.ListBookings(ctx, transport.ListBookingsRequest{Page: 2, PageSize: 2}, manager)
	require.NoError(t, err)
	assert.Equal(t, 3, paged.Total)
	assert.Equal(t, 2, paged.TotalPages)
	assert.Len(t, paged.Items, 1)

	search, err := f.svc.ListBookings(ctx, transport.ListBookingsRequest{Search: "AN.NGUYEN"}, manager)
	require.NoError(t, err)
	assert.Equal(t, 3, search.Total)

	none, err := f.svc.ListBookings(ctx, transport.ListBookingsRequest{Search: "zanzibar"}, manager)
	require.NoError(t, err)
	assert.Equal(t, 0, none.Total)
	assert.NotNil(t, none.Items)
}

func TestListCustomers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createLead(t)

	resp, err := f.svc.ListCustomers(ctx, transport.ListCustomersRequest{Search: "+8491"}, anna)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 25, resp.PageSize)

	_, err = f.svc.ListCustomers(ctx, transport.ListCustomersRequest{}, stranger)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.GetCustomer(ctx, "cust_missing", manager)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCheckSLA(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createLead(t)
	due := *b.SLADueAt

	breached, err := f.svc.CheckSLA(ctx, b.ID, "NEW", due)
	require.NoError(t, err)
	assert.False(t, breached, "not due yet")

	f.advance(3 * time.Hour)
	breached, err = f.svc.CheckSLA(ctx, b.ID, "NEW", due)
	require.NoError(t, err)
	assert.True(t, breached)

	breached, err = f.svc.CheckSLA(ctx, b.ID, "NEW", due)
	require.NoError(t, err)
	assert.False(t, breached, "already recorded")

	trail := f.activities(t, b.ID)
	assert.Equal(t, domain.ActivitySLABreached, trail[len(trail)-1].Type)
	assert.Equal(t, b.BookingHash, f.booking(t, b.ID).BookingHash)
	assert.Contains(t, f.publishedNames(), events.NameBookingSLABreached)

	breached, err = f.svc.CheckSLA(ctx, b.ID, "QUALIFIED", due)
	require.NoError(t, err)
	assert.False(t, breached, "stage moved on")

	breached, err = f.svc.CheckSLA(ctx, "bkg_gone", "NEW", due)
	require.NoError(t, err)
	assert.False(t, breached)
}
