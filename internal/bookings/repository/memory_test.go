package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"travelplan_backend/internal/bookings/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPersister struct {
	saves int
}

func (p *failingPersister) Load(context.Context) ([]byte, error) { return nil, nil }

func (p *failingPersister) Save(context.Context, []byte) error {
	p.saves++
	return errors.New("disk full")
}

func newBooking(id string, created time.Time) domain.Booking {
	b := domain.Booking{
		ID:         id,
		CustomerID: "cust_1",
		Stage:      domain.StageNew,
		Pricing:    domain.EmptyPricing(),
		CreatedAt:  created,
	}
	b.Touch(created)
	return b
}

func TestMemoryStoreUpdateCommitsAtomically(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(ctx, nil, nil)
	require.NoError(t, err)
	defer store.Close()

	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	boom := errors.New("boom")

	err = store.Update(ctx, func(tx Tx) error {
		if err := tx.PutBooking(ctx, newBooking("bkg_1", now)); err != nil {
			return err
		}
		if err := tx.AppendActivity(ctx, domain.Activity{ID: "act_1", BookingID: "bkg_1", CreatedAt: now}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = store.View(ctx, func(tx Tx) error {
		_, err := tx.GetBooking(ctx, "bkg_1")
		assert.ErrorIs(t, err, ErrNotFound)
		acts, err := tx.ListActivities(ctx, "bkg_1")
		require.NoError(t, err)
		assert.Empty(t, acts)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, store.Update(ctx, func(tx Tx) error {
		if err := tx.PutBooking(ctx, newBooking("bkg_1", now)); err != nil {
			return err
		}
		return tx.AppendActivity(ctx, domain.Activity{ID: "act_1", BookingID: "bkg_1", CreatedAt: now})
	}))

	require.NoError(t, store.View(ctx, func(tx Tx) error {
		b, err := tx.GetBooking(ctx, "bkg_1")
		require.NoError(t, err)
		assert.Equal(t, domain.StageNew, b.Stage)
		acts, err := tx.ListActivities(ctx, "bkg_1")
		require.NoError(t, err)
		assert.Len(t, acts, 1)
		return nil
	}))
}

func TestMemoryStoreTransactionSeesItsOwnWrites(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(ctx, nil, nil)
	require.NoError(t, err)
	defer store.Close()

	key := "idem-1"
	now := time.Now().UTC()
	// Update callbacks run on the store's writer goroutine, so they report
	// through assert and returned errors rather than require.
	require.NoError(t, store.Update(ctx, func(tx Tx) error {
		b := newBooking("bkg_1", now)
		b.IdempotencyKey = &key
		if err := tx.PutBooking(ctx, b); err != nil {
			return err
		}

		found, ok, err := tx.FindBookingByIdempotencyKey(ctx, key)
		if err != nil {
			return err
		}
		assert.True(t, ok)
		assert.Equal(t, "bkg_1", found.ID)

		list, err := tx.ListBookings(ctx)
		if err != nil {
			return err
		}
		assert.Len(t, list, 1)
		return nil
	}))

	require.NoError(t, store.View(ctx, func(tx Tx) error {
		found, ok, err := tx.FindBookingByIdempotencyKey(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "bkg_1", found.ID)
		return nil
	}))
}

func TestMemoryStoreViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(ctx, nil, nil)
	require.NoError(t, err)
	defer store.Close()

	err = store.View(ctx, func(tx Tx) error {
		return tx.PutCustomer(ctx, domain.Customer{ID: "cust_1"})
	})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(ctx, nil, nil)
	require.NoError(t, err)
	defer store.Close()

	owner := "staff_1"
	require.NoError(t, store.Update(ctx, func(tx Tx) error {
		b := newBooking("bkg_1", time.Now())
		b.OwnerID = &owner
		return tx.PutBooking(ctx, b)
	}))

	require.NoError(t, store.View(ctx, func(tx Tx) error {
		b, err := tx.GetBooking(ctx, "bkg_1")
		require.NoError(t, err)
		*b.OwnerID = "mutated"
		return nil
	}))

	require.NoError(t, store.View(ctx, func(tx Tx) error {
		b, err := tx.GetBooking(ctx, "bkg_1")
		require.NoError(t, err)
		assert.Equal(t, "staff_1", *b.OwnerID)
		return nil
	}))
}

func TestMemoryStoreSerializesConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(ctx, nil, nil)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Update(ctx, func(tx Tx) error {
		return tx.PutCustomer(ctx, domain.Customer{ID: "cust_1", Tags: []string{}})
	}))

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Update(ctx, func(tx Tx) error {
				c, err := tx.GetCustomer(ctx, "cust_1")
				if err != nil {
					return err
				}
				c.Tags = append(c.Tags, "x")
				return tx.PutCustomer(ctx, c)
			})
		}()
	}
	wg.Wait()

	require.NoError(t, store.View(ctx, func(tx Tx) error {
		c, err := tx.GetCustomer(ctx, "cust_1")
		require.NoError(t, err)
		assert.Len(t, c.Tags, writers)
		return nil
	}))
}

func TestMemoryStorePersistFailureDoesNotCommit(t *testing.T) {
	ctx := context.Background()
	persister := &failingPersister{}
	store, err := NewMemoryStore(ctx, persister, nil)
	require.NoError(t, err)
	defer store.Close()

	err = store.Update(ctx, func(tx Tx) error {
		return tx.PutCustomer(ctx, domain.Customer{ID: "cust_1"})
	})
	require.Error(t, err)
	assert.Equal(t, 1, persister.saves)

	require.NoError(t, store.View(ctx, func(tx Tx) error {
		_, err := tx.GetCustomer(ctx, "cust_1")
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	}))
}

func TestMemoryStoreRecoversPanics(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(ctx, nil, nil)
	require.NoError(t, err)
	defer store.Close()

	err = store.Update(ctx, func(Tx) error { panic("bad") })
	require.Error(t, err)

	require.NoError(t, store.Update(ctx, func(tx Tx) error {
		return tx.PutCustomer(ctx, domain.Customer{ID: "cust_1"})
	}), "writer must survive a panicking update")
}

func TestMemoryStoreReloadsFromFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "store.json")
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	key := "idem-9"

	store, err := NewMemoryStore(ctx, NewFilePersister(path), nil)
	require.NoError(t, err)
	var hash string
	require.NoError(t, store.Update(ctx, func(tx Tx) error {
		if err := tx.PutCustomer(ctx, domain.Customer{ID: "cust_1", Name: "Anna", Tags: []string{}, CreatedAt: now, UpdatedAt: now}); err != nil {
			return err
		}
		b := newBooking("bkg_1", now)
		b.IdempotencyKey = &key
		hash = b.BookingHash
		if err := tx.PutBooking(ctx, b); err != nil {
			return err
		}
		return tx.AppendActivity(ctx, domain.Activity{ID: "act_1", BookingID: "bkg_1", Type: domain.ActivityLeadCreated, CreatedAt: now})
	}))
	require.NoError(t, store.Close())

	reopened, err := NewMemoryStore(ctx, NewFilePersister(path), nil)
	require.NoError(t, err)
	defer reopened.Close()

	require.NoError(t, reopened.View(ctx, func(tx Tx) error {
		b, ok, err := tx.FindBookingByIdempotencyKey(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, hash, b.BookingHash)
		assert.Equal(t, hash, domain.ComputeBookingHash(b), "hash must survive a round trip")

		c, err := tx.GetCustomer(ctx, "cust_1")
		require.NoError(t, err)
		assert.Equal(t, "Anna", c.Name)

		acts, err := tx.ListActivities(ctx, "bkg_1")
		require.NoError(t, err)
		require.Len(t, acts, 1)
		assert.Equal(t, domain.ActivityLeadCreated, acts[0].Type)
		return nil
	}))
}

func TestMemoryStoreClosedRejectsUpdates(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(ctx, nil, nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	err = store.Update(ctx, func(Tx) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryStoreInvoices(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	store, err := NewMemoryStore(ctx, NewFilePersister(path), nil)
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, func(tx Tx) error {
		require.NoError(t, tx.PutBooking(ctx, newBooking("bkg_1", now)))
		require.NoError(t, tx.PutBooking(ctx, newBooking("bkg_2", now)))
		for i, bookingID := range []string{"bkg_1", "bkg_2", "bkg_1"} {
			inv := domain.Invoice{
				ID:          "inv_" + string(rune('a'+i)),
				BookingID:   bookingID,
				Number:      domain.NextInvoiceNumber(nil),
				Status:      domain.InvoiceStatusDraft,
				PublicToken: "tok_" + string(rune('a'+i)),
				Items:       []domain.InvoiceItem{{ID: "line", Description: "Tour", Quantity: 1, UnitAmountCents: 100, TotalAmountCents: 100}},
				CreatedAt:   now.Add(time.Duration(i) * time.Minute),
			}
			require.NoError(t, tx.PutInvoice(ctx, inv))
		}
		list, err := tx.ListInvoices(ctx, "bkg_1")
		require.NoError(t, err)
		assert.Len(t, list, 2, "uncommitted invoices are visible to their own transaction")
		return nil
	}))
	require.NoError(t, store.Close())

	reopened, err := NewMemoryStore(ctx, NewFilePersister(path), nil)
	require.NoError(t, err)
	defer reopened.Close()

	require.NoError(t, reopened.View(ctx, func(tx Tx) error {
		list, err := tx.ListInvoices(ctx, "bkg_1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "inv_a", list[0].ID)
		assert.Equal(t, "inv_c", list[1].ID)

		all, err := tx.ListInvoices(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)

		inv, err := tx.FindInvoiceByToken(ctx, "tok_b")
		require.NoError(t, err)
		assert.Equal(t, "bkg_2", inv.BookingID)
		inv.Items[0].Description = "changed"

		again, err := tx.GetInvoice(ctx, "inv_b")
		require.NoError(t, err)
		assert.Equal(t, "Tour", again.Items[0].Description)

		_, err = tx.FindInvoiceByToken(ctx, "")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = tx.GetInvoice(ctx, "inv_z")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, tx.PutInvoice(ctx, inv), ErrReadOnly)
		return nil
	}))
}
