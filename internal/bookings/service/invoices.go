package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"travelplan_backend/internal/auth/roles"
	"travelplan_backend/internal/bookings/domain"
	"travelplan_backend/internal/bookings/repository"
	"travelplan_backend/internal/bookings/transport"
	"travelplan_backend/internal/events"
	"travelplan_backend/platform/apperr"
	"travelplan_backend/platform/sanitize"
)

const (
	msgInvoiceNotFound       = "invoice not found"
	msgInvoicePaid           = "paid invoice cannot be modified"
	msgInvoiceNumberTaken    = "invoice number is already in use"
	msgCustomerEmailRequired = "customer email is required to send an invoice"
)

// ListInvoices returns a booking's invoices, oldest first.
func (s *Service) ListInvoices(ctx context.Context, bookingID string, actor Actor) (transport.InvoiceListResponse, error) {
	vis, _, err := s.visibilityFor(ctx, actor)
	if err != nil {
		return transport.InvoiceListResponse{}, err
	}

	var resp transport.InvoiceListResponse
	err = s.store.View(ctx, func(tx repository.Tx) error {
		b, err := loadBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !vis.canSee(b) {
			return apperr.Forbidden(msgForbidden)
		}
		list, err := tx.ListInvoices(ctx, b.ID)
		if err != nil {
			return err
		}
		items := make([]transport.InvoiceResponse, 0, len(list))
		for _, inv := range list {
			items = append(items, toInvoiceResponse(inv))
		}
		resp = transport.InvoiceListResponse{Items: items, Total: len(items)}
		return nil
	})
	return resp, err
}

// CreateInvoice drafts a new invoice for the booking. Without items it bills
// the pending scheduled payments, and without a currency it uses the booking's.
func (s *Service) CreateInvoice(ctx context.Context, bookingID string, req transport.InvoiceRequest, actor Actor) (transport.InvoiceResponse, error) {
	const op = "bookings.CreateInvoice"
	members, err := s.listStaff(ctx)
	if err != nil {
		return transport.InvoiceResponse{}, err
	}
	token, err := domain.NewInvoiceToken()
	if err != nil {
		return transport.InvoiceResponse{}, apperr.Wrap(apperr.KindInternal, "could not create invoice", err).WithOp(op)
	}

	var created domain.Invoice
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		b, err := loadEditableBooking(ctx, tx, bookingID, actor, members)
		if err != nil {
			return err
		}
		customer, err := tx.GetCustomer(ctx, b.CustomerID)
		if err != nil {
			return fmt.Errorf("load customer %s: %w", b.CustomerID, err)
		}
		all, err := tx.ListInvoices(ctx, "")
		if err != nil {
			return err
		}

		draft := invoiceDraft(req)
		if len(draft.Items) == 0 {
			draft.Items = domain.InvoiceItemsFromPricing(b.Pricing)
		}
		if strings.TrimSpace(draft.Currency) == "" {
			draft.Currency = b.Pricing.Currency
		}
		name := strings.TrimSpace(customer.Name)
		if name == "" {
			name = "customer"
		}

		now := s.clock()
		inv, err := domain.ApplyInvoiceDraft(domain.Invoice{
			ID:          domain.NewInvoiceID(),
			BookingID:   b.ID,
			CustomerID:  b.CustomerID,
			Number:      domain.NextInvoiceNumber(all),
			Version:     1,
			Status:      domain.InvoiceStatusDraft,
			IssueDate:   now.Format(time.DateOnly),
			Title:       "Invoice for " + name,
			PublicToken: token,
			CreatedAt:   now,
			UpdatedAt:   now,
		}, draft, domain.NewPricingItemID)
		if err != nil {
			return fieldError(op, err)
		}
		if numberTaken(all, inv) {
			return apperr.Conflict(msgInvoiceNumberTaken).WithOp(op)
		}
		if err := tx.PutInvoice(ctx, inv); err != nil {
			return err
		}
		created = inv
		detail := fmt.Sprintf("Invoice %s created: %s %d due", inv.Number, inv.Currency, inv.DueAmountCents)
		return tx.AppendActivity(ctx, newActivity(b.ID, domain.ActivityInvoiceCreated, actor.Label(), detail, now))
	})
	if err != nil {
		return transport.InvoiceResponse{}, err
	}
	return toInvoiceResponse(created), nil
}

// UpdateInvoice edits an unpaid invoice. Every edit bumps the version and
// returns the invoice to DRAFT so that it has to be sent again.
func (s *Service) UpdateInvoice(ctx context.Context, bookingID, invoiceID string, req transport.InvoiceRequest, actor Actor) (transport.InvoiceResponse, error) {
	const op = "bookings.UpdateInvoice"
	members, err := s.listStaff(ctx)
	if err != nil {
		return transport.InvoiceResponse{}, err
	}

	var updated domain.Invoice
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		b, err := loadEditableBooking(ctx, tx, bookingID, actor, members)
		if err != nil {
			return err
		}
		inv, err := loadInvoice(ctx, tx, b.ID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == domain.InvoicePaid {
			return apperr.Conflict(msgInvoicePaid).WithOp(op)
		}
		next, err := domain.ApplyInvoiceDraft(inv, invoiceDraft(req), domain.NewPricingItemID)
		if err != nil {
			return fieldError(op, err)
		}
		all, err := tx.ListInvoices(ctx, "")
		if err != nil {
			return err
		}
		if numberTaken(all, next) {
			return apperr.Conflict(msgInvoiceNumberTaken).WithOp(op)
		}

		now := s.clock()
		next.Version = inv.Version + 1
		next.Status = domain.InvoiceStatusDraft
		next.SentAt = nil
		next.UpdatedAt = now
		if err := tx.PutInvoice(ctx, next); err != nil {
			return err
		}
		updated = next
		detail := fmt.Sprintf("Invoice %s updated to version %d", next.Number, next.Version)
		return tx.AppendActivity(ctx, newActivity(b.ID, domain.ActivityInvoiceUpdated, actor.Label(), detail, now))
	})
	if err != nil {
		return transport.InvoiceResponse{}, err
	}
	return toInvoiceResponse(updated), nil
}

// SendInvoice marks the invoice as sent and emails the customer a link to it.
// A paid invoice stays PAID and the first sent_at is kept.
func (s *Service) SendInvoice(ctx context.Context, bookingID, invoiceID string, actor Actor) (transport.InvoiceResponse, error) {
	const op = "bookings.SendInvoice"
	members, err := s.listStaff(ctx)
	if err != nil {
		return transport.InvoiceResponse{}, err
	}

	var sent domain.Invoice
	var customer domain.Customer
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		b, err := loadEditableBooking(ctx, tx, bookingID, actor, members)
		if err != nil {
			return err
		}
		inv, err := loadInvoice(ctx, tx, b.ID, invoiceID)
		if err != nil {
			return err
		}
		customer, err = tx.GetCustomer(ctx, inv.CustomerID)
		if err != nil {
			return fmt.Errorf("load customer %s: %w", inv.CustomerID, err)
		}
		if strings.TrimSpace(customer.Email) == "" {
			return apperr.Validation(msgCustomerEmailRequired).WithOp(op)
		}

		now := s.clock()
		if inv.Status != domain.InvoicePaid {
			inv.Status = domain.InvoiceSent
		}
		if inv.SentAt == nil {
			inv.SentAt = &now
		}
		inv.UpdatedAt = now
		if err := tx.PutInvoice(ctx, inv); err != nil {
			return err
		}
		sent = inv
		detail := fmt.Sprintf("Invoice %s sent to %s", inv.Number, customer.Email)
		return tx.AppendActivity(ctx, newActivity(b.ID, domain.ActivityInvoiceSent, actor.Label(), detail, now))
	})
	if err != nil {
		return transport.InvoiceResponse{}, err
	}

	s.publish(ctx, events.BookingInvoiceSent{
		BaseEvent:      events.NewBaseEvent(),
		BookingID:      sent.BookingID,
		InvoiceID:      sent.ID,
		Number:         sent.Number,
		Title:          sent.Title,
		Currency:       sent.Currency,
		DueAmountCents: sent.DueAmountCents,
		DueDate:        sent.DueDate,
		PublicToken:    sent.PublicToken,
		CustomerName:   customer.Name,
		CustomerEmail:  customer.Email,
		Actor:          actor.Label(),
	})
	return toInvoiceResponse(sent), nil
}

// MarkInvoicePaid records that the customer settled the invoice. Marking a
// paid invoice again changes nothing.
func (s *Service) MarkInvoicePaid(ctx context.Context, bookingID, invoiceID string, actor Actor) (transport.InvoiceResponse, error) {
	members, err := s.listStaff(ctx)
	if err != nil {
		return transport.InvoiceResponse{}, err
	}

	var paid domain.Invoice
	changed := false
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		b, err := loadEditableBooking(ctx, tx, bookingID, actor, members)
		if err != nil {
			return err
		}
		inv, err := loadInvoice(ctx, tx, b.ID, invoiceID)
		if err != nil {
			return err
		}
		paid = inv
		if inv.Status == domain.InvoicePaid {
			return nil
		}

		now := s.clock()
		inv.Status = domain.InvoicePaid
		inv.PaidAt = &now
		inv.UpdatedAt = now
		if err := tx.PutInvoice(ctx, inv); err != nil {
			return err
		}
		paid, changed = inv, true
		detail := fmt.Sprintf("Invoice %s paid: %s %d", inv.Number, inv.Currency, inv.DueAmountCents)
		return tx.AppendActivity(ctx, newActivity(b.ID, domain.ActivityInvoicePaid, actor.Label(), detail, now))
	})
	if err != nil {
		return transport.InvoiceResponse{}, err
	}

	if changed {
		s.publish(ctx, events.BookingInvoicePaid{
			BaseEvent:      events.NewBaseEvent(),
			BookingID:      paid.BookingID,
			InvoiceID:      paid.ID,
			Number:         paid.Number,
			Currency:       paid.Currency,
			DueAmountCents: paid.DueAmountCents,
			PaidAt:         *paid.PaidAt,
			Actor:          actor.Label(),
		})
	}
	return toInvoiceResponse(paid), nil
}

// GetPublicInvoice returns the customer view of a sent or paid invoice.
// Drafts are not visible through the link.
func (s *Service) GetPublicInvoice(ctx context.Context, token string) (transport.PublicInvoiceResponse, error) {
	var resp transport.PublicInvoiceResponse
	err := s.store.View(ctx, func(tx repository.Tx) error {
		inv, err := tx.FindInvoiceByToken(ctx, strings.TrimSpace(token))
		if errors.Is(err, repository.ErrNotFound) || (err == nil && inv.Status == domain.InvoiceStatusDraft) {
			return apperr.NotFound(msgInvoiceNotFound)
		}
		if err != nil {
			return err
		}
		b, err := tx.GetBooking(ctx, inv.BookingID)
		if err != nil {
			return fmt.Errorf("load booking %s: %w", inv.BookingID, err)
		}
		customer, err := tx.GetCustomer(ctx, inv.CustomerID)
		if err != nil {
			return fmt.Errorf("load customer %s: %w", inv.CustomerID, err)
		}
		resp = toPublicInvoiceResponse(inv, b, customer)
		return nil
	})
	return resp, err
}

func loadEditableBooking(ctx context.Context, tx repository.BookingReader, id string, actor Actor, members []domain.StaffMember) (domain.Booking, error) {
	b, err := loadBooking(ctx, tx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if !roles.CanEditBooking(actor, owns(members, actor, b)) {
		return domain.Booking{}, apperr.Forbidden(msgForbidden)
	}
	return b, nil
}

// loadInvoice treats an invoice of another booking as missing.
func loadInvoice(ctx context.Context, tx repository.InvoiceReader, bookingID, id string) (domain.Invoice, error) {
	inv, err := tx.GetInvoice(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && inv.BookingID != bookingID) {
		return domain.Invoice{}, apperr.NotFound(msgInvoiceNotFound)
	}
	return inv, err
}

func numberTaken(all []domain.Invoice, inv domain.Invoice) bool {
	for _, other := range all {
		if other.ID != inv.ID && strings.EqualFold(other.Number, inv.Number) {
			return true
		}
	}
	return false
}

// fieldError turns a domain field failure into a validation error naming the field.
func fieldError(op string, err error) error {
	var perr *domain.PricingError
	if errors.As(err, &perr) {
		return apperr.Validation(perr.Error()).
			WithOp(op).
			WithDetails(map[string]string{"field": perr.Field, "message": perr.Message})
	}
	return apperr.Validation(err.Error()).WithOp(op)
}

func invoiceDraft(req transport.InvoiceRequest) domain.InvoiceDraft {
	items := make([]domain.InvoiceItem, 0, len(req.Items))
	for _, line := range req.Items {
		items = append(items, domain.InvoiceItem{
			ID:              line.ID,
			Description:     sanitize.Text(line.Description),
			Quantity:        line.Quantity,
			UnitAmountCents: line.UnitAmountCents,
		})
	}
	return domain.InvoiceDraft{
		Number:         req.Number,
		Currency:       req.Currency,
		IssueDate:      req.IssueDate,
		DueDate:        req.DueDate,
		Title:          sanitize.Text(req.Title),
		Notes:          sanitize.Text(req.Notes),
		Items:          items,
		DueAmountCents: req.DueAmountCents,
	}
}
