package service

import (
	"slices"

	"travelplan_backend/internal/bookings/domain"
	"travelplan_backend/internal/bookings/transport"
)

// ToBookingResponse maps a booking to its API shape. The idempotency key stays internal.
func ToBookingResponse(b domain.Booking) transport.BookingResponse {
	return transport.BookingResponse{
		ID:          b.ID,
		CustomerID:  b.CustomerID,
		Stage:       string(b.Stage),
		OwnerID:     b.OwnerID,
		OwnerName:   b.OwnerName,
		SLADueAt:    b.SLADueAt,
		Destination: b.Destination,
		Style:       b.Style,
		TravelMonth: b.TravelMonth,
		Travelers:   b.Travelers,
		Duration:    b.Duration,
		Budget:      b.Budget,
		Notes:       b.Notes,
		Source:      transport.SourceResponse(b.Source),
		BookingHash: b.BookingHash,
		Pricing:     toPricingResponse(b.Pricing),
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func toBookingResponses(items []domain.Booking) []transport.BookingResponse {
	out := make([]transport.BookingResponse, 0, len(items))
	for _, b := range items {
		out = append(out, ToBookingResponse(b))
	}
	return out
}

func toPricingResponse(p domain.Pricing) transport.PricingResponse {
	adjustments := make([]transport.AdjustmentResponse, 0, len(p.Adjustments))
	for _, a := range p.Adjustments {
		adjustments = append(adjustments, transport.AdjustmentResponse{
			ID:          a.ID,
			Type:        string(a.Type),
			Label:       a.Label,
			AmountCents: a.AmountCents,
			Notes:       a.Notes,
		})
	}
	payments := make([]transport.PaymentResponse, 0, len(p.Payments))
	for _, pay := range p.Payments {
		payments = append(payments, transport.PaymentResponse{
			ID:                 pay.ID,
			Label:              pay.Label,
			DueDate:            pay.DueDate,
			NetAmountCents:     pay.NetAmountCents,
			TaxRateBasisPoints: pay.TaxRateBasisPoints,
			TaxAmountCents:     pay.TaxAmountCents,
			GrossAmountCents:   pay.GrossAmountCents,
			Status:             string(pay.Status),
			PaidAt:             pay.PaidAt,
			Notes:              pay.Notes,
		})
	}
	return transport.PricingResponse{
		Currency:             p.Currency,
		AgreedNetAmountCents: p.AgreedNetAmountCents,
		Adjustments:          adjustments,
		Payments:             payments,
		Summary:              transport.PricingSummaryResponse(p.Summary),
	}
}

// ToCustomerResponse maps a customer to its API shape.
func ToCustomerResponse(c domain.Customer) transport.CustomerResponse {
	tags := slices.Clone(c.Tags)
	if tags == nil {
		tags = []string{}
	}
	return transport.CustomerResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Language:  c.Language,
		Tags:      tags,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toActivityResponse(a domain.Activity) transport.ActivityResponse {
	return transport.ActivityResponse{
		ID:        a.ID,
		BookingID: a.BookingID,
		Type:      string(a.Type),
		Actor:     a.Actor,
		Detail:    a.Detail,
		CreatedAt: a.CreatedAt,
	}
}

// draftToPricing converts an API draft into the domain shape before validation.
// draftToPricing returns the draft and the raw paid_at text of each payment.
func draftToPricing(d transport.PricingDraft) (domain.Pricing, []*string) {
	p := domain.Pricing{
		Currency:             d.Currency,
		AgreedNetAmountCents: d.AgreedNetAmountCents,
		Adjustments:          make([]domain.Adjustment, 0, len(d.Adjustments)),
		Payments:             make([]domain.ScheduledPayment, 0, len(d.Payments)),
	}
	paidAt := make([]*string, 0, len(d.Payments))
	for _, a := range d.Adjustments {
		p.Adjustments = append(p.Adjustments, domain.Adjustment{
			ID:          a.ID,
			Type:        domain.AdjustmentType(a.Type),
			Label:       a.Label,
			AmountCents: a.AmountCents,
			Notes:       a.Notes,
		})
	}
	for _, pay := range d.Payments {
		p.Payments = append(p.Payments, domain.ScheduledPayment{
			ID:                 pay.ID,
			Label:              pay.Label,
			DueDate:            pay.DueDate,
			NetAmountCents:     pay.NetAmountCents,
			TaxRateBasisPoints: pay.TaxRateBasisPoints,
			Status:             domain.PaymentStatus(pay.Status),
			Notes:              pay.Notes,
		})
		paidAt = append(paidAt, pay.PaidAt)
	}
	return p, paidAt
}

func toInvoiceItemResponses(items []domain.InvoiceItem) []transport.InvoiceItemResponse {
	out := make([]transport.InvoiceItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, transport.InvoiceItemResponse(item))
	}
	return out
}

func toInvoiceResponse(inv domain.Invoice) transport.InvoiceResponse {
	return transport.InvoiceResponse{
		ID:               inv.ID,
		BookingID:        inv.BookingID,
		CustomerID:       inv.CustomerID,
		Number:           inv.Number,
		Version:          inv.Version,
		Status:           string(inv.Status),
		Currency:         inv.Currency,
		IssueDate:        inv.IssueDate,
		DueDate:          inv.DueDate,
		Title:            inv.Title,
		Notes:            inv.Notes,
		Items:            toInvoiceItemResponses(inv.Items),
		TotalAmountCents: inv.TotalAmountCents,
		DueAmountCents:   inv.DueAmountCents,
		PublicToken:      inv.PublicToken,
		SentAt:           inv.SentAt,
		PaidAt:           inv.PaidAt,
		CreatedAt:        inv.CreatedAt,
		UpdatedAt:        inv.UpdatedAt,
	}
}

func toPublicInvoiceResponse(inv domain.Invoice, b domain.Booking, c domain.Customer) transport.PublicInvoiceResponse {
	return transport.PublicInvoiceResponse{
		Number:           inv.Number,
		Status:           string(inv.Status),
		Currency:         inv.Currency,
		IssueDate:        inv.IssueDate,
		DueDate:          inv.DueDate,
		Title:            inv.Title,
		Notes:            inv.Notes,
		CustomerName:     c.Name,
		Destination:      b.Destination,
		Items:            toInvoiceItemResponses(inv.Items),
		TotalAmountCents: inv.TotalAmountCents,
		DueAmountCents:   inv.DueAmountCents,
		PaidAt:           inv.PaidAt,
	}
}
