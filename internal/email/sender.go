// Package email renders and delivers staff notification emails.
package email

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"travelplan_backend/platform/config"

	"golang.org/x/text/currency"
)

// BookingNotice is what a staff notification needs to know about a booking.
type BookingNotice struct {
	StaffName   string
	BookingID   string
	Destination string
	Stage       string
	DueAt       *time.Time
	BookingURL  string
}

// InvoiceNotice is what the customer invoice email shows.
type InvoiceNotice struct {
	CustomerName   string
	Number         string
	Title          string
	Currency       string
	DueAmountCents int64
	DueDate        *string
	InvoiceURL     string
}

type Sender interface {
	SendBookingAssignedEmail(ctx context.Context, toEmail string, notice BookingNotice) error
	SendSLABreachedEmail(ctx context.Context, toEmail string, notice BookingNotice) error
	SendInvoiceEmail(ctx context.Context, toEmail string, notice InvoiceNotice) error
}

// NoopSender drops every email. It is used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendBookingAssignedEmail(ctx context.Context, toEmail string, notice BookingNotice) error {
	return nil
}

func (NoopSender) SendSLABreachedEmail(ctx context.Context, toEmail string, notice BookingNotice) error {
	return nil
}

func (NoopSender) SendInvoiceEmail(ctx context.Context, toEmail string, notice InvoiceNotice) error {
	return nil
}

// NewSender returns an SMTP sender, or NoopSender when email is disabled.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	), nil
}

func formatDue(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("Mon 2 Jan 2006 15:04 MST")
}

func bookingData(title string, notice BookingNotice) bookingEmailData {
	return bookingEmailData{
		baseEmailData: baseEmailData{
			Title:    title,
			Heading:  title,
			CTALabel: "Open booking",
			CTAURL:   notice.BookingURL,
		},
		StaffName:   notice.StaffName,
		BookingID:   notice.BookingID,
		Destination: notice.Destination,
		Stage:       notice.Stage,
		DueAt:       formatDue(notice.DueAt),
	}
}

// formatAmount renders minor units with the number of decimals the currency uses.
func formatAmount(minor int64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return fmt.Sprintf("%d %s", minor, code)
	}
	scale, _ := currency.Standard.Rounding(unit)
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	digits := strconv.FormatInt(minor, 10)
	if scale > 0 {
		for len(digits) <= scale {
			digits = "0" + digits
		}
		digits = digits[:len(digits)-scale] + "." + digits[len(digits)-scale:]
	}
	return unit.String() + " " + sign + digits
}

func invoiceData(notice InvoiceNotice) invoiceEmailData {
	title := notice.Title
	if title == "" {
		title = "Invoice " + notice.Number
	}
	name := notice.CustomerName
	if name == "" {
		name = "there"
	}
	due := ""
	if notice.DueDate != nil {
		due = *notice.DueDate
	}
	return invoiceEmailData{
		baseEmailData: baseEmailData{
			Title:      title,
			Heading:    title,
			Subheading: notice.Number,
			CTALabel:   "View invoice",
			CTAURL:     notice.InvoiceURL,
		},
		CustomerName: name,
		Number:       notice.Number,
		Amount:       formatAmount(notice.DueAmountCents, notice.Currency),
		DueDate:      due,
	}
}
