package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// InvoiceNumberPrefix starts every generated invoice number.
const InvoiceNumberPrefix = "INV-"

// MaxInvoiceItems bounds the line items of one invoice.
const MaxInvoiceItems = 100

// MaxInvoiceQuantity bounds the quantity of one line item.
const MaxInvoiceQuantity int64 = 1000

// InvoiceStatus is where an invoice is in its life cycle.
type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "DRAFT"
	InvoiceSent        InvoiceStatus = "SENT"
	InvoicePaid        InvoiceStatus = "PAID"
)

var invoiceNumberPattern = regexp.MustCompile(`^` + InvoiceNumberPrefix + `(\d+)$`)

// InvoiceItem is one line of an invoice. TotalAmountCents is quantity times unit amount.
type InvoiceItem struct {
	ID               string `json:"id"`
	Description      string `json:"description"`
	Quantity         int64  `json:"quantity"`
	UnitAmountCents  int64  `json:"unit_amount_cents"`
	TotalAmountCents int64  `json:"total_amount_cents"`
}

// Invoice is a customer-facing bill for a booking. Money is integer minor units.
type Invoice struct {
	ID               string        `json:"id"`
	BookingID        string        `json:"booking_id"`
	CustomerID       string        `json:"customer_id"`
	Number           string        `json:"number"`
	Version          int           `json:"version"`
	Status           InvoiceStatus `json:"status"`
	Currency         string        `json:"currency"`
	IssueDate        string        `json:"issue_date"`
	DueDate          *string       `json:"due_date"`
	Title            string        `json:"title"`
	Notes            string        `json:"notes"`
	Items            []InvoiceItem `json:"items"`
	TotalAmountCents int64         `json:"total_amount_cents"`
	DueAmountCents   int64         `json:"due_amount_cents"`
	PublicToken      string        `json:"public_token"`
	SentAt           *time.Time    `json:"sent_at"`
	PaidAt           *time.Time    `json:"paid_at"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Clone returns a deep copy.
func (inv Invoice) Clone() Invoice {
	inv.Items = slices.Clone(inv.Items)
	if inv.Items == nil {
		inv.Items = []InvoiceItem{}
	}
	inv.DueDate = clonePtr(inv.DueDate)
	inv.SentAt = clonePtr(inv.SentAt)
	inv.PaidAt = clonePtr(inv.PaidAt)
	return inv
}

// InvoiceDraft is the editable part of an invoice as submitted by staff.
// Empty text and nil pointers mean "use the default" on create and "keep" on update,
// except Notes and DueDate which are always replaced.
type InvoiceDraft struct {
	Number         string
	Currency       string
	IssueDate      string
	DueDate        *string
	Title          string
	Notes          string
	Items          []InvoiceItem
	DueAmountCents *int64
}

// NewInvoiceID returns a fresh invoice id.
func NewInvoiceID() string { return NewPricingItemID("inv") }

// NewInvoiceToken returns an unguessable token for the public invoice link.
func NewInvoiceToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate invoice token: %w", err)
	}
	return "inv_" + hex.EncodeToString(b), nil
}

// NextInvoiceNumber returns the generated number following the highest one in use.
// Numbers that do not follow the generated pattern are ignored.
func NextInvoiceNumber(existing []Invoice) string {
	var highest int64
	for _, inv := range existing {
		m := invoiceNumberPattern.FindStringSubmatch(inv.Number)
		if m == nil {
			continue
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%06d", InvoiceNumberPrefix, highest+1)
}

// NormalizeInvoiceItems trims the submitted lines and derives their totals.
// Lines without a description or with a zero unit amount are dropped; a
// quantity below one counts as one. Negative or oversized values are errors.
func NormalizeInvoiceItems(items []InvoiceItem, newID func(prefix string) string) ([]InvoiceItem, error) {
	if len(items) > MaxInvoiceItems {
		return nil, pricingErr("items", "must have at most %d items", MaxInvoiceItems)
	}
	out := make([]InvoiceItem, 0, len(items))
	for i, item := range items {
		field := fmt.Sprintf("items[%d]", i)
		if err := checkAmount(field+".unit_amount_cents", item.UnitAmountCents); err != nil {
			return nil, err
		}
		if item.Quantity > MaxInvoiceQuantity {
			return nil, pricingErr(field+".quantity", "must not exceed %d", MaxInvoiceQuantity)
		}
		item.Description = strings.TrimSpace(item.Description)
		if item.Description == "" || item.UnitAmountCents == 0 {
			continue
		}
		item.Quantity = max(item.Quantity, 1)
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			item.ID = newID("inv_item")
		}
		item.TotalAmountCents = item.Quantity * item.UnitAmountCents
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil, pricingErr("items", "at least one item needs a description and an amount")
	}
	return out, nil
}

// InvoiceTotal sums the line totals.
func InvoiceTotal(items []InvoiceItem) int64 {
	var total int64
	for _, item := range items {
		total += item.TotalAmountCents
	}
	return total
}

// InvoiceItemsFromPricing bills every pending scheduled payment at its gross amount.
func InvoiceItemsFromPricing(p Pricing) []InvoiceItem {
	items := make([]InvoiceItem, 0, len(p.Payments))
	for _, pay := range p.Payments {
		if pay.Status != PaymentPending || pay.GrossAmountCents <= 0 {
			continue
		}
		items = append(items, InvoiceItem{
			Description:     pay.Label,
			Quantity:        1,
			UnitAmountCents: pay.GrossAmountCents,
		})
	}
	return items
}

// ApplyInvoiceDraft validates draft and applies it to inv. Items replace the
// current lines only when the draft has some; the due amount defaults to the total.
func ApplyInvoiceDraft(inv Invoice, draft InvoiceDraft, newID func(prefix string) string) (Invoice, error) {
	out := inv.Clone()

	if currency := strings.ToUpper(strings.TrimSpace(draft.Currency)); currency != "" {
		if !currencyPattern.MatchString(currency) {
			return Invoice{}, pricingErr("currency", "must be a three-letter ISO 4217 code")
		}
		out.Currency = currency
	}
	if out.Currency == "" {
		out.Currency = DefaultCurrency
	}
	if issue := strings.TrimSpace(draft.IssueDate); issue != "" {
		if _, err := time.Parse(time.DateOnly, issue); err != nil {
			return Invoice{}, pricingErr("issue_date", "must be a date in YYYY-MM-DD format")
		}
		out.IssueDate = issue
	}
	out.DueDate = nil
	if draft.DueDate != nil {
		if due := strings.TrimSpace(*draft.DueDate); due != "" {
			if _, err := time.Parse(time.DateOnly, due); err != nil {
				return Invoice{}, pricingErr("due_date", "must be a date in YYYY-MM-DD format")
			}
			out.DueDate = &due
		}
	}
	if number := strings.TrimSpace(draft.Number); number != "" {
		out.Number = number
	}
	if title := strings.TrimSpace(draft.Title); title != "" {
		out.Title = title
	}
	out.Notes = strings.TrimSpace(draft.Notes)

	if len(draft.Items) > 0 || len(out.Items) == 0 {
		items, err := NormalizeInvoiceItems(draft.Items, newID)
		if err != nil {
			return Invoice{}, err
		}
		out.Items = items
	}
	out.TotalAmountCents = InvoiceTotal(out.Items)
	out.DueAmountCents = out.TotalAmountCents
	if draft.DueAmountCents != nil {
		due := *draft.DueAmountCents
		if due < 0 || due > out.TotalAmountCents {
			return Invoice{}, pricingErr("due_amount_cents", "must be between 0 and the invoice total")
		}
		out.DueAmountCents = due
	}
	return out, nil
}
