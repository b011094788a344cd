package domain

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

// DefaultCurrency is used when neither the draft nor the booking names one.
const DefaultCurrency = "USD"

// MaxTaxRateBasisPoints is 100%.
const MaxTaxRateBasisPoints = 10000

// MaxAmountCents bounds every submitted amount so that tax products and
// summary totals stay well inside int64.
const MaxAmountCents int64 = 10_000_000_000_000

// MaxPricingItems bounds the adjustments and the payments of one booking.
const MaxPricingItems = 100

// AdjustmentType classifies a change to the agreed price.
type AdjustmentType string

const (
	AdjustmentDiscount  AdjustmentType = "DISCOUNT"
	AdjustmentCredit    AdjustmentType = "CREDIT"
	AdjustmentSurcharge AdjustmentType = "SURCHARGE"
)

// PaymentStatus is the settlement state of a scheduled payment.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Adjustment modifies the agreed net amount. DISCOUNT and CREDIT subtract, SURCHARGE adds.
type Adjustment struct {
	ID          string         `json:"id"`
	Type        AdjustmentType `json:"type"`
	Label       string         `json:"label"`
	AmountCents int64          `json:"amount_cents"`
	Notes       string         `json:"notes,omitempty"`
}

// ScheduledPayment is one installment of the payment plan.
type ScheduledPayment struct {
	ID                 string        `json:"id"`
	Label              string        `json:"label"`
	DueDate            *string       `json:"due_date"`
	NetAmountCents     int64         `json:"net_amount_cents"`
	TaxRateBasisPoints int64         `json:"tax_rate_basis_points"`
	TaxAmountCents     int64         `json:"tax_amount_cents"`
	GrossAmountCents   int64         `json:"gross_amount_cents"`
	Status             PaymentStatus `json:"status"`
	PaidAt             *time.Time    `json:"paid_at"`
	Notes              string        `json:"notes,omitempty"`
}

// PricingSummary is derived from the agreed amount, adjustments and payments.
type PricingSummary struct {
	AgreedNetAmountCents        int64 `json:"agreed_net_amount_cents"`
	AdjustmentsDeltaCents       int64 `json:"adjustments_delta_cents"`
	AdjustedNetAmountCents      int64 `json:"adjusted_net_amount_cents"`
	ScheduledNetAmountCents     int64 `json:"scheduled_net_amount_cents"`
	UnscheduledNetAmountCents   int64 `json:"unscheduled_net_amount_cents"`
	ScheduledTaxAmountCents     int64 `json:"scheduled_tax_amount_cents"`
	ScheduledGrossAmountCents   int64 `json:"scheduled_gross_amount_cents"`
	PaidGrossAmountCents        int64 `json:"paid_gross_amount_cents"`
	OutstandingGrossAmountCents int64 `json:"outstanding_gross_amount_cents"`
	IsScheduleBalanced          bool  `json:"is_schedule_balanced"`
}

// Pricing is the commercial state of a booking. All money is integer minor units.
type Pricing struct {
	Currency             string             `json:"currency"`
	AgreedNetAmountCents int64              `json:"agreed_net_amount_cents"`
	Adjustments          []Adjustment       `json:"adjustments"`
	Payments             []ScheduledPayment `json:"payments"`
	Summary              PricingSummary     `json:"summary"`
}

// EmptyPricing is the pricing every new booking starts with.
func EmptyPricing() Pricing {
	p := Pricing{
		Currency:    DefaultCurrency,
		Adjustments: []Adjustment{},
		Payments:    []ScheduledPayment{},
	}
	p.Summary = ComputeSummary(p)
	return p
}

// Clone returns a deep copy.
func (p Pricing) Clone() Pricing {
	p.Adjustments = slices.Clone(p.Adjustments)
	payments := make([]ScheduledPayment, len(p.Payments))
	for i, pay := range p.Payments {
		pay.DueDate = clonePtr(pay.DueDate)
		pay.PaidAt = clonePtr(pay.PaidAt)
		payments[i] = pay
	}
	p.Payments = payments
	if p.Adjustments == nil {
		p.Adjustments = []Adjustment{}
	}
	return p
}

// TaxForNet rounds net*bps/10000 half away from zero.
func TaxForNet(netCents, basisPoints int64) int64 {
	product := netCents * basisPoints
	if product >= 0 {
		return (product + MaxTaxRateBasisPoints/2) / MaxTaxRateBasisPoints
	}
	return -((-product + MaxTaxRateBasisPoints/2) / MaxTaxRateBasisPoints)
}

// ComputeSummary derives the summary from the agreed amount, adjustments and payments.
// Payment tax and gross amounts are expected to be normalized already.
func ComputeSummary(p Pricing) PricingSummary {
	s := PricingSummary{AgreedNetAmountCents: p.AgreedNetAmountCents}
	for _, adj := range p.Adjustments {
		switch adj.Type {
		case AdjustmentSurcharge:
			s.AdjustmentsDeltaCents += adj.AmountCents
		case AdjustmentDiscount, AdjustmentCredit:
			s.AdjustmentsDeltaCents -= adj.AmountCents
		}
	}
	s.AdjustedNetAmountCents = s.AgreedNetAmountCents + s.AdjustmentsDeltaCents

	for _, pay := range p.Payments {
		s.ScheduledNetAmountCents += pay.NetAmountCents
		s.ScheduledTaxAmountCents += pay.TaxAmountCents
		s.ScheduledGrossAmountCents += pay.GrossAmountCents
		if pay.Status == PaymentPaid {
			s.PaidGrossAmountCents += pay.GrossAmountCents
		}
	}
	s.UnscheduledNetAmountCents = s.AdjustedNetAmountCents - s.ScheduledNetAmountCents
	s.OutstandingGrossAmountCents = s.ScheduledGrossAmountCents - s.PaidGrossAmountCents
	s.IsScheduleBalanced = s.ScheduledNetAmountCents == s.AdjustedNetAmountCents
	return s
}

// PricingError names the first invalid field of a pricing draft.
type PricingError struct {
	Field   string
	Message string
}

func (e *PricingError) Error() string {
	return e.Field + ": " + e.Message
}

func pricingErr(field, format string, args ...any) error {
	return &PricingError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidatePricing checks a draft and returns the first failure.
func ValidatePricing(p Pricing) error {
	return validatePricing(p, nil)
}

// ParsePricing applies the raw paid_at text of each payment, aligned by index,
// to a copy of draft and validates the result. Blank text means unset.
// Failures are reported in field order, paid_at included.
func ParsePricing(draft Pricing, rawPaidAt []*string) (Pricing, error) {
	p := draft.Clone()
	err := validatePricing(p, func(i int, pay *ScheduledPayment, field string) error {
		pay.PaidAt = nil
		if i >= len(rawPaidAt) || rawPaidAt[i] == nil {
			return nil
		}
		raw := strings.TrimSpace(*rawPaidAt[i])
		if raw == "" {
			return nil
		}
		paidAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return pricingErr(field+".paid_at", "must be an RFC 3339 timestamp")
		}
		pay.PaidAt = &paidAt
		return nil
	})
	if err != nil {
		return Pricing{}, err
	}
	return p, nil
}

func validatePricing(p Pricing, setPaidAt func(i int, pay *ScheduledPayment, field string) error) error {
	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if currency != "" && !currencyPattern.MatchString(currency) {
		return pricingErr("currency", "must be a three-letter ISO 4217 code")
	}
	if err := checkAmount("agreed_net_amount_cents", p.AgreedNetAmountCents); err != nil {
		return err
	}
	if len(p.Adjustments) > MaxPricingItems {
		return pricingErr("adjustments", "must have at most %d items", MaxPricingItems)
	}
	for i, adj := range p.Adjustments {
		field := fmt.Sprintf("adjustments[%d]", i)
		switch adj.Type {
		case AdjustmentDiscount, AdjustmentCredit, AdjustmentSurcharge:
		default:
			return pricingErr(field+".type", "must be one of DISCOUNT, CREDIT, SURCHARGE")
		}
		if strings.TrimSpace(adj.Label) == "" {
			return pricingErr(field+".label", "is required")
		}
		if err := checkAmount(field+".amount_cents", adj.AmountCents); err != nil {
			return err
		}
	}
	if len(p.Payments) > MaxPricingItems {
		return pricingErr("payments", "must have at most %d items", MaxPricingItems)
	}
	for i := range p.Payments {
		pay := &p.Payments[i]
		field := fmt.Sprintf("payments[%d]", i)
		if strings.TrimSpace(pay.Label) == "" {
			return pricingErr(field+".label", "is required")
		}
		if err := checkAmount(field+".net_amount_cents", pay.NetAmountCents); err != nil {
			return err
		}
		if pay.TaxRateBasisPoints < 0 || pay.TaxRateBasisPoints > MaxTaxRateBasisPoints {
			return pricingErr(field+".tax_rate_basis_points", "must be between 0 and %d", MaxTaxRateBasisPoints)
		}
		if pay.DueDate != nil && *pay.DueDate != "" {
			if _, err := time.Parse(time.DateOnly, *pay.DueDate); err != nil {
				return pricingErr(field+".due_date", "must be a date in YYYY-MM-DD format")
			}
		}
		switch pay.Status {
		case PaymentPending, PaymentPaid:
		default:
			return pricingErr(field+".status", "must be PENDING or PAID")
		}
		if setPaidAt != nil {
			if err := setPaidAt(i, pay, field); err != nil {
				return err
			}
		}
		if pay.Status == PaymentPaid && pay.PaidAt == nil {
			return pricingErr(field+".paid_at", "is required when status is PAID")
		}
	}
	return nil
}

func checkAmount(field string, cents int64) error {
	if cents < 0 {
		return pricingErr(field, "must be zero or positive")
	}
	if cents > MaxAmountCents {
		return pricingErr(field, "must not exceed %d", MaxAmountCents)
	}
	return nil
}

// NormalizePricing returns a canonical copy of a validated draft: trimmed text,
// default currency, ids assigned, tax and gross derived and the summary recomputed.
// Missing ids are filled by newID(prefix).
func NormalizePricing(p Pricing, fallbackCurrency string, newID func(prefix string) string) Pricing {
	out := p.Clone()
	out.Currency = strings.ToUpper(strings.TrimSpace(out.Currency))
	if out.Currency == "" {
		out.Currency = strings.ToUpper(strings.TrimSpace(fallbackCurrency))
	}
	if out.Currency == "" {
		out.Currency = DefaultCurrency
	}

	for i := range out.Adjustments {
		adj := &out.Adjustments[i]
		if strings.TrimSpace(adj.ID) == "" {
			adj.ID = newID("adj")
		}
		adj.Label = strings.TrimSpace(adj.Label)
		adj.Notes = strings.TrimSpace(adj.Notes)
	}

	for i := range out.Payments {
		pay := &out.Payments[i]
		if strings.TrimSpace(pay.ID) == "" {
			pay.ID = newID("pay")
		}
		pay.Label = strings.TrimSpace(pay.Label)
		pay.Notes = strings.TrimSpace(pay.Notes)
		if pay.DueDate != nil && *pay.DueDate == "" {
			pay.DueDate = nil
		}
		if pay.Status == PaymentPending {
			pay.PaidAt = nil
		}
		if pay.PaidAt != nil {
			utc := pay.PaidAt.UTC()
			pay.PaidAt = &utc
		}
		pay.TaxAmountCents = TaxForNet(pay.NetAmountCents, pay.TaxRateBasisPoints)
		pay.GrossAmountCents = pay.NetAmountCents + pay.TaxAmountCents
	}

	out.Summary = ComputeSummary(out)
	return out
}
