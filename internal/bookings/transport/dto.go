// Package transport holds the request and response shapes of the bookings API.
package transport

import "time"

// CreateLeadRequest is the public website form. Required fields are checked
// again after trimming by the service.
type CreateLeadRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,max=320"`
	Phone       string `json:"phone" validate:"omitempty,max=40"`
	Language    string `json:"language" validate:"omitempty,max=40"`
	Destination string `json:"destination" validate:"required,max=120"`
	Style       string `json:"style" validate:"required,max=120"`
	TravelMonth string `json:"travel_month" validate:"required,max=40"`
	Travelers   int    `json:"travelers" validate:"required,min=1,max=30"`
	Duration    string `json:"duration" validate:"required,max=60"`
	Budget      string `json:"budget" validate:"omitempty,max=60"`
	Notes       string `json:"notes" validate:"omitempty,max=5000"`
	PageURL     string `json:"page_url" validate:"omitempty,max=2048"`
	Referrer    string `json:"referrer" validate:"omitempty,max=2048"`
	UTMSource   string `json:"utm_source" validate:"omitempty,max=200"`
	UTMMedium   string `json:"utm_medium" validate:"omitempty,max=200"`
	UTMCampaign string `json:"utm_campaign" validate:"omitempty,max=200"`

	// Set by the handler, not the client.
	IPAddress      string `json:"-"`
	IPCountryGuess string `json:"-"`
}

type CreateLeadResponse struct {
	BookingID       string     `json:"booking_id"`
	CustomerID      string     `json:"customer_id"`
	Status          string     `json:"status"`
	Deduplicated    bool       `json:"deduplicated"`
	CustomerMatched bool       `json:"customer_matched"`
	Owner           *string    `json:"owner"`
	SLADueAt        *time.Time `json:"sla_due_at"`
	NextStepMessage string     `json:"next_step_message,omitempty"`
	Message         string     `json:"message,omitempty"`
}

type ChangeStageRequest struct {
	Stage       string `json:"stage" validate:"required,max=40"`
	BookingHash string `json:"booking_hash" validate:"required"`
}

// ChangeOwnerRequest unassigns the booking when OwnerID is null or empty.
type ChangeOwnerRequest struct {
	OwnerID     *string `json:"owner_id" validate:"omitempty,max=120"`
	BookingHash string  `json:"booking_hash" validate:"required"`
}

type ChangeNotesRequest struct {
	Notes       string `json:"notes" validate:"max=20000"`
	BookingHash string `json:"booking_hash" validate:"required"`
}

type ChangePricingRequest struct {
	Pricing     PricingDraft `json:"pricing"`
	BookingHash string       `json:"booking_hash" validate:"required"`
}

// PricingDraft carries size limits only. Field rules are checked in order by
// the domain so that a rejected edit names its first failing field.
type PricingDraft struct {
	Currency             string            `json:"currency" validate:"max=16"`
	AgreedNetAmountCents int64             `json:"agreed_net_amount_cents"`
	Adjustments          []AdjustmentDraft `json:"adjustments" validate:"max=100,dive"`
	Payments             []PaymentDraft    `json:"payments" validate:"max=100,dive"`
}

type AdjustmentDraft struct {
	ID          string `json:"id" validate:"max=80"`
	Type        string `json:"type" validate:"max=40"`
	Label       string `json:"label" validate:"max=200"`
	AmountCents int64  `json:"amount_cents"`
	Notes       string `json:"notes" validate:"max=2000"`
}

type PaymentDraft struct {
	ID                 string  `json:"id" validate:"max=80"`
	Label              string  `json:"label" validate:"max=200"`
	DueDate            *string `json:"due_date" validate:"omitempty,max=40"`
	NetAmountCents     int64   `json:"net_amount_cents"`
	TaxRateBasisPoints int64   `json:"tax_rate_basis_points"`
	Status             string  `json:"status" validate:"max=20"`
	PaidAt             *string `json:"paid_at" validate:"omitempty,max=64"`
	Notes              string  `json:"notes" validate:"max=2000"`
}

type CreateActivityRequest struct {
	Type   string `json:"type" validate:"required,max=40"`
	Detail string `json:"detail" validate:"max=5000"`
}

// ListBookingsRequest is bound from the query string.
type ListBookingsRequest struct {
	Stage    string `form:"stage"`
	OwnerID  string `form:"owner_id"`
	Search   string `form:"search" validate:"max=200"`
	Sort     string `form:"sort" validate:"omitempty,oneof=created_at_desc created_at_asc updated_at_desc sla_due_at_asc sla_due_at_desc"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=100"`
}

type ListCustomersRequest struct {
	Search   string `form:"search" validate:"max=200"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=100"`
}

type SourceResponse struct {
	PageURL        string `json:"page_url,omitempty"`
	Referrer       string `json:"referrer,omitempty"`
	UTMSource      string `json:"utm_source,omitempty"`
	UTMMedium      string `json:"utm_medium,omitempty"`
	UTMCampaign    string `json:"utm_campaign,omitempty"`
	IPAddress      string `json:"ip_address,omitempty"`
	IPCountryGuess string `json:"ip_country_guess,omitempty"`
}

type AdjustmentResponse struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Label       string `json:"label"`
	AmountCents int64  `json:"amount_cents"`
	Notes       string `json:"notes,omitempty"`
}

type PaymentResponse struct {
	ID                 string     `json:"id"`
	Label              string     `json:"label"`
	DueDate            *string    `json:"due_date"`
	NetAmountCents     int64      `json:"net_amount_cents"`
	TaxRateBasisPoints int64      `json:"tax_rate_basis_points"`
	TaxAmountCents     int64      `json:"tax_amount_cents"`
	GrossAmountCents   int64      `json:"gross_amount_cents"`
	Status             string     `json:"status"`
	PaidAt             *time.Time `json:"paid_at"`
	Notes              string     `json:"notes,omitempty"`
}

type PricingSummaryResponse struct {
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

type PricingResponse struct {
	Currency             string                 `json:"currency"`
	AgreedNetAmountCents int64                  `json:"agreed_net_amount_cents"`
	Adjustments          []AdjustmentResponse   `json:"adjustments"`
	Payments             []PaymentResponse      `json:"payments"`
	Summary              PricingSummaryResponse `json:"summary"`
}

type BookingResponse struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customer_id"`
	Stage       string          `json:"stage"`
	OwnerID     *string         `json:"owner_id"`
	OwnerName   *string         `json:"owner_name"`
	SLADueAt    *time.Time      `json:"sla_due_at"`
	Destination string          `json:"destination"`
	Style       string          `json:"style"`
	TravelMonth string          `json:"travel_month"`
	Travelers   int             `json:"travelers"`
	Duration    string          `json:"duration"`
	Budget      string          `json:"budget"`
	Notes       string          `json:"notes"`
	Source      SourceResponse  `json:"source"`
	BookingHash string          `json:"booking_hash"`
	Pricing     PricingResponse `json:"pricing"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// MutationResponse is returned by every booking edit.
type MutationResponse struct {
	Booking   BookingResponse `json:"booking"`
	Unchanged bool            `json:"unchanged,omitempty"`
}

// ConflictResponse is the 409 body for a stale booking_hash.
type ConflictResponse struct {
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Booking BookingResponse `json:"booking"`
}

type CustomerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Language  string    `json:"language"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type BookingDetailResponse struct {
	Booking  BookingResponse   `json:"booking"`
	Customer *CustomerResponse `json:"customer"`
}

type ListFilters struct {
	Stage   *string `json:"stage"`
	OwnerID *string `json:"owner_id"`
	Search  *string `json:"search"`
}

type BookingListResponse struct {
	Items      []BookingResponse `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
	Filters    ListFilters       `json:"filters"`
	Sort       string            `json:"sort"`
}

type CustomerListResponse struct {
	Items      []CustomerResponse `json:"items"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalPages int                `json:"total_pages"`
}

type CustomerDetailResponse struct {
	Customer CustomerResponse  `json:"customer"`
	Bookings []BookingResponse `json:"bookings"`
}

type ActivityResponse struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id"`
	Type      string    `json:"type"`
	Actor     string    `json:"actor"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

type ActivityListResponse struct {
	Items []ActivityResponse `json:"items"`
	Total int                `json:"total"`
}

type CreateActivityResponse struct {
	Activity ActivityResponse `json:"activity"`
}

// InvoiceRequest creates or edits an invoice. On create, an empty item list
// bills the booking's pending scheduled payments.
type InvoiceRequest struct {
	Number         string        `json:"number" validate:"max=40"`
	Currency       string        `json:"currency" validate:"max=16"`
	IssueDate      string        `json:"issue_date" validate:"max=40"`
	DueDate        *string       `json:"due_date" validate:"omitempty,max=40"`
	Title          string        `json:"title" validate:"max=200"`
	Notes          string        `json:"notes" validate:"max=5000"`
	Items          []InvoiceLine `json:"items" validate:"max=100,dive"`
	DueAmountCents *int64        `json:"due_amount_cents"`
}

type InvoiceLine struct {
	ID              string `json:"id" validate:"max=80"`
	Description     string `json:"description" validate:"max=500"`
	Quantity        int64  `json:"quantity"`
	UnitAmountCents int64  `json:"unit_amount_cents"`
}

type InvoiceItemResponse struct {
	ID               string `json:"id"`
	Description      string `json:"description"`
	Quantity         int64  `json:"quantity"`
	UnitAmountCents  int64  `json:"unit_amount_cents"`
	TotalAmountCents int64  `json:"total_amount_cents"`
}

type InvoiceResponse struct {
	ID               string                `json:"id"`
	BookingID        string                `json:"booking_id"`
	CustomerID       string                `json:"customer_id"`
	Number           string                `json:"number"`
	Version          int                   `json:"version"`
	Status           string                `json:"status"`
	Currency         string                `json:"currency"`
	IssueDate        string                `json:"issue_date"`
	DueDate          *string               `json:"due_date"`
	Title            string                `json:"title"`
	Notes            string                `json:"notes"`
	Items            []InvoiceItemResponse `json:"items"`
	TotalAmountCents int64                 `json:"total_amount_cents"`
	DueAmountCents   int64                 `json:"due_amount_cents"`
	PublicToken      string                `json:"public_token"`
	SentAt           *time.Time            `json:"sent_at"`
	PaidAt           *time.Time            `json:"paid_at"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

type InvoiceListResponse struct {
	Items []InvoiceResponse `json:"items"`
	Total int               `json:"total"`
}

// PublicInvoiceResponse is what the customer sees behind the invoice link.
type PublicInvoiceResponse struct {
	Number           string                `json:"number"`
	Status           string                `json:"status"`
	Currency         string                `json:"currency"`
	IssueDate        string                `json:"issue_date"`
	DueDate          *string               `json:"due_date"`
	Title            string                `json:"title"`
	Notes            string                `json:"notes"`
	CustomerName     string                `json:"customer_name"`
	Destination      string                `json:"destination"`
	Items            []InvoiceItemResponse `json:"items"`
	TotalAmountCents int64                 `json:"total_amount_cents"`
	DueAmountCents   int64                 `json:"due_amount_cents"`
	PaidAt           *time.Time            `json:"paid_at"`
}
