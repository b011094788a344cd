package domain

import (
	"slices"
	"time"
)

// ActivityType names an entry in a booking's audit trail.
type ActivityType string

const (
	ActivityLeadCreated    ActivityType = "LEAD_CREATED"
	ActivityOwnerAssigned  ActivityType = "OWNER_ASSIGNED"
	ActivityStageChanged   ActivityType = "STAGE_CHANGED"
	ActivityOwnerChanged   ActivityType = "OWNER_CHANGED"
	ActivityNote           ActivityType = "NOTE"
	ActivityPricingUpdated ActivityType = "PRICING_UPDATED"
	ActivitySLABreached    ActivityType = "SLA_BREACHED"
	ActivityInvoiceCreated ActivityType = "INVOICE_CREATED"
	ActivityInvoiceUpdated ActivityType = "INVOICE_UPDATED"
	ActivityInvoiceSent    ActivityType = "INVOICE_SENT"
	ActivityInvoicePaid    ActivityType = "INVOICE_PAID"
)

// System actors.
const (
	ActorPublicAPI = "public_api"
	ActorSystem    = "system"
	ActorStaff     = "staff"
)

// DefaultLanguage is assigned to new customers who did not state one.
const DefaultLanguage = "English"

// Customer is a deduplicated contact. Customers are never deleted.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Language  string    `json:"language"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy.
func (c Customer) Clone() Customer {
	c.Tags = slices.Clone(c.Tags)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c
}

// Source records where a lead was submitted from.
type Source struct {
	PageURL        string `json:"page_url,omitempty"`
	Referrer       string `json:"referrer,omitempty"`
	UTMSource      string `json:"utm_source,omitempty"`
	UTMMedium      string `json:"utm_medium,omitempty"`
	UTMCampaign    string `json:"utm_campaign,omitempty"`
	IPAddress      string `json:"ip_address,omitempty"`
	IPCountryGuess string `json:"ip_country_guess,omitempty"`
}

// Booking is a lead before it is won and a booking after; one entity with a stage.
type Booking struct {
	ID             string     `json:"id"`
	CustomerID     string     `json:"customer_id"`
	Stage          Stage      `json:"stage"`
	OwnerID        *string    `json:"owner_id"`
	OwnerName      *string    `json:"owner_name"`
	SLADueAt       *time.Time `json:"sla_due_at"`
	Destination    string     `json:"destination"`
	Style          string     `json:"style"`
	TravelMonth    string     `json:"travel_month"`
	Travelers      int        `json:"travelers"`
	Duration       string     `json:"duration"`
	Budget         string     `json:"budget,omitempty"`
	Notes          string     `json:"notes"`
	Source         Source     `json:"source"`
	IdempotencyKey *string    `json:"idempotency_key,omitempty"`
	BookingHash    string     `json:"booking_hash"`
	Pricing        Pricing    `json:"pricing"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Clone returns a deep copy so transactions never alias committed state.
func (b Booking) Clone() Booking {
	b.OwnerID = clonePtr(b.OwnerID)
	b.OwnerName = clonePtr(b.OwnerName)
	b.SLADueAt = clonePtr(b.SLADueAt)
	b.IdempotencyKey = clonePtr(b.IdempotencyKey)
	b.Pricing = b.Pricing.Clone()
	return b
}

// OwnedBy reports whether the booking is assigned to staffID.
func (b Booking) OwnedBy(staffID string) bool {
	return b.OwnerID != nil && *b.OwnerID == staffID
}

// Touch bumps UpdatedAt and recomputes the concurrency token.
func (b *Booking) Touch(now time.Time) {
	b.UpdatedAt = now.UTC()
	b.BookingHash = ComputeBookingHash(*b)
}

// Activity is an append-only audit entry.
type Activity struct {
	ID        string       `json:"id"`
	BookingID string       `json:"booking_id"`
	Type      ActivityType `json:"type"`
	Actor     string       `json:"actor"`
	Detail    string       `json:"detail"`
	CreatedAt time.Time    `json:"created_at"`
}

// StaffMember is read-only configuration describing who can own bookings.
type StaffMember struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Active       bool     `json:"active" yaml:"active"`
	Email        string   `json:"email,omitempty" yaml:"email"`
	Usernames    []string `json:"usernames" yaml:"usernames"`
	Destinations []string `json:"destinations" yaml:"destinations"`
	Languages    []string `json:"languages" yaml:"languages"`
}

// HasUsername reports whether the login name belongs to this staff member.
func (s StaffMember) HasUsername(username string) bool {
	return username != "" && slices.Contains(s.Usernames, username)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
