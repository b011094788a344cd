package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"travelplan_backend/internal/bookings/assignment"
	"travelplan_backend/internal/bookings/domain"
	"travelplan_backend/internal/bookings/matching"
	"travelplan_backend/internal/bookings/repository"
	"travelplan_backend/internal/bookings/transport"
	"travelplan_backend/internal/events"
	"travelplan_backend/platform/apperr"
	"travelplan_backend/platform/sanitize"
)

const (
	statusAccepted       = "accepted"
	msgNextStep          = "Thanks, we will contact you with route options within 48-72h."
	msgAlreadyCaptured   = "Lead already captured with this idempotency key"
	maxIdempotencyKeyLen = 200
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateLead checks the trimmed form. It runs before any store access.
func ValidateLead(req transport.CreateLeadRequest) error {
	required := []struct {
		name  string
		value string
	}{
		{"name", req.Name},
		{"email", req.Email},
		{"destination", req.Destination},
		{"style", req.Style},
		{"travel_month", req.TravelMonth},
		{"duration", req.Duration},
	}
	var missing []string
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if req.Travelers == 0 {
		missing = append(missing, "travelers")
	}
	if len(missing) > 0 {
		return apperr.Validation("Missing required fields: " + strings.Join(missing, ", "))
	}
	if !emailPattern.MatchString(matching.NormalizeEmail(req.Email)) {
		return apperr.Validation("Invalid email")
	}
	if req.Travelers < 1 || req.Travelers > 30 {
		return apperr.Validation("Travelers must be between 1 and 30")
	}
	return nil
}

// CreateLead captures a website submission. A repeated idempotency key returns
// the booking created by the first call with Deduplicated set, and writes nothing.
func (s *Service) CreateLead(ctx context.Context, req transport.CreateLeadRequest, idempotencyKey string) (transport.CreateLeadResponse, error) {
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if len(idempotencyKey) > maxIdempotencyKeyLen {
		return transport.CreateLeadResponse{}, apperr.Validation("Idempotency-Key is too long")
	}
	if err := ValidateLead(req); err != nil {
		return transport.CreateLeadResponse{}, err
	}

	members, err := s.listStaff(ctx)
	if err != nil {
		return transport.CreateLeadResponse{}, err
	}

	candidate := matching.Candidate{
		Name:  strings.TrimSpace(req.Name),
		Email: matching.NormalizeEmail(req.Email),
		Phone: matching.NormalizePhone(s.phones.E164(req.Phone)),
	}
	language := strings.TrimSpace(req.Language)

	var (
		resp    transport.CreateLeadResponse
		created domain.Booking
		matched bool
	)
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		if idempotencyKey != "" {
			existing, found, err := tx.FindBookingByIdempotencyKey(ctx, idempotencyKey)
			if err != nil {
				return err
			}
			if found {
				resp = transport.CreateLeadResponse{
					BookingID:    existing.ID,
					CustomerID:   existing.CustomerID,
					Status:       statusAccepted,
					Deduplicated: true,
					Owner:        existing.OwnerName,
					SLADueAt:     existing.SLADueAt,
					Message:      msgAlreadyCaptured,
				}
				return nil
			}
		}

		now := s.clock()

		customers, err := tx.ListCustomers(ctx)
		if err != nil {
			return err
		}
		customer, reason := upsertCustomer(customers, candidate, language, now)
		matched = reason != ""
		if err := tx.PutCustomer(ctx, customer); err != nil {
			return err
		}

		bookings, err := tx.ListBookings(ctx)
		if err != nil {
			return err
		}
		owner := assignment.ChooseOwner(members, bookings, strings.TrimSpace(req.Destination), language)

		b := domain.Booking{
			ID:          domain.NewBookingID(),
			CustomerID:  customer.ID,
			Stage:       domain.StageNew,
			SLADueAt:    domain.SLADueAt(domain.StageNew, now),
			Destination: strings.TrimSpace(req.Destination),
			Style:       strings.TrimSpace(req.Style),
			TravelMonth: strings.TrimSpace(req.TravelMonth),
			Travelers:   req.Travelers,
			Duration:    strings.TrimSpace(req.Duration),
			Budget:      strings.TrimSpace(req.Budget),
			Notes:       sanitize.Text(req.Notes),
			Source: domain.Source{
				PageURL:        strings.TrimSpace(req.PageURL),
				Referrer:       strings.TrimSpace(req.Referrer),
				UTMSource:      strings.TrimSpace(req.UTMSource),
				UTMMedium:      strings.TrimSpace(req.UTMMedium),
				UTMCampaign:    strings.TrimSpace(req.UTMCampaign),
				IPAddress:      req.IPAddress,
				IPCountryGuess: req.IPCountryGuess,
			},
			Pricing:   domain.EmptyPricing(),
			CreatedAt: now,
		}
		if idempotencyKey != "" {
			key := idempotencyKey
			b.IdempotencyKey = &key
		}
		if owner != nil {
			ownerID, ownerName := owner.ID, owner.Name
			b.OwnerID = &ownerID
			b.OwnerName = &ownerName
		}
		b.Touch(now)

		if err := tx.PutBooking(ctx, b); err != nil {
			return err
		}
		if err := tx.AppendActivity(ctx, newActivity(b.ID, domain.ActivityLeadCreated, domain.ActorPublicAPI, "Lead created from website form", now)); err != nil {
			return err
		}
		if owner != nil {
			detail := fmt.Sprintf("Assigned to %s", owner.Name)
			if err := tx.AppendActivity(ctx, newActivity(b.ID, domain.ActivityOwnerAssigned, domain.ActorSystem, detail, now)); err != nil {
				return err
			}
		}

		created = b
		resp = transport.CreateLeadResponse{
			BookingID:       b.ID,
			CustomerID:      customer.ID,
			Status:          statusAccepted,
			CustomerMatched: matched,
			Owner:           b.OwnerName,
			SLADueAt:        b.SLADueAt,
			NextStepMessage: msgNextStep,
		}
		return nil
	})
	if err != nil {
		return transport.CreateLeadResponse{}, err
	}

	if !resp.Deduplicated {
		s.publish(ctx, events.BookingCreated{
			BaseEvent:       events.NewBaseEvent(),
			BookingID:       created.ID,
			CustomerID:      created.CustomerID,
			CustomerMatched: matched,
			Stage:           string(created.Stage),
			OwnerID:         created.OwnerID,
			OwnerName:       created.OwnerName,
			SLADueAt:        created.SLADueAt,
			Destination:     created.Destination,
		})
		s.scheduleSLA(ctx, created)
	}
	return resp, nil
}

// upsertCustomer reuses the matching customer, letting non-empty incoming
// fields win, or creates a new one. reason is empty for a new customer.
func upsertCustomer(customers []domain.Customer, candidate matching.Candidate, language string, now time.Time) (domain.Customer, matching.Reason) {
	match, reason := matching.FindMatchWithReason(candidate, customers)
	if match != nil {
		c := match.Clone()
		c.Name = firstNonEmpty(candidate.Name, c.Name)
		c.Email = firstNonEmpty(candidate.Email, c.Email)
		c.Phone = firstNonEmpty(candidate.Phone, c.Phone)
		c.Language = firstNonEmpty(language, c.Language)
		c.UpdatedAt = now
		return c, reason
	}
	return domain.Customer{
		ID:        domain.NewCustomerID(),
		Name:      candidate.Name,
		Email:     candidate.Email,
		Phone:     candidate.Phone,
		Language:  firstNonEmpty(language, domain.DefaultLanguage),
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}, ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
