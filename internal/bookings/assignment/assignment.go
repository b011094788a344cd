// Package assignment picks the owner for a newly created booking.
package assignment

import (
	"slices"
	"strings"

	"travelplan_backend/internal/bookings/domain"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// OpenLoad counts the bookings per owner that sit in an open stage.
func OpenLoad(bookings []domain.Booking) map[string]int {
	load := make(map[string]int)
	for _, b := range bookings {
		if b.OwnerID == nil || !b.Stage.IsOpen() {
			continue
		}
		load[*b.OwnerID]++
	}
	return load
}

// ChooseOwner returns the least-loaded eligible staff member, or nil.
// Eligibility relaxes in three steps: active staff covering the destination and
// speaking the language (skipped when language is empty), then active staff
// covering the destination, then any active staff member.
// Ties on load are broken by name in collation order.
func ChooseOwner(staff []domain.StaffMember, bookings []domain.Booking, destination, lang string) *domain.StaffMember {
	active := make([]domain.StaffMember, 0, len(staff))
	for _, s := range staff {
		if s.Active {
			active = append(active, s)
		}
	}
	if len(active) == 0 {
		return nil
	}

	byDestination := filter(active, func(s domain.StaffMember) bool {
		return containsFold(s.Destinations, destination)
	})
	byLanguage := filter(byDestination, func(s domain.StaffMember) bool {
		return strings.TrimSpace(lang) == "" || containsFold(s.Languages, lang)
	})

	pool := byLanguage
	if len(pool) == 0 {
		pool = byDestination
	}
	if len(pool) == 0 {
		pool = active
	}

	load := OpenLoad(bookings)
	names := collate.New(language.Und)
	best := slices.MinFunc(pool, func(a, b domain.StaffMember) int {
		if d := load[a.ID] - load[b.ID]; d != 0 {
			return d
		}
		return names.CompareString(a.Name, b.Name)
	})
	return &best
}

func filter(staff []domain.StaffMember, keep func(domain.StaffMember) bool) []domain.StaffMember {
	out := make([]domain.StaffMember, 0, len(staff))
	for _, s := range staff {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func containsFold(values []string, target string) bool {
	target = strings.TrimSpace(target)
	if target == "" {
		return false
	}
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}
