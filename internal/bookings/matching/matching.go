// Package matching deduplicates incoming lead contacts against known customers.
package matching

import (
	"strings"
	"unicode/utf8"

	"travelplan_backend/internal/bookings/domain"
)

const (
	minFuzzyNameLength   = 4
	maxFuzzyNameDistance = 2
)

// Candidate is the contact data submitted with a lead.
type Candidate struct {
	Name  string
	Email string
	Phone string
}

// Reason explains why a customer matched.
type Reason string

const (
	ReasonEmail Reason = "email"
	ReasonPhone Reason = "phone"
	ReasonName  Reason = "name"
)

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone keeps only digits and '+'.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FindMatch returns the first customer matching the candidate by exact email,
// then exact phone, then fuzzy name. The returned pointer aliases customers.
func FindMatch(candidate Candidate, customers []domain.Customer) *domain.Customer {
	match, _ := FindMatchWithReason(candidate, customers)
	return match
}

// FindMatchWithReason is FindMatch that also reports which rule matched.
func FindMatchWithReason(candidate Candidate, customers []domain.Customer) (*domain.Customer, Reason) {
	if email := NormalizeEmail(candidate.Email); email != "" {
		for i := range customers {
			if NormalizeEmail(customers[i].Email) == email {
				return &customers[i], ReasonEmail
			}
		}
	}

	if phone := NormalizePhone(candidate.Phone); phone != "" {
		for i := range customers {
			if NormalizePhone(customers[i].Phone) == phone {
				return &customers[i], ReasonPhone
			}
		}
	}

	name := strings.TrimSpace(candidate.Name)
	if utf8.RuneCountInString(name) < minFuzzyNameLength {
		return nil, ""
	}
	for i := range customers {
		existing := strings.TrimSpace(customers[i].Name)
		if existing == "" {
			continue
		}
		if Levenshtein(name, existing) <= maxFuzzyNameDistance {
			return &customers[i], ReasonName
		}
	}
	return nil, ""
}

// Levenshtein returns the case-insensitive edit distance between a and b.
func Levenshtein(a, b string) int {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
