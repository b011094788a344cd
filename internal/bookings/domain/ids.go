package domain

import (
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewBookingID returns a fresh booking id.
func NewBookingID() string { return "bkg_" + uuid.NewString() }

// NewCustomerID returns a fresh customer id.
func NewCustomerID() string { return "cust_" + uuid.NewString() }

// NewActivityID returns a lexically time-ordered activity id.
func NewActivityID() string { return "act_" + strings.ToLower(ulid.Make().String()) }

// NewPricingItemID returns an id for an adjustment ("adj") or payment ("pay").
func NewPricingItemID(prefix string) string { return prefix + "_" + uuid.NewString() }
