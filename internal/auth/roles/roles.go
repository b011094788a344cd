// Package roles defines the staff roles and the permission predicates derived
// from them. Ownership checks are left to the caller since they need the booking.
package roles

const (
	Admin      = "atp_admin"
	Manager    = "atp_manager"
	Accountant = "atp_accountant"
	Staff      = "atp_staff"
)

// All lists every role understood by the API.
var All = []string{Admin, Manager, Accountant, Staff}

// HasRoles is satisfied by httpkit.Identity.
type HasRoles interface {
	HasRole(role string) bool
}

func hasAny(who HasRoles, candidates ...string) bool {
	if who == nil {
		return false
	}
	for _, role := range candidates {
		if who.HasRole(role) {
			return true
		}
	}
	return false
}

// CanReadAllBookings reports whether the caller sees every booking rather
// than only the ones they own.
func CanReadAllBookings(who HasRoles) bool {
	return hasAny(who, Admin, Manager, Accountant)
}

// CanChangeStage reports whether the caller may move a booking between stages.
func CanChangeStage(who HasRoles, ownsBooking bool) bool {
	if hasAny(who, Admin, Manager, Accountant) {
		return true
	}
	return ownsBooking && hasAny(who, Staff)
}

// CanChangeAssignment reports whether the caller may reassign a booking.
func CanChangeAssignment(who HasRoles) bool {
	return hasAny(who, Admin, Manager)
}

// CanEditBooking covers notes and pricing.
func CanEditBooking(who HasRoles, ownsBooking bool) bool {
	if hasAny(who, Admin, Manager) {
		return true
	}
	return ownsBooking && hasAny(who, Staff)
}

// IsStaffMember reports whether the caller holds any known role.
func IsStaffMember(who HasRoles) bool {
	return hasAny(who, All...)
}

// Permissions summarises what the caller may do across bookings. Grants that
// depend on owning a booking are not included.
type Permissions struct {
	ReadAllBookings  bool `json:"read_all_bookings"`
	ChangeAssignment bool `json:"change_assignment"`
	ChangeAnyStage   bool `json:"change_any_stage"`
	EditAnyBooking   bool `json:"edit_any_booking"`
}

// PermissionsFor derives the permission summary for who.
func PermissionsFor(who HasRoles) Permissions {
	return Permissions{
		ReadAllBookings:  CanReadAllBookings(who),
		ChangeAssignment: CanChangeAssignment(who),
		ChangeAnyStage:   CanChangeStage(who, false),
		EditAnyBooking:   CanEditBooking(who, false),
	}
}
