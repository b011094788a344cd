package service

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"travelplan_backend/internal/auth/roles"
	"travelplan_backend/internal/bookings/domain"
	"travelplan_backend/internal/bookings/repository"
	"travelplan_backend/internal/bookings/transport"
	"travelplan_backend/platform/apperr"
)

// Sort orders accepted by ListBookings.
const (
	SortCreatedAtDesc = "created_at_desc"
	SortCreatedAtAsc  = "created_at_asc"
	SortUpdatedAtDesc = "updated_at_desc"
	SortSLADueAtAsc   = "sla_due_at_asc"
	SortSLADueAtDesc  = "sla_due_at_desc"

	defaultPageSize = 25
	maxPageSize     = 100
	maxPage         = 100000
)

// visibility decides which bookings an actor may read.
type visibility struct {
	all     bool
	staffID string
}

func (s *Service) visibilityFor(ctx context.Context, actor Actor) (visibility, []domain.StaffMember, error) {
	if !roles.IsStaffMember(actor) {
		return visibility{}, nil, apperr.Forbidden(msgForbidden)
	}
	members, err := s.listStaff(ctx)
	if err != nil {
		return visibility{}, nil, err
	}
	if roles.CanReadAllBookings(actor) {
		return visibility{all: true}, members, nil
	}
	id, _ := staffIDFor(members, actor)
	return visibility{staffID: id}, members, nil
}

func (v visibility) canSee(b domain.Booking) bool {
	return v.all || (v.staffID != "" && b.OwnedBy(v.staffID))
}

// GetBooking returns a booking and its customer.
func (s *Service) GetBooking(ctx context.Context, id string, actor Actor) (transport.BookingDetailResponse, error) {
	vis, _, err := s.visibilityFor(ctx, actor)
	if err != nil {
		return transport.BookingDetailResponse{}, err
	}

	var resp transport.BookingDetailResponse
	err = s.store.View(ctx, func(tx repository.Tx) error {
		b, err := loadBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		if !vis.canSee(b) {
			return apperr.Forbidden(msgForbidden)
		}
		resp.Booking = ToBookingResponse(b)

		c, err := tx.GetCustomer(ctx, b.CustomerID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return err
		default:
			customer := ToCustomerResponse(c)
			resp.Customer = &customer
		}
		return nil
	})
	return resp, err
}

// ListBookings filters, sorts and paginates the bookings visible to actor.
func (s *Service) ListBookings(ctx context.Context, req transport.ListBookingsRequest, actor Actor) (transport.BookingListResponse, error) {
	vis, _, err := s.visibilityFor(ctx, actor)
	if err != nil {
		return transport.BookingListResponse{}, err
	}

	stage := ""
	if parsed, err := domain.ParseStage(req.Stage); err == nil {
		stage = string(parsed)
	}
	ownerID := strings.TrimSpace(req.OwnerID)
	search := strings.ToLower(strings.TrimSpace(req.Search))
	sortKey := strings.TrimSpace(req.Sort)
	if sortKey == "" {
		sortKey = SortCreatedAtDesc
	}

	var (
		all       []domain.Booking
		customers map[string]domain.Customer
	)
	err = s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		if all, err = tx.ListBookings(ctx); err != nil {
			return err
		}
		if search == "" {
			return nil
		}
		list, err := tx.ListCustomers(ctx)
		if err != nil {
			return err
		}
		customers = make(map[string]domain.Customer, len(list))
		for _, c := range list {
			customers[c.ID] = c
		}
		return nil
	})
	if err != nil {
		return transport.BookingListResponse{}, err
	}

	filtered := make([]domain.Booking, 0, len(all))
	for _, b := range all {
		if !vis.canSee(b) {
			continue
		}
		if stage != "" && string(b.Stage) != stage {
			continue
		}
		if ownerID != "" && !b.OwnedBy(ownerID) {
			continue
		}
		if search != "" && !matchesSearch(b, customers[b.CustomerID], search) {
			continue
		}
		filtered = append(filtered, b)
	}
	sortBookings(filtered, sortKey)

	page, pageSize, totalPages, items := paginate(filtered, req.Page, req.PageSize)
	return transport.BookingListResponse{
		Items:      toBookingResponses(items),
		Total:      len(filtered),
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		Filters: transport.ListFilters{
			Stage:   optional(stage),
			OwnerID: optional(ownerID),
			Search:  optional(search),
		},
		Sort: sortKey,
	}, nil
}

func matchesSearch(b domain.Booking, c domain.Customer, needle string) bool {
	parts := []string{b.ID, b.Destination, b.Style, b.Notes, c.Name, c.Email}
	if b.OwnerName != nil {
		parts = append(parts, *b.OwnerName)
	}
	return strings.Contains(strings.ToLower(strings.Join(parts, " ")), needle)
}

// farFuture sorts bookings without an SLA last in ascending order.
var farFuture = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

func slaOr(b domain.Booking, fallback time.Time) time.Time {
	if b.SLADueAt == nil {
		return fallback
	}
	return *b.SLADueAt
}

func sortBookings(items []domain.Booking, key string) {
	slices.SortStableFunc(items, func(a, b domain.Booking) int {
		switch key {
		case SortCreatedAtAsc:
			return a.CreatedAt.Compare(b.CreatedAt)
		case SortUpdatedAtDesc:
			return b.UpdatedAt.Compare(a.UpdatedAt)
		case SortSLADueAtAsc:
			return slaOr(a, farFuture).Compare(slaOr(b, farFuture))
		case SortSLADueAtDesc:
			return slaOr(b, time.Time{}).Compare(slaOr(a, time.Time{}))
		default:
			return b.CreatedAt.Compare(a.CreatedAt)
		}
	})
}

func paginate[T any](items []T, page, pageSize int) (int, int, int, []T) {
	if page < 1 {
		page = 1
	}
	page = min(page, maxPage)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	pageSize = min(pageSize, maxPageSize)

	totalPages := max(1, (len(items)+pageSize-1)/pageSize)
	offset := (page - 1) * pageSize
	if offset >= len(items) {
		return page, pageSize, totalPages, []T{}
	}
	end := min(offset+pageSize, len(items))
	return page, pageSize, totalPages, items[offset:end]
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// ListCustomers searches customers by name, email, phone and language, newest first.
func (s *Service) ListCustomers(ctx context.Context, req transport.ListCustomersRequest, actor Actor) (transport.CustomerListResponse, error) {
	if !roles.IsStaffMember(actor) {
		return transport.CustomerListResponse{}, apperr.Forbidden(msgForbidden)
	}
	search := strings.ToLower(strings.TrimSpace(req.Search))

	var all []domain.Customer
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		all, err = tx.ListCustomers(ctx)
		return err
	})
	if err != nil {
		return transport.CustomerListResponse{}, err
	}

	filtered := make([]domain.Customer, 0, len(all))
	for _, c := range all {
		haystack := strings.ToLower(strings.Join([]string{c.Name, c.Email, c.Phone, c.Language}, " "))
		if search == "" || strings.Contains(haystack, search) {
			filtered = append(filtered, c)
		}
	}
	slices.SortStableFunc(filtered, func(a, b domain.Customer) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	page, pageSize, totalPages, items := paginate(filtered, req.Page, req.PageSize)
	out := make([]transport.CustomerResponse, 0, len(items))
	for _, c := range items {
		out = append(out, ToCustomerResponse(c))
	}
	return transport.CustomerListResponse{
		Items:      out,
		Total:      len(filtered),
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// GetCustomer returns a customer with the bookings visible to actor, newest first.
func (s *Service) GetCustomer(ctx context.Context, id string, actor Actor) (transport.CustomerDetailResponse, error) {
	vis, _, err := s.visibilityFor(ctx, actor)
	if err != nil {
		return transport.CustomerDetailResponse{}, err
	}

	var resp transport.CustomerDetailResponse
	err = s.store.View(ctx, func(tx repository.Tx) error {
		c, err := tx.GetCustomer(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(msgCustomerNotFound)
		}
		if err != nil {
			return err
		}
		all, err := tx.ListBookings(ctx)
		if err != nil {
			return err
		}
		owned := make([]domain.Booking, 0)
		for _, b := range all {
			if b.CustomerID == c.ID && vis.canSee(b) {
				owned = append(owned, b)
			}
		}
		sortBookings(owned, SortCreatedAtDesc)
		resp = transport.CustomerDetailResponse{
			Customer: ToCustomerResponse(c),
			Bookings: toBookingResponses(owned),
		}
		return nil
	})
	return resp, err
}
