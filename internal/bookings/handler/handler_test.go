package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"travelplan_backend/internal/bookings/domain"
	"travelplan_backend/internal/bookings/repository"
	"travelplan_backend/internal/bookings/service"
	"travelplan_backend/internal/bookings/transport"
	"travelplan_backend/internal/staff"
	"travelplan_backend/platform/apperr"
	"travelplan_backend/platform/httpkit"
	"travelplan_backend/platform/logger"
	"travelplan_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var principals = map[string]httpkit.Principal{
	"manager": {Subject: "u-1", Username: "mai", Roles: []string{"atp_manager"}},
	"binh":    {Subject: "u-2", Username: "binh", Roles: []string{"atp_staff"}},
}

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := repository.NewMemoryStore(context.Background(), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	directory := staff.StaticDirectory{
		{ID: "st_anna", Name: "Anna", Active: true, Usernames: []string{"anna"}, Destinations: []string{"Vietnam"}},
		{ID: "st_binh", Name: "Binh", Active: true, Usernames: []string{"binh"}, Destinations: []string{"Laos"}},
	}
	h := New(service.New(store, directory, nil, logger.New("test")), validator.New())

	asUser := func(c *gin.Context) {
		if p, ok := principals[c.GetHeader("X-Test-User")]; ok {
			c.Set(httpkit.ContextPrincipalKey, p)
		}
		c.Next()
	}

	r := gin.New()
	h.RegisterPublicRoutes(r.Group("/public/v1"))
	h.RegisterRoutes(r.Group("/api/v1", asUser))
	return r
}

func do(t *testing.T, r http.Handler, method, path, user string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

var lead = map[string]interface{}{
	"name":         "Tran Thi Mai",
	"email":        "mai.tran@example.com",
	"destination":  "Vietnam",
	"style":        "Culture",
	"travel_month": "2025-11",
	"travelers":    2,
	"duration":     "2 weeks",
}

func createLead(t *testing.T, r http.Handler) transport.BookingResponse {
	t.Helper()
	rec := do(t, r, http.MethodPost, "/public/v1/bookings", "", lead)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[transport.CreateLeadResponse](t, rec)

	rec = do(t, r, http.MethodGet, "/api/v1/bookings/"+created.BookingID, "manager", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[transport.BookingDetailResponse](t, rec).Booking
}

func TestCreateLeadIdempotencyKey(t *testing.T) {
	r := newEngine(t)

	rec := do(t, r, http.MethodPost, "/public/v1/leads", "", lead, "Idempotency-Key", "abc", "CF-IPCountry", "vn")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[transport.CreateLeadResponse](t, rec)
	assert.Equal(t, "accepted", first.Status)
	require.NotNil(t, first.Owner)
	assert.Equal(t, "Anna", *first.Owner)

	rec = do(t, r, http.MethodPost, "/public/v1/bookings", "", lead, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[transport.CreateLeadResponse](t, rec)
	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.BookingID, second.BookingID)

	rec = do(t, r, http.MethodGet, "/api/v1/bookings/"+first.BookingID, "manager", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[transport.BookingDetailResponse](t, rec)
	assert.Equal(t, "VN", detail.Booking.Source.IPCountryGuess)
	assert.NotEmpty(t, detail.Booking.Source.IPAddress)
	require.NotNil(t, detail.Customer)
	assert.Equal(t, "mai.tran@example.com", detail.Customer.Email)
}

func TestCreateLeadValidationMessage(t *testing.T) {
	r := newEngine(t)

	rec := do(t, r, http.MethodPost, "/public/v1/bookings", "", map[string]interface{}{"name": "x", "email": "x@example.com"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[httpkit.ErrorResponse](t, rec)
	assert.Equal(t, "Missing required fields: destination, style, travel_month, duration, travelers", body.Error)

	rec = do(t, r, http.MethodPost, "/public/v1/bookings", "", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutesRequireIdentity(t *testing.T) {
	r := newEngine(t)
	rec := do(t, r, http.MethodGet, "/api/v1/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStaleHashAnswersConflictWithCurrentBooking(t *testing.T) {
	r := newEngine(t)
	b := createLead(t, r)

	rec := do(t, r, http.MethodPatch, "/api/v1/bookings/"+b.ID+"/notes", "manager", transport.ChangeNotesRequest{Notes: "first", BookingHash: b.BookingHash})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[transport.MutationResponse](t, rec)
	assert.Equal(t, "first", updated.Booking.Notes)

	rec = do(t, r, http.MethodPatch, "/api/v1/bookings/"+b.ID+"/notes", "manager", transport.ChangeNotesRequest{Notes: "second", BookingHash: b.BookingHash})
	require.Equal(t, http.StatusConflict, rec.Code)
	conflict := decode[transport.ConflictResponse](t, rec)
	assert.Equal(t, apperr.CodeBookingHashMismatch, conflict.Code)
	assert.Equal(t, updated.Booking.BookingHash, conflict.Booking.BookingHash)
	assert.Equal(t, "first", conflict.Booking.Notes)
}

func TestChangeStageHTTP(t *testing.T) {
	r := newEngine(t)
	b := createLead(t, r)

	rec := do(t, r, http.MethodPatch, "/api/v1/bookings/"+b.ID+"/stage", "manager", transport.ChangeStageRequest{Stage: "WON", BookingHash: b.BookingHash})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[httpkit.ErrorResponse](t, rec)
	assert.Equal(t, apperr.CodeTransitionNotAllowed, body.Code)

	rec = do(t, r, http.MethodPatch, "/api/v1/bookings/"+b.ID+"/stage", "manager", map[string]string{"stage": "QUALIFIED"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, r, http.MethodPatch, "/api/v1/bookings/"+b.ID+"/stage", "binh", transport.ChangeStageRequest{Stage: "QUALIFIED", BookingHash: b.BookingHash})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, r, http.MethodPatch, "/api/v1/bookings/"+b.ID+"/stage", "manager", transport.ChangeStageRequest{Stage: "QUALIFIED", BookingHash: b.BookingHash})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(domain.StageQualified), decode[transport.MutationResponse](t, rec).Booking.Stage)
}

func TestChangePricingReportsFirstInvalidField(t *testing.T) {
	tests := []struct {
		name    string
		pricing map[string]interface{}
		want    map[string]interface{}
	}{
		{
			name: "first of several failures",
			pricing: map[string]interface{}{
				"agreed_net_amount_cents": 1000,
				"adjustments": []map[string]interface{}{
					{"type": "BOGUS", "label": "Promo", "amount_cents": -5},
				},
				"payments": []map[string]interface{}{
					{"label": "Deposit", "net_amount_cents": 1000, "tax_rate_basis_points": 20000, "status": "PAID"},
				},
			},
			want: map[string]interface{}{"field": "adjustments[0].type", "message": "must be one of DISCOUNT, CREDIT, SURCHARGE"},
		},
		{
			name: "paid without date",
			pricing: map[string]interface{}{
				"agreed_net_amount_cents": 1000,
				"payments": []map[string]interface{}{
					{"label": "Deposit", "net_amount_cents": 1000, "status": "PAID"},
				},
			},
			want: map[string]interface{}{"field": "payments[0].paid_at", "message": "is required when status is PAID"},
		},
		{
			name: "empty paid_at",
			pricing: map[string]interface{}{
				"agreed_net_amount_cents": 1000,
				"payments": []map[string]interface{}{
					{"label": "Deposit", "net_amount_cents": 1000, "status": "PAID", "paid_at": ""},
				},
			},
			want: map[string]interface{}{"field": "payments[0].paid_at", "message": "is required when status is PAID"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(t)
			b := createLead(t, r)

			body := map[string]interface{}{"booking_hash": b.BookingHash, "pricing": tt.pricing}
			rec := do(t, r, http.MethodPatch, "/api/v1/bookings/"+b.ID+"/pricing", "manager", body)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, decode[httpkit.ErrorResponse](t, rec).Details)
		})
	}
}

func TestChangePricingAcceptsPaidAtText(t *testing.T) {
	r := newEngine(t)
	b := createLead(t, r)

	body := map[string]interface{}{
		"booking_hash": b.BookingHash,
		"pricing": map[string]interface{}{
			"currency":                "eur",
			"agreed_net_amount_cents": 1000,
			"payments": []map[string]interface{}{
				{"label": "Deposit", "net_amount_cents": 1000, "status": "PAID", "paid_at": "2025-03-09T12:00:00Z"},
			},
		},
	}
	rec := do(t, r, http.MethodPatch, "/api/v1/bookings/"+b.ID+"/pricing", "manager", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pricing := decode[transport.MutationResponse](t, rec).Booking.Pricing
	assert.Equal(t, "EUR", pricing.Currency)
	assert.True(t, pricing.Summary.IsScheduleBalanced)
}

func TestUnknownBooking(t *testing.T) {
	r := newEngine(t)
	rec := do(t, r, http.MethodGet, "/api/v1/bookings/bkg_nope", "manager", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperr.CodeBookingNotFound, decode[httpkit.ErrorResponse](t, rec).Code)
}

func TestActivitiesAndCustomers(t *testing.T) {
	r := newEngine(t)
	b := createLead(t, r)

	rec := do(t, r, http.MethodPost, "/api/v1/bookings/"+b.ID+"/activities", "manager", transport.CreateActivityRequest{Type: "EMAIL", Detail: "Sent itinerary"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/api/v1/bookings/"+b.ID+"/activities", "manager", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[transport.ActivityListResponse](t, rec)
	assert.Equal(t, 3, list.Total)

	rec = do(t, r, http.MethodGet, "/api/v1/customers?search=mai", "manager", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	customers := decode[transport.CustomerListResponse](t, rec)
	require.Equal(t, 1, customers.Total)

	rec = do(t, r, http.MethodGet, "/api/v1/customers/"+customers.Items[0].ID, "manager", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[transport.CustomerDetailResponse](t, rec).Bookings, 1)

	rec = do(t, r, http.MethodGet, "/api/v1/bookings?page_size=500", "manager", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
