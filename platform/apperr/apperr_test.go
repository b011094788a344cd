package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindNotFound, http.StatusNotFound},
		{KindValidation, http.StatusUnprocessableEntity},
		{KindBadRequest, http.StatusBadRequest},
		{KindConflict, http.StatusConflict},
		{KindForbidden, http.StatusForbidden},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindInternal, http.StatusInternalServerError},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindUnknown, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if got := New(tt.kind, "x").HTTPStatus(); got != tt.want {
			t.Errorf("kind %d: expected %d, got %d", tt.kind, tt.want, got)
		}
	}
}

func TestResponseCodePrefersExplicitCode(t *testing.T) {
	err := Conflict("stale").WithCode(CodeBookingHashMismatch)
	if err.ResponseCode() != CodeBookingHashMismatch {
		t.Fatalf("expected explicit code, got %s", err.ResponseCode())
	}
	if Conflict("dup").ResponseCode() != CodeConflict {
		t.Fatalf("expected default conflict code")
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := NotFound("booking not found").WithCode(CodeBookingNotFound)
	wrapped := fmt.Errorf("load: %w", base)

	if !Is(wrapped, KindNotFound) {
		t.Fatalf("expected wrapped error to keep its kind")
	}
	if GetCode(wrapped) != CodeBookingNotFound {
		t.Fatalf("expected wrapped error to keep its code, got %q", GetCode(wrapped))
	}
	if GetKind(errors.New("plain")) != KindUnknown {
		t.Fatalf("expected plain error to be KindUnknown")
	}
}

func TestErrorIncludesOp(t *testing.T) {
	err := Validation("email is invalid").WithOp("bookings.CreateLead")
	if err.Error() != "bookings.CreateLead: email is invalid" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
