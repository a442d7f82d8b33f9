package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Invalid("date is required"), http.StatusBadRequest},
		{New(ErrNotFound, "appointment not found"), http.StatusNotFound},
		{Forbidden("not your appointment"), http.StatusForbidden},
		{New(ErrConflict, "slot taken"), http.StatusConflict},
		{New(ErrPaymentRequired, "pay first"), http.StatusPaymentRequired},
		{Wrap(ErrStorage, "upload failed", errors.New("s3 down")), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestHTTPStatus_WrappedWithContext(t *testing.T) {
	sentinel := New(ErrConflict, "this slot was just taken")
	err := fmt.Errorf("book slot: %w", sentinel)
	if HTTPStatus(err) != http.StatusConflict {
		t.Errorf("expected 409 through fmt wrap, got %d", HTTPStatus(err))
	}
	if !errors.Is(err, sentinel) {
		t.Error("expected errors.Is to match the sentinel")
	}
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(ErrStorage, "store file", cause)
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable")
	}
	if !errors.Is(err, ErrStorage) {
		t.Error("expected kind to be reachable")
	}
}

func TestToHTTP_Message(t *testing.T) {
	he := ToHTTP(fmt.Errorf("ctx: %w", New(ErrPaymentRequired, "mark payment as received before uploading the report")))
	if he.Code != http.StatusPaymentRequired {
		t.Errorf("expected 402, got %d", he.Code)
	}
	if he.Message != "mark payment as received before uploading the report" {
		t.Errorf("unexpected message: %v", he.Message)
	}

	he = ToHTTP(errors.New("pq: relation does not exist"))
	if he.Message != http.StatusText(http.StatusInternalServerError) {
		t.Errorf("expected internal details hidden, got %v", he.Message)
	}
}
