package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestSentinelMatching(t *testing.T) {
	wrapped := fmt.Errorf("list transactions: %w", Wrap(CodeAuthRequired, "session expired", nil))
	if !IsAuthRequired(wrapped) {
		t.Fatal("expected auth-required to match through wrapping")
	}
	if IsTimeout(wrapped) {
		t.Fatal("auth error must not match timeout")
	}
	if Code(errors.New("plain")) != CodeInternal {
		t.Fatal("plain errors map to INTERNAL")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		ErrAuthRequired:          http.StatusUnauthorized,
		ErrTimeout:               http.StatusGatewayTimeout,
		ErrNotFound:              http.StatusNotFound,
		Invalid(errors.New("x")): http.StatusBadRequest,
		errors.New("boom"):       http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := HTTPStatus(err); got != want {
			t.Errorf("%v: expected %d, got %d", err, want, got)
		}
	}
}
