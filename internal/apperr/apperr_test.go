package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("profileId is required"), http.StatusBadRequest},
		{"protected", Protected("default"), http.StatusBadRequest},
		{"unsupported", UnsupportedType(".exe"), http.StatusBadRequest},
		{"too large", TooLarge("big.md"), http.StatusBadRequest},
		{"not found", NotFound("missing"), http.StatusNotFound},
		{"rate limited", New(KindRateLimited, "slow down", nil), http.StatusTooManyRequests},
		{"upstream", Upstream(errors.New("boom")), http.StatusInternalServerError},
		{"plain error", errors.New("plain"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("ctx: %w", NotFound("x")), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestUpstream_MessageVerbatim(t *testing.T) {
	err := Upstream(errors.New("openai api error (status 401): bad key"))
	if Message(err) != "openai api error (status 401): bad key" {
		t.Errorf("Expected verbatim message, got %q", Message(err))
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Protected("nope"))
	if !Is(err, KindProtected) {
		t.Error("Expected wrapped error to be KindProtected")
	}
	if Is(nil, KindProtected) {
		t.Error("nil should not match any kind")
	}
}
