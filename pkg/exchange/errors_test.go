package exchange

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit status", &APIError{StatusCode: 429, Message: "slow down"}, true},
		{"server error status", &APIError{StatusCode: 503, Message: "unavailable"}, true},
		{"bad request status", &APIError{StatusCode: 400, Code: "bad_nonce", Message: "nonce out of sequence"}, false},
		{"unauthorized status", &APIError{StatusCode: 401, Code: "bad_signature", Message: "signature does not match owner"}, false},
		{"timeout message", errors.New("dial tcp: i/o timeout"), true},
		{"connection refused message", errors.New("connection refused"), true},
		{"wrapped transient", fmt.Errorf("failed to submit order c-1: %w", errors.New("connection reset by peer")), true},
		{"malformed response", fmt.Errorf("%w: /info bad shape", ErrMalformedResponse), false},
		{"rejection", errors.New("insufficient margin"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	withCode := &APIError{StatusCode: 400, Code: "bad_nonce", Message: "nonce out of sequence"}
	if got := withCode.Error(); got != "exchange error 400 (bad_nonce): nonce out of sequence" {
		t.Errorf("Error() = %q", got)
	}
	plain := &APIError{StatusCode: 502, Message: "bad gateway"}
	if got := plain.Error(); got != "exchange error 502: bad gateway" {
		t.Errorf("Error() = %q", got)
	}
}
