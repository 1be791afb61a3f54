package exchange

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrMalformedResponse marks a venue response whose body could not be
// decoded into the expected shape. Treated as fatal: retrying a request
// the venue may already have executed risks a duplicate order.
var ErrMalformedResponse = errors.New("malformed exchange response")

// APIError is a structured error the venue returned with a non-2xx status.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("exchange error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("exchange error %d: %s", e.StatusCode, e.Message)
}

// transientPatterns are message fragments the venue (and intermediaries)
// use for conditions that clear on their own. Matched case-insensitively.
var transientPatterns = []string{
	"timeout",
	"timed out",
	"rate limit",
	"too many requests",
	"temporarily unavailable",
	"service unavailable",
	"connection reset",
	"connection refused",
	"eof",
}

// IsTransient reports whether err is worth retrying: network timeouts,
// 5xx and 429 statuses, and known transient message patterns. Everything
// else, including ErrMalformedResponse and order rejections, is fatal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMalformedResponse) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
