package fetcher

import (
	"errors"
	"fmt"
	"time"

	"crypto-volatility-alerts/internal/asset"
)

// Kind classifies quote source failures. The scheduler treats every
// kind as non-fatal for the tick: log, skip the asset, let the next
// tick be the retry.
type Kind int

const (
	// KindRateLimited means the source throttled the request (HTTP 429).
	KindRateLimited Kind = iota
	// KindUnavailable covers network failures and 5xx responses.
	KindUnavailable
	// KindInvalidResponse means the payload could not be interpreted.
	KindInvalidResponse
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindUnavailable:
		return "unavailable"
	case KindInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by the quote source adapter.
type Error struct {
	Kind       Kind
	Asset      asset.Asset
	RetryAfter time.Duration // only meaningful for KindRateLimited
	cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Asset, e.Kind, e.cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.Asset, e.Kind)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

func newError(kind Kind, a asset.Asset, cause error) *Error {
	return &Error{Kind: kind, Asset: a, cause: cause}
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// IsRateLimited reports whether err is a rate-limit failure.
func IsRateLimited(err error) bool {
	fe, ok := AsError(err)
	return ok && fe.Kind == KindRateLimited
}
