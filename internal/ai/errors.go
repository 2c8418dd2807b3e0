// Package ai holds the error vocabulary shared by the text and speech providers.
package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// StatusError is returned by a provider when its endpoint answered with a non-success status.
type StatusError struct {
	Provider string
	Code     int
	Message  string
	// RetryAfter is the wait the provider asked for before the next request, if any.
	RetryAfter time.Duration
	// Permanent marks a failure that must not be retried whatever its code.
	Permanent bool
}

func (e *StatusError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, msg)
}

// Transient reports whether the failure is worth one more attempt against the same provider.
func (e *StatusError) Transient() bool {
	if e.Permanent {
		return false
	}
	return e.Code >= http.StatusInternalServerError || e.Code == http.StatusTooManyRequests
}

// IsTransient reports whether err (or anything it wraps) is a transient provider failure.
func IsTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}

	var transient interface{ Transient() bool }
	if errors.As(err, &transient) {
		return transient.Transient()
	}

	return false
}

// RetryAfter returns the wait requested by a provider through a wrapped StatusError, or zero.
func RetryAfter(err error) time.Duration {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return statusErr.RetryAfter
	}
	return 0
}
