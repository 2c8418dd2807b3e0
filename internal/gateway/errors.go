package gateway

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProviderTimeout marks an attempt that ran past the per-attempt deadline.
	ErrProviderTimeout = errors.New("provider timed out")
	// ErrProviderError marks an attempt that failed or returned an unusable payload.
	ErrProviderError = errors.New("provider error")
	// ErrAllProvidersExhausted is matched by ExhaustedError.
	ErrAllProvidersExhausted = errors.New("all providers exhausted")
	ErrNoProviders           = errors.New("no providers configured")
)

// ExhaustedError carries every failed attempt, in the order they were made.
type ExhaustedError struct {
	Capability Capability
	Failures   []ProviderCall
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s#%d %s: %v", f.Provider, f.Attempt, f.Outcome, f.Err))
	}
	return fmt.Sprintf("%s: %s: [%s]", e.Capability, ErrAllProvidersExhausted, strings.Join(parts, "; "))
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllProvidersExhausted
}
