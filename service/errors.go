package service

import (
	"errors"
	"fmt"
)

// Synchronous rejection errors returned by ReviewProcessor.Submit.
var (
	ErrValidation  = errors.New("invalid review request")
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrNotFound    = errors.New("submission not found")
)

// ErrNoProvider is returned by the provider chain when no backend is
// configured. It surfaces as a failed submission, never as a Submit error.
var ErrNoProvider = errors.New("no review provider configured")

// ProviderError wraps any upstream failure from a review backend
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
