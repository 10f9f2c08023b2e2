package domain

import "errors"

// Failure kinds normalized at the chat service boundary. Everything except
// ErrCancelled is converted into a {Success:false} result with a user-safe
// message; cancellation stays distinguishable so the caller can suppress
// further UI updates.
var (
	// ErrPositionNotFound signals a show/remove against a symbol the session
	// does not hold.
	ErrPositionNotFound = errors.New("position not found")

	// ErrInsufficientShares signals a remove of more shares than held.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrStoreFailure wraps persistence-layer errors.
	ErrStoreFailure = errors.New("portfolio store failure")

	// ErrBackendFailure wraps provider or analysis-backend errors
	// (non-2xx, network).
	ErrBackendFailure = errors.New("backend failure")

	// ErrTimedOut signals the per-call processing deadline elapsed.
	ErrTimedOut = errors.New("request timed out")

	// ErrCancelled signals an explicit caller abort.
	ErrCancelled = errors.New("request cancelled")

	// ErrRateLimited signals the session exceeded its message budget.
	ErrRateLimited = errors.New("rate limited")
)
