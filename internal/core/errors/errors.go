// Package errors provides centralized error definitions for the application.
// Errors are organized by concern to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - Unexported errors (err*): Use for internal package errors
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Registry errors.
var (
	// ErrUnknownFeed indicates a feed id is not present in the registry.
	ErrUnknownFeed = errors.New("unknown feed")

	// ErrDuplicateFeed indicates two descriptors share an id.
	ErrDuplicateFeed = errors.New("duplicate feed id")

	// ErrInvalidFeed indicates a descriptor failed validation.
	ErrInvalidFeed = errors.New("invalid feed descriptor")

	// ErrUnknownProxy indicates a proxy chain references an undefined strategy.
	ErrUnknownProxy = errors.New("unknown proxy strategy")
)

// Response and parsing errors.
var (
	// ErrEmptyResponse indicates an empty response body was received.
	ErrEmptyResponse = errors.New("empty response")

	// ErrUnexpectedShape indicates a payload did not match the expected schema.
	ErrUnexpectedShape = errors.New("unexpected payload shape")

	// ErrNoGeometry indicates a feature carries no usable geometry.
	ErrNoGeometry = errors.New("no usable geometry")
)

// Validation errors.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidViewport indicates a map viewport has no area.
	ErrInvalidViewport = errors.New("invalid viewport")
)

// Lookup errors.
var (
	// ErrNotFound is a generic not found error.
	ErrNotFound = errors.New("not found")

	// ErrGeocodeNotFound indicates the geocoder has no match for a place.
	ErrGeocodeNotFound = errors.New("geocode: place not found")
)

// Scheduling errors.
var (
	// ErrRetryInProgress indicates a retry pass is already running.
	ErrRetryInProgress = errors.New("retry pass already in progress")

	// ErrRetryGated indicates the stale retry pass ran too recently.
	ErrRetryGated = errors.New("stale retry pass gated")

	// ErrRetryDisabled indicates retries are disabled for static snapshot deployments.
	ErrRetryDisabled = errors.New("retries disabled in static snapshot mode")

	// ErrRefreshAborted indicates a refresh cycle ended without a snapshot.
	ErrRefreshAborted = errors.New("refresh cycle aborted")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
