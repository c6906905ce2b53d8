package gateway

import "errors"

// Sentinel errors returned by gateway implementations and the JSON parsing
// helpers. Callers branch on these to decide between fallback and
// fail-safe paths.
var (
	// ErrTimeout indicates the provider did not answer within the deadline.
	ErrTimeout = errors.New("gateway: request timed out")
	// ErrMalformedOutput indicates the provider answered, but the payload
	// could not be parsed even after repair.
	ErrMalformedOutput = errors.New("gateway: malformed model output")
	// ErrUnavailable indicates the provider rejected or could not serve the
	// request for reasons other than a timeout.
	ErrUnavailable = errors.New("gateway: provider unavailable")
)
