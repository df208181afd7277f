package domain

import "errors"

var (
	// ErrPayloadRequired is returned when a job is submitted without a payload
	ErrPayloadRequired = errors.New("payload is required")

	// ErrInvalidRequestID is returned when a request id is not a well-formed UUID
	ErrInvalidRequestID = errors.New("invalid request ID format")

	// ErrInvalidVendor is returned for vendor identifiers outside the known set
	ErrInvalidVendor = errors.New("invalid vendor")

	// ErrInvalidStatus is returned for status filters outside the known set
	ErrInvalidStatus = errors.New("invalid status")

	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrNoMatchingJob is returned when a webhook finds no processing job to complete
	ErrNoMatchingJob = errors.New("no processing job found for this vendor")

	// ErrJobNotInState is returned when a conditional status update matches no row
	ErrJobNotInState = errors.New("job not in expected status")

	// ErrRateLimitTimeout is returned when a vendor slot could not be acquired in time
	ErrRateLimitTimeout = errors.New("rate limit wait timeout")

	// ErrPersistence wraps job store failures
	ErrPersistence = errors.New("job store unavailable")

	// ErrQueue wraps queue failures
	ErrQueue = errors.New("queue unavailable")
)

// IsValidation reports whether err is a client-side validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrPayloadRequired) ||
		errors.Is(err, ErrInvalidRequestID) ||
		errors.Is(err, ErrInvalidVendor) ||
		errors.Is(err, ErrInvalidStatus)
}
