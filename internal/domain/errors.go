package domain

import "errors"

// Sentinel errors used throughout the worker.
// The consumer maps them to outcomes; callers match with errors.Is.
var (
	ErrMalformedPayload = errors.New("malformed notification payload")
	ErrUnknownKind      = errors.New("unknown notification kind: must be otp, alert, or marketing")
	ErrArchiveNotFound  = errors.New("archived payload not found")
	ErrNoTags           = errors.New("at least one delivery tag is required")
	ErrTooManyTags      = errors.New("replay batch cannot exceed 1000 delivery tags")
	ErrCircuitOpen      = errors.New("channel circuit breaker is open")
)
