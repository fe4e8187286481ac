package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrAlreadyHandled means a conditional status transition found the record no longer pending.
	ErrAlreadyHandled = errors.New("notification already handled")
	// ErrInvalidToken means the recipient has no usable push token.
	ErrInvalidToken = errors.New("invalid or missing delivery token")
)
