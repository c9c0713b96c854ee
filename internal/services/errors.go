package services

import "errors"

// Sentinel errors returned by services. Handlers translate these to HTTP
// statuses at the boundary; anything else is treated as an internal error
// and never echoed to the client.
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("invalid input")
	ErrConflict           = errors.New("state conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInsufficientPoints = errors.New("insufficient points")
)
