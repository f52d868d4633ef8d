package domain

import "errors"

// Common errors for the domain layer
var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateRecord = errors.New("duplicate record")
	ErrNoGroupFound    = errors.New("no group found")
	ErrInvalidInput    = errors.New("invalid input")
)
