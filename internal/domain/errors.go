package domain

import "errors"

// ErrInvalidID and related errors describe domain validation failures.
var (
	ErrInvalidID        = errors.New("invalid id")
	ErrInvalidName      = errors.New("invalid name")
	ErrInvalidTitle     = errors.New("invalid title")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrInvalidTime      = errors.New("invalid time of day")
	ErrInvalidTaskType  = errors.New("invalid task type")
	ErrInvalidPolicy    = errors.New("invalid collaboration policy")
)
