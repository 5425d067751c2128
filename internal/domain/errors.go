package domain

import "errors"

var (
	// ErrRateNotFound is returned by the rate repository when a mutation
	// or lookup targets an unknown rate id.
	ErrRateNotFound = errors.New("rate not found")

	// ErrLocationNotFound is returned by the location repository for an
	// unknown ward code.
	ErrLocationNotFound = errors.New("location not found")
)
