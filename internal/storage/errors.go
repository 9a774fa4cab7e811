package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose key already exists.
	// Quote stores are append-only and never overwrite market data.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition is returned when a backtest run update is not
	// allowed from the run's current status (e.g. completing a failed run).
	ErrInvalidTransition = errors.New("invalid run status transition")
)
