// Package regerr defines sentinel errors shared across the ingestion pipeline
// so callers can distinguish recoverable conditions from true failures.
package regerr

import "errors"

var (
	// ErrDuplicateRecord names a natural-key match that already exists. No
	// function returns it: queries.InsertRecord reports a duplicate by
	// returning inserted == false with a nil error.
	ErrDuplicateRecord = errors.New("record already exists for natural key")

	// ErrNotFound indicates a lookup found no matching row.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRecord indicates a raw record failed validity checks
	// (missing section, date, license number, or application type).
	ErrInvalidRecord = errors.New("invalid record")

	// ErrValidatorUnavailable indicates the address validator collaborator
	// could not be reached or is not configured.
	ErrValidatorUnavailable = errors.New("address validator unavailable")
)
