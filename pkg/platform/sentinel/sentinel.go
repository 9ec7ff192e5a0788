package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and services translate them into domain errors:
//   - ErrNotFound: record does not exist or is not visible to the caller
//   - ErrConflict: unique key taken or version mismatch
//   - ErrForbidden: caller holds no grant for the write
//   - ErrInvalidQuery: query arguments rejected before reaching storage
//   - ErrExpired: session or token past its expiry
//   - ErrInvalidState: record in wrong state for the operation
//   - ErrUnavailable: backend temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidQuery = errors.New("invalid query")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
