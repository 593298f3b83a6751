package model

import "github.com/m-mizutani/goerr/v2"

// Error taxonomy of the retrieval core. Call sites wrap these sentinels
// with goerr.Wrap and extra context; callers branch with errors.Is.
var (
	// ErrValidation is a metadata gate failure. Rejected before any
	// storage side effect.
	ErrValidation = goerr.New("validation failed")

	// ErrNotFound covers unknown document/version IDs and as-of dates
	// that predate all versions of a document.
	ErrNotFound = goerr.New("not found")

	// ErrConflict means a write claimed a version sequence number that
	// is already taken. This indicates a serialization bug.
	ErrConflict = goerr.New("version sequence conflict")

	// ErrTemporal is a malformed or future-dated as-of request.
	ErrTemporal = goerr.New("invalid temporal query")

	// ErrProvider is a generation or backend-index failure. It is
	// surfaced to the caller, never masked as a low-confidence answer.
	ErrProvider = goerr.New("provider failure")
)
