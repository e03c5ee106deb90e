package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and clients return these
// (optionally wrapped) so services can translate them into domain errors.
//
// - ErrNotFound: entity does not exist in store
// - ErrConflict: entity with the same identity already exists
// - ErrUnavailable: dependency temporarily unavailable (open circuit, refused connection)
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
