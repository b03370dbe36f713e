package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist, or exists but is not visible to the caller.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. missing required field, non-positive participant count).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrAuthentication is returned when credentials are wrong or a session token
// is expired, revoked, or malformed. Handlers should map this to HTTP 401.
var ErrAuthentication = errors.New("authentication failed")

// ErrNotAuthenticated is returned by operations that need a session when
// there is none. Handlers should map this to HTTP 401.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrAuthorization is returned when the caller's role may not perform the
// attempted operation. Handlers should map this to HTTP 403.
var ErrAuthorization = errors.New("not authorized")

// ErrPartialWrite marks a dependent-batch insert that failed after its
// primary entity was created. It is logged, never surfaced to the caller.
var ErrPartialWrite = errors.New("partial write")

// PartialWriteError records which dependent batch failed for which entity.
type PartialWriteError struct {
	Entity   string
	EntityID uuid.UUID
	Batch    string
	Err      error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write: %s %s: %s batch: %v", e.Entity, e.EntityID, e.Batch, e.Err)
}

// Is lets errors.Is(err, ErrPartialWrite) match any PartialWriteError.
func (e *PartialWriteError) Is(target error) bool {
	return target == ErrPartialWrite
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}
