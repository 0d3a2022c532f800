package access

import (
	"errors"
	"fmt"
)

// Validation failures returned to callers as typed results. Handlers map
// these to 404/409-class responses; anything else is an infra failure.
var (
	ErrUserNotFound     = errors.New("no such user exists")
	ErrMaterialNotFound = errors.New("no such study material exists")
	ErrRequestNotFound  = errors.New("no such pending request exists")
	ErrDuplicateRequest = errors.New("request already exists")
	ErrAlreadyRequested = errors.New("user already has an entitlement for the study material")
)

// BatchError reports a failed atomic commit. The store's all-or-nothing
// guarantee means no partial state was applied; the whole operation is safe
// to retry from the start.
type BatchError struct {
	Op  string
	Err error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch commit failed (%s): %v", e.Op, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
