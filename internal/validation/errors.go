// Package validation defines the error taxonomy shared by the lab order
// reconciliation and test catalog components. Handlers translate these
// into HTTP responses; services return them unwrapped so callers can
// match with errors.As.
package validation

import (
	"errors"
	"fmt"
)

// ValidationError is a user-correctable input problem. The save or
// operation that triggered it is refused and the message is surfaced
// verbatim to the caller.
type ValidationError struct {
	Field string
	Row   int // 1-based child row index, 0 when not row-scoped
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row #%d: %s", e.Row, e.Msg)
	}
	return e.Msg
}

// ConflictError is an attempted mutation of a finalized record. It is
// fatal to the triggering call and must not be retried.
type ConflictError struct {
	Resource string
	ID       string
	Msg      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Resource, e.ID, e.Msg)
}

// IntegrityGuardError blocks an entire save because one of its edits
// would orphan or destroy a record that already carries results.
type IntegrityGuardError struct {
	Resource string
	ID       string
	Msg      string
}

func (e *IntegrityGuardError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Resource, e.ID, e.Msg)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func IsGuard(err error) bool {
	var g *IntegrityGuardError
	return errors.As(err, &g)
}
