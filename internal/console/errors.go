package console

import (
	"errors"
	"fmt"
)

// Common errors returned by the list controller and the coordinator.
var (
	ErrRecordNotFound = errors.New("record is not in the current list")
	ErrBusy           = errors.New("a transition is already in progress for this record")
	ErrStaleResponse  = errors.New("response superseded by a newer request")
	ErrNotCancelable  = errors.New("record can no longer be cancelled")
)

// ValidationError is raised before any network call when user input
// violates a form or justification rule.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// InvalidTransitionError is raised when an action is not legal from the
// record's current status.
type InvalidTransitionError struct {
	Resource string
	From     Status
	Action   Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: action %q is not allowed from status %q", e.Resource, e.Action, e.From)
}

// GatewayError covers failure envelopes, transport faults and malformed
// responses. Message is what the user sees.
type GatewayError struct {
	Op      string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsInvalidTransition reports whether err is an *InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var ie *InvalidTransitionError
	return errors.As(err, &ie)
}

// IsGateway reports whether err is a *GatewayError.
func IsGateway(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}
