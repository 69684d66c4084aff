// Package console implements the list-and-approve workflow shared by every
// list page of the medical office console: a paginated, filtered, debounced
// list of records, and the state machines that move those records through
// their approval lifecycle.
package console

import (
	"strings"

	"github.com/google/uuid"
)

// Status is the lifecycle status of a record as reported by the backend.
type Status string

// Action names a user-triggered transition.
type Action string

const (
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionDecline     Action = "decline"
	ActionFinalize    Action = "finalize"
	ActionComplete    Action = "complete"
	ActionActivate    Action = "activate"
	ActionDiscontinue Action = "discontinue"
)

// Justification describes the free text a transition requires.
type Justification int

const (
	JustificationNone Justification = iota
	JustificationNotes
	JustificationReason
)

// Key returns the payload key the justification travels under.
func (j Justification) Key() string {
	switch j {
	case JustificationNotes:
		return "notes"
	case JustificationReason:
		return "reason"
	default:
		return ""
	}
}

// Record is implemented by every resource kind the console lists.
// WithTransition returns a copy of the record with the transition applied;
// it is only used for the optimistic patch shown before the list reloads.
type Record[T any] interface {
	RecordID() uuid.UUID
	RecordStatus() Status
	WithTransition(tr Transition, justification string) T
}

// Transition is a single allowed edge in a resource state machine.
type Transition struct {
	From          Status
	Action        Action
	To            Status
	Justification Justification
	// External transitions are performed by the backend or another
	// collaborator. They are part of the lifecycle but never offered to
	// the user.
	External bool
}

// Payload builds the transition body carrying the justification under
// the key the action expects.
func (t Transition) Payload(text string) TransitionPayload {
	text = strings.TrimSpace(text)
	switch t.Justification {
	case JustificationNotes:
		return TransitionPayload{Notes: text}
	case JustificationReason:
		return TransitionPayload{Reason: text}
	default:
		return TransitionPayload{}
	}
}

// Machine is the transition table of one resource kind.
type Machine struct {
	resource         string
	transitions      []Transition
	minJustification int
}

// NewMachine builds a machine for the named resource kind.
func NewMachine(resource string, transitions ...Transition) *Machine {
	return &Machine{
		resource:         resource,
		transitions:      transitions,
		minJustification: 1,
	}
}

// WithMinJustification returns a copy of the machine that requires at
// least n non-blank characters of justification.
func (m *Machine) WithMinJustification(n int) *Machine {
	if n < 1 {
		n = 1
	}
	cp := *m
	cp.minJustification = n
	return &cp
}

// Resource returns the resource kind name.
func (m *Machine) Resource() string { return m.resource }

// Transitions returns a copy of the table.
func (m *Machine) Transitions() []Transition {
	out := make([]Transition, len(m.transitions))
	copy(out, m.transitions)
	return out
}

// Lookup returns the edge for from+action, including external edges.
func (m *Machine) Lookup(from Status, action Action) (Transition, bool) {
	for _, tr := range m.transitions {
		if tr.From == from && tr.Action == action {
			return tr, true
		}
	}
	return Transition{}, false
}

// Offered returns the actions a user may trigger from the given status, in
// table order. The result depends on the status only.
func (m *Machine) Offered(from Status) []Action {
	var actions []Action
	for _, tr := range m.transitions {
		if tr.From == from && !tr.External {
			actions = append(actions, tr.Action)
		}
	}
	return actions
}

// Check resolves a user-triggered action. External or unknown edges yield
// an *InvalidTransitionError.
func (m *Machine) Check(from Status, action Action) (Transition, error) {
	tr, ok := m.Lookup(from, action)
	if !ok || tr.External {
		return Transition{}, &InvalidTransitionError{Resource: m.resource, From: from, Action: action}
	}
	return tr, nil
}

// CheckJustification validates the free text required by tr.
func (m *Machine) CheckJustification(tr Transition, text string) error {
	if tr.Justification == JustificationNone {
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return &ValidationError{Field: tr.Justification.Key(), Message: tr.Justification.Key() + " is required"}
	}
	if len([]rune(text)) < m.minJustification {
		return &ValidationError{
			Field:   tr.Justification.Key(),
			Message: tr.Justification.Key() + " is too short",
		}
	}
	return nil
}

// Terminal reports whether no transition, offered or external, leaves s.
func (m *Machine) Terminal(s Status) bool {
	for _, tr := range m.transitions {
		if tr.From == s {
			return false
		}
	}
	return true
}
