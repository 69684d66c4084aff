// Package vaccination schedules school vaccination sessions: nurse approval,
// the parent consent window, and completion on the day.
package vaccination

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/schoolhealth/nurse-console/internal/console"
)

const (
	StatusPendingApproval         console.Status = "PendingApproval"
	StatusWaitingForParentConsent console.Status = "WaitingForParentConsent"
	StatusScheduled               console.Status = "Scheduled"
	StatusDeclined                console.Status = "Declined"
	StatusCompleted               console.Status = "Completed"
)

// Flags keys.
const (
	FlagTotalStudents    = "totalStudents"
	FlagApprovedStudents = "approvedStudents"
)

const (
	ListFallbackMessage   = "Unable to load vaccination sessions. Please try again."
	ActionFallbackMessage = "Unable to update the vaccination session. Please try again."
)

var Machine = console.NewMachine("vaccination session",
	console.Transition{From: StatusPendingApproval, Action: console.ActionApprove, To: StatusWaitingForParentConsent, Justification: console.JustificationNotes},
	console.Transition{From: StatusPendingApproval, Action: console.ActionDecline, To: StatusDeclined, Justification: console.JustificationReason},
	console.Transition{From: StatusWaitingForParentConsent, Action: console.ActionFinalize, To: StatusScheduled},
	console.Transition{From: StatusScheduled, Action: console.ActionComplete, To: StatusCompleted},
)

type Session struct {
	ID               uuid.UUID      `json:"id"`
	Name             string         `json:"name"`
	VaccineType      string         `json:"vaccineType"`
	TargetClasses    []string       `json:"targetClasses"`
	ScheduledAt      time.Time      `json:"scheduledAt"`
	Status           console.Status `json:"status"`
	TotalStudents    int            `json:"totalStudents"`
	ApprovedStudents int            `json:"approvedStudents"`
	ApprovedBy       string         `json:"approvedBy,omitempty"`
	ApprovalNotes    string         `json:"approvalNotes,omitempty"`
	DeclineReason    string         `json:"declineReason,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

func (s Session) RecordID() uuid.UUID          { return s.ID }
func (s Session) RecordStatus() console.Status { return s.Status }

func (s Session) WithTransition(tr console.Transition, justification string) Session {
	s.Status = tr.To
	text := strings.TrimSpace(justification)
	switch tr.Justification {
	case console.JustificationNotes:
		s.ApprovalNotes = text
	case console.JustificationReason:
		s.DeclineReason = text
	}
	return s
}

// Stamp applies tr on behalf of actor.
func (s Session) Stamp(tr console.Transition, justification, actor string, now time.Time) Session {
	s = s.WithTransition(tr, justification)
	if tr.Action == console.ActionApprove {
		s.ApprovedBy = actor
	}
	s.UpdatedAt = now
	return s
}

// Validate checks the form invariants of a session. The scheduled time is
// only checked against now while the session is still being planned.
func (s Session) Validate(now time.Time) error {
	switch {
	case strings.TrimSpace(s.Name) == "":
		return &console.ValidationError{Field: "name", Message: "session name is required"}
	case strings.TrimSpace(s.VaccineType) == "":
		return &console.ValidationError{Field: "vaccineType", Message: "vaccine type is required"}
	case len(s.TargetClasses) == 0:
		return &console.ValidationError{Field: "targetClasses", Message: "at least one class is required"}
	case s.ScheduledAt.IsZero():
		return &console.ValidationError{Field: "scheduledAt", Message: "scheduled time is required"}
	case s.TotalStudents < 0:
		return &console.ValidationError{Field: "totalStudents", Message: "total students must not be negative"}
	case s.ApprovedStudents < 0 || s.ApprovedStudents > s.TotalStudents:
		return &console.ValidationError{Field: "approvedStudents", Message: "approved students must be between 0 and total students"}
	}
	if (s.Status == "" || s.Status == StatusPendingApproval) && !s.ScheduledAt.After(now) {
		return &console.ValidationError{Field: "scheduledAt", Message: "scheduled time must be in the future"}
	}
	return nil
}

// ConsentRate is the share of students with parent consent, in [0, 1].
func (s Session) ConsentRate() float64 {
	if s.TotalStudents == 0 {
		return 0
	}
	return float64(s.ApprovedStudents) / float64(s.TotalStudents)
}

// Flags sums the student counters of a page.
func Flags(sessions []Session) map[string]int {
	out := map[string]int{FlagTotalStudents: 0, FlagApprovedStudents: 0}
	for _, s := range sessions {
		out[FlagTotalStudents] += s.TotalStudents
		out[FlagApprovedStudents] += s.ApprovedStudents
	}
	return out
}
