// Package medrequest handles medication requests submitted by parents for
// their children, and the nurse approval workflow that follows.
package medrequest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/schoolhealth/nurse-console/internal/console"
)

const (
	StatusPendingApproval console.Status = "PendingApproval"
	StatusApproved        console.Status = "Approved"
	StatusRejected        console.Status = "Rejected"
	StatusActive          console.Status = "Active"
	StatusCompleted       console.Status = "Completed"
	StatusDiscontinued    console.Status = "Discontinued"
)

type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityNormal   Priority = "Normal"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

var validPriorities = map[Priority]bool{
	PriorityLow: true, PriorityNormal: true, PriorityHigh: true, PriorityCritical: true,
}

var ErrNotEditable = errors.New("medication request can only be edited while pending approval")

const (
	ListFallbackMessage   = "Unable to load medication requests. Please try again."
	ActionFallbackMessage = "Unable to update the medication request. Please try again."
)

// Machine is the lifecycle of a medication request. Activation, completion
// and discontinuation happen on the backend and are never offered to staff.
var Machine = console.NewMachine("medication request",
	console.Transition{From: StatusPendingApproval, Action: console.ActionApprove, To: StatusApproved, Justification: console.JustificationNotes},
	console.Transition{From: StatusPendingApproval, Action: console.ActionReject, To: StatusRejected, Justification: console.JustificationReason},
	console.Transition{From: StatusApproved, Action: console.ActionActivate, To: StatusActive, External: true},
	console.Transition{From: StatusActive, Action: console.ActionComplete, To: StatusCompleted, External: true},
	console.Transition{From: StatusActive, Action: console.ActionDiscontinue, To: StatusDiscontinued, External: true},
)

// Line is one medication the parent sent in with the request.
type Line struct {
	Name         string     `json:"name"`
	Dosage       string     `json:"dosage"`
	QuantitySent int        `json:"quantitySent"`
	Frequency    string     `json:"frequency"`
	TimesOfDay   []string   `json:"timesOfDay,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	Instructions string     `json:"instructions,omitempty"`
	ExpiryDate   *time.Time `json:"expiryDate,omitempty"`
}

type Request struct {
	ID              uuid.UUID      `json:"id"`
	Code            string         `json:"code"`
	StudentID       uuid.UUID      `json:"studentId"`
	StudentName     string         `json:"studentName"`
	ParentID        uuid.UUID      `json:"parentId"`
	ParentName      string         `json:"parentName"`
	Lines           []Line         `json:"lines"`
	Priority        Priority       `json:"priority"`
	Status          console.Status `json:"status"`
	SubmittedAt     time.Time      `json:"submittedAt"`
	ApprovedBy      string         `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time     `json:"approvedAt,omitempty"`
	ApprovalNotes   string         `json:"approvalNotes,omitempty"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (r Request) RecordID() uuid.UUID          { return r.ID }
func (r Request) RecordStatus() console.Status { return r.Status }

func (r Request) WithTransition(tr console.Transition, justification string) Request {
	r.Status = tr.To
	text := strings.TrimSpace(justification)
	switch tr.Justification {
	case console.JustificationNotes:
		r.ApprovalNotes = text
	case console.JustificationReason:
		r.RejectionReason = text
	}
	return r
}

// Stamp applies tr and records the approver and time.
func (r Request) Stamp(tr console.Transition, justification, actor string, now time.Time) Request {
	r = r.WithTransition(tr, justification)
	if tr.To == StatusApproved {
		r.ApprovedBy = actor
		r.ApprovedAt = &now
	}
	r.UpdatedAt = now
	return r
}

// CanCancel reports whether the parent or staff may still withdraw the
// request.
func (r Request) CanCancel() bool {
	return r.Status == StatusPendingApproval
}

// Validate checks the form invariants of a submitted request.
func (r Request) Validate(now time.Time) error {
	if r.StudentID == uuid.Nil {
		return &console.ValidationError{Field: "studentId", Message: "student is required"}
	}
	if r.ParentID == uuid.Nil {
		return &console.ValidationError{Field: "parentId", Message: "parent is required"}
	}
	if !validPriorities[r.Priority] {
		return &console.ValidationError{Field: "priority", Message: "invalid priority: " + string(r.Priority)}
	}
	if len(r.Lines) == 0 {
		return &console.ValidationError{Field: "lines", Message: "at least one medication is required"}
	}
	for i, l := range r.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		switch {
		case strings.TrimSpace(l.Name) == "":
			return &console.ValidationError{Field: field + ".name", Message: "medication name is required"}
		case strings.TrimSpace(l.Dosage) == "":
			return &console.ValidationError{Field: field + ".dosage", Message: "dosage is required"}
		case l.QuantitySent <= 0:
			return &console.ValidationError{Field: field + ".quantitySent", Message: "quantity sent must be positive"}
		case l.ExpiryDate != nil && !l.ExpiryDate.After(now):
			return &console.ValidationError{Field: field + ".expiryDate", Message: "expiry date must be in the future"}
		}
	}
	return nil
}

// Medications returns the line names joined for display.
func (r Request) Medications() string {
	names := make([]string, len(r.Lines))
	for i, l := range r.Lines {
		names[i] = l.Name
	}
	return strings.Join(names, ", ")
}

// FlagKey is the Flags key counting requests of priority p.
func FlagKey(p Priority) string { return "priority:" + string(p) }

// Flags counts the requests of a page by priority.
func Flags(reqs []Request) map[string]int {
	out := make(map[string]int, len(validPriorities))
	for p := range validPriorities {
		out[FlagKey(p)] = 0
	}
	for _, r := range reqs {
		if validPriorities[r.Priority] {
			out[FlagKey(r.Priority)]++
		}
	}
	return out
}
