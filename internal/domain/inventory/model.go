// Package inventory manages the medicine and supply stock of the medical
// office: items are requested, then approved or rejected by staff.
package inventory

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/schoolhealth/nurse-console/internal/console"
)

const (
	StatusPending  console.Status = "Pending"
	StatusApproved console.Status = "Approved"
	StatusRejected console.Status = "Rejected"
	StatusInactive console.Status = "Inactive"
)

type Kind string

const (
	KindMedication Kind = "Medication"
	KindSupply     Kind = "Supply"
)

type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityNormal   Priority = "Normal"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

var validKinds = map[Kind]bool{KindMedication: true, KindSupply: true}

var validPriorities = map[Priority]bool{
	PriorityLow: true, PriorityNormal: true, PriorityHigh: true, PriorityCritical: true,
}

// Flag keys counted by Flags.
const (
	FlagLowStock     = "lowStock"
	FlagExpiringSoon = "expiringSoon"
	FlagExpired      = "expired"
	FlagUrgent       = "urgent"
)

const (
	ListFallbackMessage   = "Unable to load inventory. Please try again."
	ActionFallbackMessage = "Unable to update the inventory item. Please try again."
)

// Machine is the approval workflow of an inventory item. Inactive is set by
// the backend and has no user transitions.
var Machine = console.NewMachine("inventory item",
	console.Transition{From: StatusPending, Action: console.ActionApprove, To: StatusApproved, Justification: console.JustificationNotes},
	console.Transition{From: StatusPending, Action: console.ActionReject, To: StatusRejected, Justification: console.JustificationReason},
)

// Item is a medicine or supply tracked by the office.
type Item struct {
	ID              uuid.UUID      `json:"id"`
	Kind            Kind           `json:"kind"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	Dosage          string         `json:"dosage,omitempty"`
	Form            string         `json:"form,omitempty"`
	Unit            string         `json:"unit,omitempty"`
	Quantity        int            `json:"quantity"`
	ExpiryDate      *time.Time     `json:"expiryDate,omitempty"`
	Priority        Priority       `json:"priority"`
	Urgent          bool           `json:"urgent"`
	Justification   string         `json:"justification,omitempty"`
	Status          console.Status `json:"status"`
	ApprovedBy      string         `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time     `json:"approvedAt,omitempty"`
	ApprovalNotes   string         `json:"approvalNotes,omitempty"`
	RejectedAt      *time.Time     `json:"rejectedAt,omitempty"`
	RejectionReason string         `json:"rejectionReason,omitempty"`

	// Derived by the backend, never sent by the client.
	LowStock     bool `json:"lowStock"`
	ExpiringSoon bool `json:"expiringSoon"`
	Expired      bool `json:"expired"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (it Item) RecordID() uuid.UUID          { return it.ID }
func (it Item) RecordStatus() console.Status { return it.Status }

// WithTransition returns the item moved along tr with the justification
// stored in the field the transition asks for.
func (it Item) WithTransition(tr console.Transition, justification string) Item {
	it.Status = tr.To
	text := strings.TrimSpace(justification)
	switch tr.Justification {
	case console.JustificationNotes:
		it.ApprovalNotes = text
	case console.JustificationReason:
		it.RejectionReason = text
	}
	return it
}

// Stamp applies tr and records who performed it and when.
func (it Item) Stamp(tr console.Transition, justification, actor string, now time.Time) Item {
	it = it.WithTransition(tr, justification)
	switch tr.To {
	case StatusApproved:
		it.ApprovedBy = actor
		it.ApprovedAt = &now
	case StatusRejected:
		it.RejectedAt = &now
	}
	it.UpdatedAt = now
	return it
}

// Validate checks the client-side form invariants at create or edit time.
func (it Item) Validate(now time.Time) error {
	if strings.TrimSpace(it.Name) == "" {
		return &console.ValidationError{Field: "name", Message: "name is required"}
	}
	if !validKinds[it.Kind] {
		return &console.ValidationError{Field: "kind", Message: "kind must be Medication or Supply"}
	}
	if it.Kind == KindMedication && strings.TrimSpace(it.Dosage) == "" {
		return &console.ValidationError{Field: "dosage", Message: "dosage is required for medication"}
	}
	if !validPriorities[it.Priority] {
		return &console.ValidationError{Field: "priority", Message: "invalid priority: " + string(it.Priority)}
	}
	if it.Quantity <= 0 {
		return &console.ValidationError{Field: "quantity", Message: "quantity must be positive"}
	}
	if it.Urgent && it.Priority != PriorityHigh && it.Priority != PriorityCritical {
		return &console.ValidationError{Field: "urgent", Message: "only High or Critical items can be urgent"}
	}
	if it.ExpiryDate != nil && !it.ExpiryDate.After(now) {
		return &console.ValidationError{Field: "expiryDate", Message: "expiry date must be in the future"}
	}
	return nil
}

// Thresholds drive the derived stock flags.
type Thresholds struct {
	LowStock      int
	ExpiryWarning time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{LowStock: 10, ExpiryWarning: 30 * 24 * time.Hour}
}

// WithDerivedFlags recomputes LowStock, ExpiringSoon and Expired at now.
func (it Item) WithDerivedFlags(now time.Time, th Thresholds) Item {
	it.LowStock = it.Quantity < th.LowStock
	it.Expired = it.ExpiryDate != nil && !it.ExpiryDate.After(now)
	it.ExpiringSoon = !it.Expired && it.ExpiryDate != nil && it.ExpiryDate.Before(now.Add(th.ExpiryWarning))
	return it
}

// Flags counts the flagged items of a page.
func Flags(items []Item) map[string]int {
	out := map[string]int{FlagLowStock: 0, FlagExpiringSoon: 0, FlagExpired: 0, FlagUrgent: 0}
	for _, it := range items {
		if it.LowStock {
			out[FlagLowStock]++
		}
		if it.ExpiringSoon {
			out[FlagExpiringSoon]++
		}
		if it.Expired {
			out[FlagExpired]++
		}
		if it.Urgent {
			out[FlagUrgent]++
		}
	}
	return out
}
