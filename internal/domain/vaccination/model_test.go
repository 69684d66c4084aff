package vaccination

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/schoolhealth/nurse-console/internal/console"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func validSession() Session {
	return Session{
		Name:             "HPV dose 1",
		VaccineType:      "HPV",
		TargetClasses:    []string{"7A", "7B"},
		ScheduledAt:      testNow.AddDate(0, 0, 14),
		TotalStudents:    52,
		ApprovedStudents: 0,
	}
}

func TestSession_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Session)
		field  string
	}{
		{"valid", func(*Session) {}, ""},
		{"no name", func(s *Session) { s.Name = "  " }, "name"},
		{"no vaccine", func(s *Session) { s.VaccineType = "" }, "vaccineType"},
		{"no classes", func(s *Session) { s.TargetClasses = nil }, "targetClasses"},
		{"no schedule", func(s *Session) { s.ScheduledAt = time.Time{} }, "scheduledAt"},
		{"in the past", func(s *Session) { s.ScheduledAt = testNow.Add(-time.Hour) }, "scheduledAt"},
		{"approved over total", func(s *Session) { s.ApprovedStudents = 53 }, "approvedStudents"},
		{"approved equals total", func(s *Session) { s.ApprovedStudents = 52 }, ""},
		{"scheduled session in the past", func(s *Session) {
			s.Status = StatusScheduled
			s.ScheduledAt = testNow.Add(-time.Hour)
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSession()
			tt.mutate(&s)
			err := s.Validate(testNow)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			ve, ok := err.(*console.ValidationError)
			if !ok {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, ve.Field)
			}
		})
	}
}

func TestMachine_Offered(t *testing.T) {
	tests := []struct {
		status console.Status
		want   []console.Action
	}{
		{StatusPendingApproval, []console.Action{console.ActionApprove, console.ActionDecline}},
		{StatusWaitingForParentConsent, []console.Action{console.ActionFinalize}},
		{StatusScheduled, []console.Action{console.ActionComplete}},
		{StatusDeclined, nil},
		{StatusCompleted, nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, Machine.Offered(tt.status)); diff != "" {
			t.Errorf("Offered(%s) mismatch (-want +got):\n%s", tt.status, diff)
		}
	}
}

func TestMachine_ScheduledRefusesFinalize(t *testing.T) {
	if _, err := Machine.Check(StatusScheduled, console.ActionFinalize); !console.IsInvalidTransition(err) {
		t.Errorf("expected invalid transition, got %v", err)
	}
}

func TestSession_Stamp(t *testing.T) {
	decline, _ := Machine.Check(StatusPendingApproval, console.ActionDecline)
	s := validSession()
	s.Status = StatusPendingApproval
	got := s.Stamp(decline, " clashes with exams ", "nurse-1", testNow)
	if got.Status != StatusDeclined || got.DeclineReason != "clashes with exams" || got.ApprovedBy != "" {
		t.Errorf("unexpected decline: %+v", got)
	}

	approve, _ := Machine.Check(StatusPendingApproval, console.ActionApprove)
	got = s.Stamp(approve, "consent forms sent", "nurse-1", testNow)
	if got.Status != StatusWaitingForParentConsent || got.ApprovedBy != "nurse-1" || got.ApprovalNotes != "consent forms sent" {
		t.Errorf("unexpected approve: %+v", got)
	}
}

func TestFlagsAndConsentRate(t *testing.T) {
	sessions := []Session{
		{TotalStudents: 40, ApprovedStudents: 30},
		{TotalStudents: 10, ApprovedStudents: 5},
	}
	want := map[string]int{FlagTotalStudents: 50, FlagApprovedStudents: 35}
	if diff := cmp.Diff(want, Flags(sessions)); diff != "" {
		t.Errorf("Flags mismatch (-want +got):\n%s", diff)
	}
	if r := sessions[0].ConsentRate(); r != 0.75 {
		t.Errorf("ConsentRate = %v", r)
	}
	if r := (Session{}).ConsentRate(); r != 0 {
		t.Errorf("empty ConsentRate = %v", r)
	}
}
