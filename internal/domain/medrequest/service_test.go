package medrequest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	testclock "k8s.io/utils/clock/testing"

	"github.com/schoolhealth/nurse-console/internal/console"
	"github.com/schoolhealth/nurse-console/internal/platform/store"
)

func newTestService() *Service {
	svc := NewService(NewMemoryRepo())
	svc.SetClock(testclock.NewFakePassiveClock(testNow))
	return svc
}

func createRequests(t *testing.T, svc *Service, n int, mutate func(i int, r *Request)) []*Request {
	t.Helper()
	out := make([]*Request, n)
	for i := 0; i < n; i++ {
		r := validRequest()
		r.StudentName = fmt.Sprintf("Student %02d", i)
		if mutate != nil {
			mutate(i, &r)
		}
		if err := svc.CreateRequest(context.Background(), &r); err != nil {
			t.Fatalf("CreateRequest: %v", err)
		}
		out[i] = &r
	}
	return out
}

func TestService_CreateRequest(t *testing.T) {
	svc := newTestService()
	reqs := createRequests(t, svc, 2, func(_ int, r *Request) {
		r.Status = StatusActive
		r.Priority = ""
	})

	if reqs[0].Code != "MR-00001" || reqs[1].Code != "MR-00002" {
		t.Errorf("unexpected codes %q, %q", reqs[0].Code, reqs[1].Code)
	}
	if reqs[0].Status != StatusPendingApproval {
		t.Errorf("new requests must start pending, got %s", reqs[0].Status)
	}
	if reqs[0].Priority != PriorityNormal {
		t.Errorf("expected default priority, got %s", reqs[0].Priority)
	}
	if !reqs[0].SubmittedAt.Equal(testNow) {
		t.Errorf("SubmittedAt = %v", reqs[0].SubmittedAt)
	}
}

func TestService_CreateRequest_Invalid(t *testing.T) {
	svc := newTestService()
	r := validRequest()
	r.Lines = nil
	if err := svc.CreateRequest(context.Background(), &r); !console.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, total, _ := svc.SearchRequests(context.Background(), nil, 10, 0)
	if total != 0 {
		t.Errorf("invalid request must not be stored, total = %d", total)
	}
}

func TestService_Transition(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	r := createRequests(t, svc, 1, nil)[0]

	_, err := svc.Transition(ctx, r.ID, console.ActionApprove, console.TransitionPayload{Notes: "   "}, "nurse-1")
	if !console.IsValidation(err) {
		t.Fatalf("expected validation error for blank notes, got %v", err)
	}

	got, err := svc.Transition(ctx, r.ID, console.ActionApprove, console.TransitionPayload{Notes: "checked label"}, "nurse-1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != StatusApproved || got.ApprovedBy != "nurse-1" || got.ApprovalNotes != "checked label" {
		t.Errorf("unexpected request after approve: %+v", got)
	}

	_, err = svc.Transition(ctx, r.ID, console.ActionReject, console.TransitionPayload{Reason: "too late"}, "nurse-1")
	if !console.IsInvalidTransition(err) {
		t.Errorf("expected invalid transition after approve, got %v", err)
	}
	_, err = svc.Transition(ctx, r.ID, console.ActionActivate, console.TransitionPayload{}, "nurse-1")
	if !console.IsInvalidTransition(err) {
		t.Errorf("staff must not activate, got %v", err)
	}
}

func TestService_Advance(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	r := createRequests(t, svc, 1, nil)[0]

	if _, err := svc.Advance(ctx, r.ID, console.ActionApprove); !console.IsInvalidTransition(err) {
		t.Errorf("Advance must refuse staff actions, got %v", err)
	}
	if _, err := svc.Advance(ctx, r.ID, console.ActionActivate); !console.IsInvalidTransition(err) {
		t.Errorf("pending requests cannot be activated, got %v", err)
	}

	if _, err := svc.Transition(ctx, r.ID, console.ActionApprove, console.TransitionPayload{Notes: "ok"}, "nurse-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	got, err := svc.Advance(ctx, r.ID, console.ActionActivate)
	if err != nil || got.Status != StatusActive {
		t.Fatalf("activate: %v, %+v", err, got)
	}
	got, err = svc.Advance(ctx, r.ID, console.ActionDiscontinue)
	if err != nil || got.Status != StatusDiscontinued {
		t.Fatalf("discontinue: %v, %+v", err, got)
	}
	if !svc.Machine().Terminal(got.Status) {
		t.Error("discontinued should be terminal")
	}
}

func TestService_UpdateRequest(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	r := createRequests(t, svc, 1, nil)[0]

	edit := *r
	edit.Lines = append([]Line(nil), r.Lines...)
	edit.Lines[0].Dosage = "1 puff"
	edit.Status = StatusApproved
	edit.Code = "forged"
	if err := svc.UpdateRequest(ctx, &edit); err != nil {
		t.Fatalf("update: %v", err)
	}
	if edit.Code != r.Code || edit.Status != StatusPendingApproval || edit.Lines[0].Dosage != "1 puff" {
		t.Errorf("unexpected update result: %+v", edit)
	}

	if _, err := svc.Transition(ctx, r.ID, console.ActionReject, console.TransitionPayload{Reason: "wrong child"}, "nurse-1"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := svc.UpdateRequest(ctx, &edit); !errors.Is(err, ErrNotEditable) {
		t.Errorf("expected ErrNotEditable, got %v", err)
	}
}

func TestService_CancelRequest(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	reqs := createRequests(t, svc, 2, nil)

	if err := svc.CancelRequest(ctx, reqs[0].ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.GetRequest(ctx, reqs[0].ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected cancelled request to be gone, got %v", err)
	}

	if _, err := svc.Transition(ctx, reqs[1].ID, console.ActionApprove, console.TransitionPayload{Notes: "ok"}, "nurse-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := svc.CancelRequest(ctx, reqs[1].ID); !errors.Is(err, console.ErrNotCancelable) {
		t.Errorf("expected ErrNotCancelable, got %v", err)
	}
}

// approvingRepo approves the request right before forwarding a delete, so
// the approval lands between the caller's intent and the removal.
type approvingRepo struct {
	RequestRepository
	svc *Service
	t   *testing.T
}

func (r *approvingRepo) Delete(ctx context.Context, id uuid.UUID, guard func(Request) error) error {
	if _, err := r.svc.Transition(ctx, id, console.ActionApprove, console.TransitionPayload{Notes: "ok"}, "nurse-2"); err != nil {
		r.t.Fatalf("approve: %v", err)
	}
	return r.RequestRepository.Delete(ctx, id, guard)
}

func TestService_CancelRequest_ApprovedConcurrently(t *testing.T) {
	ctx := context.Background()
	repo := &approvingRepo{RequestRepository: NewMemoryRepo(), t: t}
	svc := NewService(repo)
	svc.SetClock(testclock.NewFakePassiveClock(testNow))
	repo.svc = svc
	reqs := createRequests(t, svc, 1, nil)

	if err := svc.CancelRequest(ctx, reqs[0].ID); !errors.Is(err, console.ErrNotCancelable) {
		t.Fatalf("expected ErrNotCancelable, got %v", err)
	}
	got, err := svc.GetRequest(ctx, reqs[0].ID)
	if err != nil {
		t.Fatalf("approved request was deleted: %v", err)
	}
	if got.Status != StatusApproved {
		t.Errorf("expected Approved, got %s", got.Status)
	}
}

func TestService_SearchRequests(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	createRequests(t, svc, 5, func(i int, r *Request) {
		if i%2 == 0 {
			r.Priority = PriorityHigh
		}
		if i == 3 {
			r.Lines[0].Name = "EpiPen"
		}
	})

	tests := []struct {
		name   string
		params map[string]string
		want   int
	}{
		{"all", nil, 5},
		{"by priority", map[string]string{ParamPriority: "High"}, 3},
		{"by line name", map[string]string{ParamSearch: "epipen"}, 1},
		{"by student", map[string]string{ParamSearch: "student 0"}, 5},
		{"by status", map[string]string{ParamStatus: string(StatusApproved)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, total, err := svc.SearchRequests(ctx, tt.params, 10, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if total != tt.want {
				t.Errorf("total = %d, want %d", total, tt.want)
			}
		})
	}

	page, total, _ := svc.SearchRequests(ctx, map[string]string{ParamSort: "-studentName"}, 2, 2)
	if total != 5 || len(page) != 2 || page[0].StudentName != "Student 02" {
		t.Errorf("unexpected sorted page: total=%d %v", total, page)
	}
}

func TestMemoryRepo_Isolation(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	r := validRequest()
	if err := repo.Create(ctx, &r); err != nil {
		t.Fatalf("create: %v", err)
	}
	r.Lines[0].Name = "changed after insert"

	got, err := repo.GetByID(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Lines[0].Name != "Salbutamol inhaler" {
		t.Errorf("stored request shares line memory with caller: %q", got.Lines[0].Name)
	}
}

func TestService_Resume(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	first := NewService(repo)
	first.SetClock(testclock.NewFakePassiveClock(testNow))
	reqs := createRequests(t, first, 3, nil)
	if err := first.CancelRequest(ctx, reqs[0].ID); err != nil {
		t.Fatalf("CancelRequest: %v", err)
	}

	// A restarted service over the same store continues after MR-00003.
	second := NewService(repo)
	second.SetClock(testclock.NewFakePassiveClock(testNow))
	if err := second.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	next := createRequests(t, second, 1, nil)
	if next[0].Code != "MR-00004" {
		t.Errorf("expected MR-00004 after resume, got %s", next[0].Code)
	}
}
