package console

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestCoordinator(t *testing.T, recs ...testRecord) (*Coordinator[testRecord], *ListController[testRecord], *fakeGateway, *recordingAlerter) {
	t.Helper()
	gw := newFakeGateway(recs...)
	alerts := &recordingAlerter{}
	list := newTestList(gw, alerts, nil)
	if _, err := list.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}
	coord := NewCoordinator(list, gw, testMachine(), CoordinatorOptions[testRecord]{
		Alerter: alerts,
		Logger:  zerolog.Nop(),
		Cancelable: func(r testRecord) bool {
			return r.Status == statusPending
		},
	})
	return coord, list, gw, alerts
}

func TestCoordinator_ApproveRequiresNotes(t *testing.T) {
	recs := pendingRecords(1)
	coord, list, gw, alerts := newTestCoordinator(t, recs...)
	ctx := context.Background()
	id := recs[0].ID

	err := coord.Perform(ctx, id, ActionApprove, "")
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if gw.transitions() != 0 {
		t.Fatal("gateway contacted despite a missing justification")
	}

	listCalls := gw.listCount()
	if err := coord.Perform(ctx, id, ActionApprove, "ok"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if gw.transitions() != 1 {
		t.Errorf("transition calls = %d, want 1", gw.transitions())
	}
	if gw.lastPayload.Notes != "ok" || gw.lastPayload.Reason != "" {
		t.Errorf("unexpected payload: %+v", gw.lastPayload)
	}
	if gw.listCount() != listCalls+1 {
		t.Errorf("list was not reloaded after the transition")
	}

	rec, ok := list.Find(id)
	if !ok || rec.Status != statusApproved {
		t.Errorf("record after reload = %+v, want Approved", rec)
	}
	a, _ := alerts.last()
	if a.Kind != AlertSuccess {
		t.Errorf("last alert = %+v, want success", a)
	}
	if coord.InFlight(id) {
		t.Error("record still marked in flight")
	}
}

func TestCoordinator_WhitespaceReasonRejected(t *testing.T) {
	recs := pendingRecords(1)
	coord, _, gw, _ := newTestCoordinator(t, recs...)

	err := coord.Perform(context.Background(), recs[0].ID, ActionReject, "   \t")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Field != "reason" {
		t.Errorf("Field = %q, want reason", ve.Field)
	}
	if gw.transitions() != 0 {
		t.Error("gateway contacted for a blank reason")
	}
}

func TestCoordinator_IllegalAction(t *testing.T) {
	recs := pendingRecords(1)
	recs[0].Status = statusApproved
	coord, _, gw, alerts := newTestCoordinator(t, recs...)

	offered, err := coord.Offered(recs[0].ID)
	if err != nil {
		t.Fatalf("Offered: %v", err)
	}
	if len(offered) != 0 {
		t.Errorf("Approved record offers %v", offered)
	}

	err = coord.Perform(context.Background(), recs[0].ID, ActionReject, "too late")
	if !IsInvalidTransition(err) {
		t.Fatalf("expected InvalidTransition, got %v", err)
	}
	if gw.transitions() != 0 {
		t.Error("gateway contacted for an illegal action")
	}
	if a, ok := alerts.last(); !ok || a.Kind != AlertError {
		t.Errorf("expected an error alert, got %+v", a)
	}
}

func TestCoordinator_GatewayFailureLeavesRecord(t *testing.T) {
	recs := pendingRecords(1)
	coord, list, gw, alerts := newTestCoordinator(t, recs...)
	gw.transitionFail = "Stock already allocated"

	err := coord.Perform(context.Background(), recs[0].ID, ActionApprove, "fine")
	var gerr *GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gerr.Message != "Stock already allocated" {
		t.Errorf("Message = %q", gerr.Message)
	}
	rec, _ := list.Find(recs[0].ID)
	if rec.Status != statusPending {
		t.Errorf("status changed to %q on failure", rec.Status)
	}
	if a, _ := alerts.last(); a.Message != "Stock already allocated" {
		t.Errorf("alert message = %q", a.Message)
	}
}

func TestCoordinator_TransportFailureFallback(t *testing.T) {
	recs := pendingRecords(1)
	coord, _, gw, _ := newTestCoordinator(t, recs...)
	gw.transitionErr = errors.New("timeout")

	err := coord.Perform(context.Background(), recs[0].ID, ActionApprove, "fine")
	var gerr *GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gerr.Message != "Unable to update item. Please try again." {
		t.Errorf("Message = %q", gerr.Message)
	}
}

func TestCoordinator_UnknownRecord(t *testing.T) {
	coord, _, gw, _ := newTestCoordinator(t, pendingRecords(1)...)
	err := coord.Perform(context.Background(), uuid.New(), ActionApprove, "ok")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
	if gw.transitions() != 0 {
		t.Error("gateway contacted for an unknown record")
	}
}

func TestCoordinator_Busy(t *testing.T) {
	recs := pendingRecords(1)
	coord, _, gw, _ := newTestCoordinator(t, recs...)

	if !coord.acquire(recs[0].ID) {
		t.Fatal("acquire failed on an idle record")
	}
	err := coord.Perform(context.Background(), recs[0].ID, ActionApprove, "ok")
	if !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	coord.release(recs[0].ID)
	if gw.transitions() != 0 {
		t.Error("gateway contacted while the record was busy")
	}
}

func TestCoordinator_Requirement(t *testing.T) {
	recs := pendingRecords(1)
	coord, _, _, _ := newTestCoordinator(t, recs...)

	j, err := coord.Requirement(recs[0].ID, ActionReject)
	if err != nil || j != JustificationReason {
		t.Errorf("Requirement(reject) = %v, %v", j, err)
	}
	if _, err := coord.Requirement(recs[0].ID, ActionFinalize); !IsInvalidTransition(err) {
		t.Errorf("Requirement(finalize) err = %v", err)
	}
}

func TestCoordinator_Cancel(t *testing.T) {
	recs := pendingRecords(2)
	recs[1].Status = statusApproved
	coord, list, gw, _ := newTestCoordinator(t, recs...)
	ctx := context.Background()

	if err := coord.Cancel(ctx, recs[1].ID); !errors.Is(err, ErrNotCancelable) {
		t.Errorf("cancel of approved record: %v", err)
	}
	if err := coord.Cancel(ctx, recs[0].ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if gw.deleteCalls != 1 {
		t.Errorf("delete calls = %d, want 1", gw.deleteCalls)
	}
	if _, ok := list.Find(recs[0].ID); ok {
		t.Error("cancelled record still listed after reload")
	}
}
