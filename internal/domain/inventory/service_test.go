package inventory

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
	svc := NewService(NewMemoryRepo(), DefaultThresholds())
	svc.SetClock(testclock.NewFakePassiveClock(testNow))
	return svc
}

func createItems(t *testing.T, svc *Service, n int, mutate func(i int, it *Item)) []*Item {
	t.Helper()
	out := make([]*Item, n)
	for i := 0; i < n; i++ {
		it := validItem()
		it.Name = fmt.Sprintf("Item %02d", i)
		if mutate != nil {
			mutate(i, &it)
		}
		if err := svc.CreateItem(context.Background(), &it); err != nil {
			t.Fatalf("CreateItem: %v", err)
		}
		out[i] = &it
	}
	return out
}

func TestService_CreateItem(t *testing.T) {
	svc := newTestService()
	it := validItem()
	it.Status = StatusApproved
	it.ApprovedBy = "someone"
	it.Quantity = 2

	if err := svc.CreateItem(context.Background(), &it); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it.ID == uuid.Nil {
		t.Error("expected ID to be assigned")
	}
	if it.Status != StatusPending || it.ApprovedBy != "" {
		t.Errorf("new items must start Pending without approval metadata: %+v", it)
	}
	if !it.LowStock {
		t.Error("expected low stock flag on quantity 2")
	}
	if !it.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v", it.CreatedAt)
	}
}

func TestService_CreateItem_Invalid(t *testing.T) {
	svc := newTestService()
	it := validItem()
	it.Quantity = -1
	err := svc.CreateItem(context.Background(), &it)
	if !console.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, total, _ := svc.SearchItems(context.Background(), nil, 10, 0); total != 0 {
		t.Errorf("invalid item was stored")
	}
}

func TestService_DefaultPriority(t *testing.T) {
	svc := newTestService()
	it := validItem()
	it.Priority = ""
	if err := svc.CreateItem(context.Background(), &it); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it.Priority != PriorityNormal {
		t.Errorf("expected Normal, got %s", it.Priority)
	}
}

func TestService_SearchItems(t *testing.T) {
	svc := newTestService()
	createItems(t, svc, 23, func(i int, it *Item) {
		if i%2 == 1 {
			it.Kind = KindSupply
			it.Name = fmt.Sprintf("Gauze %02d", i)
		}
	})
	ctx := context.Background()

	items, total, err := svc.SearchItems(ctx, map[string]string{ParamStatus: string(StatusPending)}, 10, 20)
	if err != nil {
		t.Fatalf("SearchItems: %v", err)
	}
	if total != 23 || len(items) != 3 {
		t.Errorf("expected 3 of 23, got %d of %d", len(items), total)
	}

	_, total, _ = svc.SearchItems(ctx, map[string]string{ParamType: string(KindSupply)}, 10, 0)
	if total != 11 {
		t.Errorf("expected 11 supplies, got %d", total)
	}

	items, total, _ = svc.SearchItems(ctx, map[string]string{ParamSearch: "gauze 0"}, 10, 0)
	if total != 5 {
		t.Errorf("expected 5 matches for 'gauze 0', got %d", total)
	}
	for _, it := range items {
		if it.Kind != KindSupply {
			t.Errorf("search matched %q", it.Name)
		}
	}

	items, _, _ = svc.SearchItems(ctx, map[string]string{ParamSort: "-name"}, 1, 0)
	if len(items) != 1 || items[0].Name != "Item 22" {
		t.Errorf("unexpected first item for -name: %+v", items)
	}
}

func TestService_Transition_Approve(t *testing.T) {
	svc := newTestService()
	it := createItems(t, svc, 1, nil)[0]
	ctx := context.Background()

	_, err := svc.Transition(ctx, it.ID, console.ActionApprove, console.TransitionPayload{}, "nurse-1")
	if !console.IsValidation(err) {
		t.Fatalf("expected ValidationError for blank notes, got %v", err)
	}

	got, err := svc.Transition(ctx, it.ID, console.ActionApprove, console.TransitionPayload{Notes: "ok"}, "nurse-1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != StatusApproved || got.ApprovedBy != "nurse-1" || got.ApprovalNotes != "ok" {
		t.Errorf("unexpected item: %+v", got)
	}

	_, err = svc.Transition(ctx, it.ID, console.ActionReject, console.TransitionPayload{Reason: "late"}, "nurse-1")
	if !console.IsInvalidTransition(err) {
		t.Errorf("expected InvalidTransition from Approved, got %v", err)
	}
	stored, _ := svc.GetItem(ctx, it.ID)
	if stored.Status != StatusApproved {
		t.Errorf("failed transition changed status to %s", stored.Status)
	}
}

func TestService_Transition_MinJustification(t *testing.T) {
	svc := newTestService()
	svc.SetMachine(Machine.WithMinJustification(10))
	it := createItems(t, svc, 1, nil)[0]

	_, err := svc.Transition(context.Background(), it.ID, console.ActionReject, console.TransitionPayload{Reason: "no"}, "nurse-1")
	if !console.IsValidation(err) {
		t.Errorf("expected ValidationError for a short reason, got %v", err)
	}
}

func TestService_Transition_NotFound(t *testing.T) {
	svc := newTestService()
	_, err := svc.Transition(context.Background(), uuid.New(), console.ActionApprove, console.TransitionPayload{Notes: "ok"}, "")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_UpdateItemKeepsWorkflowFields(t *testing.T) {
	svc := newTestService()
	it := createItems(t, svc, 1, nil)[0]
	ctx := context.Background()
	if _, err := svc.Transition(ctx, it.ID, console.ActionApprove, console.TransitionPayload{Notes: "ok"}, "nurse-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	edit := validItem()
	edit.ID = it.ID
	edit.Quantity = 100
	edit.Status = StatusRejected
	if err := svc.UpdateItem(ctx, &edit); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	stored, _ := svc.GetItem(ctx, it.ID)
	if stored.Quantity != 100 {
		t.Errorf("quantity not updated: %d", stored.Quantity)
	}
	if stored.Status != StatusApproved || stored.ApprovedBy != "nurse-1" {
		t.Errorf("update overwrote workflow fields: %+v", stored)
	}
}

func TestService_GetItemRecomputesFlags(t *testing.T) {
	clk := testclock.NewFakePassiveClock(testNow)
	svc := NewService(NewMemoryRepo(), DefaultThresholds())
	svc.SetClock(clk)

	it := validItem()
	expiry := testNow.AddDate(0, 2, 0)
	it.ExpiryDate = &expiry
	if err := svc.CreateItem(context.Background(), &it); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if it.ExpiringSoon {
		t.Fatal("item two months out flagged as expiring soon")
	}

	clk.SetTime(testNow.AddDate(0, 1, 15))
	got, _ := svc.GetItem(context.Background(), it.ID)
	if !got.ExpiringSoon {
		t.Error("expected expiring soon after the clock advanced")
	}
	clk.SetTime(testNow.AddDate(0, 3, 0))
	got, _ = svc.GetItem(context.Background(), it.ID)
	if !got.Expired {
		t.Error("expected expired after the expiry date")
	}
}
