package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/schoolhealth/nurse-console/internal/console"
)

type Service struct {
	repo       ItemRepository
	machine    *console.Machine
	clock      clock.PassiveClock
	thresholds Thresholds
}

func NewService(repo ItemRepository, th Thresholds) *Service {
	return &Service{repo: repo, machine: Machine, clock: clock.RealClock{}, thresholds: th}
}

func (s *Service) SetClock(c clock.PassiveClock) { s.clock = c }
func (s *Service) SetMachine(m *console.Machine) { s.machine = m }
func (s *Service) Machine() *console.Machine     { return s.machine }
func (s *Service) Thresholds() Thresholds        { return s.thresholds }

func (s *Service) CreateItem(ctx context.Context, it *Item) error {
	now := s.clock.Now()
	if it.Priority == "" {
		it.Priority = PriorityNormal
	}
	if err := it.Validate(now); err != nil {
		return err
	}
	it.Status = StatusPending
	it.ApprovedBy, it.ApprovedAt, it.ApprovalNotes = "", nil, ""
	it.RejectedAt, it.RejectionReason = nil, ""
	it.CreatedAt, it.UpdatedAt = now, now
	*it = it.WithDerivedFlags(now, s.thresholds)
	if err := s.repo.Create(ctx, it); err != nil {
		return fmt.Errorf("create inventory item: %w", err)
	}
	return nil
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	it, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	derived := it.WithDerivedFlags(s.clock.Now(), s.thresholds)
	return &derived, nil
}

// UpdateItem edits the descriptive fields of an item. Status and approval
// metadata are owned by Transition and are carried over from the stored
// item.
func (s *Service) UpdateItem(ctx context.Context, it *Item) error {
	existing, err := s.repo.GetByID(ctx, it.ID)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	if it.Priority == "" {
		it.Priority = existing.Priority
	}
	if err := it.Validate(now); err != nil {
		return err
	}
	it.Status = existing.Status
	it.ApprovedBy, it.ApprovedAt, it.ApprovalNotes = existing.ApprovedBy, existing.ApprovedAt, existing.ApprovalNotes
	it.RejectedAt, it.RejectionReason = existing.RejectedAt, existing.RejectionReason
	it.CreatedAt = existing.CreatedAt
	it.UpdatedAt = now
	*it = it.WithDerivedFlags(now, s.thresholds)
	return s.repo.Update(ctx, it)
}

func (s *Service) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) SearchItems(ctx context.Context, params map[string]string, limit, offset int) ([]*Item, int, error) {
	items, total, err := s.repo.Search(ctx, params, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	now := s.clock.Now()
	for i, it := range items {
		derived := it.WithDerivedFlags(now, s.thresholds)
		items[i] = &derived
	}
	return items, total, nil
}

// Transition moves the item through action on behalf of actor.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, action console.Action, payload console.TransitionPayload, actor string) (*Item, error) {
	text := payload.Text()
	now := s.clock.Now()
	return s.repo.Mutate(ctx, id, func(it Item) (Item, error) {
		tr, err := s.machine.Check(it.Status, action)
		if err != nil {
			return it, err
		}
		if err := s.machine.CheckJustification(tr, text); err != nil {
			return it, err
		}
		return it.Stamp(tr, text, actor, now).WithDerivedFlags(now, s.thresholds), nil
	})
}
