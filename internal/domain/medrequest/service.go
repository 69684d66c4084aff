package medrequest

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/schoolhealth/nurse-console/internal/console"
)

type Service struct {
	repo    RequestRepository
	machine *console.Machine
	clock   clock.PassiveClock
	seq     atomic.Int64
}

func NewService(repo RequestRepository) *Service {
	return &Service{repo: repo, machine: Machine, clock: clock.RealClock{}}
}

func (s *Service) SetClock(c clock.PassiveClock) { s.clock = c }
func (s *Service) SetMachine(m *console.Machine) { s.machine = m }
func (s *Service) Machine() *console.Machine     { return s.machine }

// Resume continues request codes after the highest one already stored.
func (s *Service) Resume(ctx context.Context) error {
	reqs, _, err := s.repo.Search(ctx, map[string]string{}, 0, 0)
	if err != nil {
		return fmt.Errorf("resume request codes: %w", err)
	}
	var highest int64
	for _, r := range reqs {
		var n int64
		if _, err := fmt.Sscanf(r.Code, "MR-%d", &n); err == nil && n > highest {
			highest = n
		}
	}
	s.seq.Store(highest)
	return nil
}

func (s *Service) CreateRequest(ctx context.Context, r *Request) error {
	now := s.clock.Now()
	if r.Priority == "" {
		r.Priority = PriorityNormal
	}
	if err := r.Validate(now); err != nil {
		return err
	}
	r.Status = StatusPendingApproval
	r.ApprovedBy, r.ApprovedAt, r.ApprovalNotes, r.RejectionReason = "", nil, "", ""
	if r.Code == "" {
		r.Code = fmt.Sprintf("MR-%05d", s.seq.Add(1))
	}
	r.SubmittedAt, r.UpdatedAt = now, now
	if err := s.repo.Create(ctx, r); err != nil {
		return fmt.Errorf("create medication request: %w", err)
	}
	return nil
}

func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateRequest replaces the student, parent and medication lines of a
// request that is still pending approval.
func (s *Service) UpdateRequest(ctx context.Context, r *Request) error {
	now := s.clock.Now()
	if r.Priority == "" {
		r.Priority = PriorityNormal
	}
	if err := r.Validate(now); err != nil {
		return err
	}
	updated, err := s.repo.Mutate(ctx, r.ID, func(cur Request) (Request, error) {
		if cur.Status != StatusPendingApproval {
			return cur, ErrNotEditable
		}
		next := *r
		next.Code = cur.Code
		next.Status = cur.Status
		next.SubmittedAt = cur.SubmittedAt
		next.ApprovedBy, next.ApprovedAt, next.ApprovalNotes, next.RejectionReason = "", nil, "", ""
		next.UpdatedAt = now
		return next, nil
	})
	if err != nil {
		return err
	}
	*r = *updated
	return nil
}

// CancelRequest withdraws a request that has not been reviewed yet.
func (s *Service) CancelRequest(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id, func(r Request) error {
		if !r.CanCancel() {
			return console.ErrNotCancelable
		}
		return nil
	})
}

func (s *Service) SearchRequests(ctx context.Context, params map[string]string, limit, offset int) ([]*Request, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}

// Transition moves the request through a staff action on behalf of actor.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, action console.Action, payload console.TransitionPayload, actor string) (*Request, error) {
	text := payload.Text()
	now := s.clock.Now()
	return s.repo.Mutate(ctx, id, func(r Request) (Request, error) {
		tr, err := s.machine.Check(r.Status, action)
		if err != nil {
			return r, err
		}
		if err := s.machine.CheckJustification(tr, text); err != nil {
			return r, err
		}
		return r.Stamp(tr, text, actor, now), nil
	})
}

// Advance applies a backend-driven transition such as activation when the
// first dose is given. Staff actions are refused.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, action console.Action) (*Request, error) {
	now := s.clock.Now()
	return s.repo.Mutate(ctx, id, func(r Request) (Request, error) {
		tr, ok := s.machine.Lookup(r.Status, action)
		if !ok || !tr.External {
			return r, &console.InvalidTransitionError{Resource: s.machine.Resource(), From: r.Status, Action: action}
		}
		r = r.WithTransition(tr, "")
		r.UpdatedAt = now
		return r, nil
	})
}
