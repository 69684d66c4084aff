package vaccination

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/schoolhealth/nurse-console/internal/console"
)

type Service struct {
	repo    SessionRepository
	machine *console.Machine
	clock   clock.PassiveClock
}

func NewService(repo SessionRepository) *Service {
	return &Service{repo: repo, machine: Machine, clock: clock.RealClock{}}
}

func (s *Service) SetClock(c clock.PassiveClock) { s.clock = c }
func (s *Service) SetMachine(m *console.Machine) { s.machine = m }
func (s *Service) Machine() *console.Machine     { return s.machine }

func (s *Service) CreateSession(ctx context.Context, sess *Session) error {
	now := s.clock.Now()
	sess.Status = StatusPendingApproval
	if err := sess.Validate(now); err != nil {
		return err
	}
	sess.ApprovedBy, sess.ApprovalNotes, sess.DeclineReason = "", "", ""
	sess.CreatedAt, sess.UpdatedAt = now, now
	if err := s.repo.Create(ctx, sess); err != nil {
		return fmt.Errorf("create vaccination session: %w", err)
	}
	return nil
}

func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateSession edits the planning fields and the consent counters. The
// workflow fields are kept from the stored session.
func (s *Service) UpdateSession(ctx context.Context, sess *Session) error {
	now := s.clock.Now()
	updated, err := s.repo.Mutate(ctx, sess.ID, func(cur Session) (Session, error) {
		next := *sess
		next.Status = cur.Status
		next.ApprovedBy, next.ApprovalNotes, next.DeclineReason = cur.ApprovedBy, cur.ApprovalNotes, cur.DeclineReason
		next.CreatedAt = cur.CreatedAt
		next.UpdatedAt = now
		if err := next.Validate(now); err != nil {
			return cur, err
		}
		return next, nil
	})
	if err != nil {
		return err
	}
	*sess = *updated
	return nil
}

func (s *Service) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) SearchSessions(ctx context.Context, params map[string]string, limit, offset int) ([]*Session, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}

func (s *Service) Transition(ctx context.Context, id uuid.UUID, action console.Action, payload console.TransitionPayload, actor string) (*Session, error) {
	text := payload.Text()
	now := s.clock.Now()
	return s.repo.Mutate(ctx, id, func(sess Session) (Session, error) {
		tr, err := s.machine.Check(sess.Status, action)
		if err != nil {
			return sess, err
		}
		if err := s.machine.CheckJustification(tr, text); err != nil {
			return sess, err
		}
		return sess.Stamp(tr, text, actor, now), nil
	})
}
