package vaccination

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/schoolhealth/nurse-console/internal/platform/store"
)

type storeRepo struct {
	sessions store.Store[Session]
}

// NewRepo returns a SessionRepository over any record store.
func NewRepo(s store.Store[Session]) SessionRepository {
	return &storeRepo{sessions: s}
}

// NewMemoryRepo returns a SessionRepository kept in process memory.
func NewMemoryRepo() SessionRepository {
	return NewRepo(store.NewMemory[Session]())
}

func (m *storeRepo) Create(ctx context.Context, s *Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return m.sessions.Insert(ctx, s.ID, s.clone())
}

func (m *storeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	s, err := m.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := s.clone()
	return &out, nil
}

func (m *storeRepo) Update(ctx context.Context, s *Session) error {
	return m.sessions.Replace(ctx, s.ID, s.clone())
}

func (m *storeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.sessions.Delete(ctx, id)
}

func (m *storeRepo) Mutate(ctx context.Context, id uuid.UUID, fn func(Session) (Session, error)) (*Session, error) {
	s, err := m.sessions.Modify(ctx, id, func(cur Session) (Session, error) {
		next, err := fn(cur.clone())
		if err != nil {
			return cur, err
		}
		return next.clone(), nil
	})
	if err != nil {
		return nil, err
	}
	out := s.clone()
	return &out, nil
}

func (m *storeRepo) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Session, int, error) {
	all, total, err := m.sessions.Find(ctx, matcher(params), 0, 0)
	if err != nil {
		return nil, 0, err
	}
	sortSessions(all, params[ParamSort])
	page := store.Slice(all, limit, offset)

	out := make([]*Session, len(page))
	for i := range page {
		s := page[i].clone()
		out[i] = &s
	}
	return out, total, nil
}

func (s Session) clone() Session {
	s.TargetClasses = append([]string(nil), s.TargetClasses...)
	return s
}

func matcher(params map[string]string) func(Session) bool {
	status := params[ParamStatus]
	vaccine := strings.ToLower(params[ParamVaccineType])
	class := params[ParamClass]
	term := strings.ToLower(strings.TrimSpace(params[ParamSearch]))

	return func(s Session) bool {
		if status != "" && string(s.Status) != status {
			return false
		}
		if vaccine != "" && strings.ToLower(s.VaccineType) != vaccine {
			return false
		}
		if class != "" && !containsClass(s.TargetClasses, class) {
			return false
		}
		if term == "" {
			return true
		}
		return strings.Contains(strings.ToLower(s.Name), term) ||
			strings.Contains(strings.ToLower(s.VaccineType), term)
	}
}

func containsClass(classes []string, class string) bool {
	for _, c := range classes {
		if strings.EqualFold(c, class) {
			return true
		}
	}
	return false
}

// sortSessions orders by "scheduledAt", "name" or "totalStudents"; a
// leading "-" reverses.
func sortSessions(sessions []Session, key string) {
	desc := strings.HasPrefix(key, "-")
	key = strings.TrimPrefix(key, "-")

	var less func(a, b Session) bool
	switch key {
	case "scheduledAt":
		less = func(a, b Session) bool { return a.ScheduledAt.Before(b.ScheduledAt) }
	case "name":
		less = func(a, b Session) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case "totalStudents":
		less = func(a, b Session) bool { return a.TotalStudents < b.TotalStudents }
	default:
		return
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		if desc {
			return less(sessions[j], sessions[i])
		}
		return less(sessions[i], sessions[j])
	})
}
