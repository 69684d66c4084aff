package medrequest

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/schoolhealth/nurse-console/internal/platform/store"
)

type storeRepo struct {
	requests store.Store[Request]
}

// NewRepo returns a RequestRepository over any record store.
func NewRepo(s store.Store[Request]) RequestRepository {
	return &storeRepo{requests: s}
}

// NewMemoryRepo returns a RequestRepository kept in process memory.
func NewMemoryRepo() RequestRepository {
	return NewRepo(store.NewMemory[Request]())
}

func (m *storeRepo) Create(ctx context.Context, r *Request) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return m.requests.Insert(ctx, r.ID, r.clone())
}

func (m *storeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	r, err := m.requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := r.clone()
	return &out, nil
}

func (m *storeRepo) Update(ctx context.Context, r *Request) error {
	return m.requests.Replace(ctx, r.ID, r.clone())
}

func (m *storeRepo) Delete(ctx context.Context, id uuid.UUID, guard func(Request) error) error {
	return m.requests.DeleteIf(ctx, id, func(cur Request) error {
		return guard(cur.clone())
	})
}

func (m *storeRepo) Mutate(ctx context.Context, id uuid.UUID, fn func(Request) (Request, error)) (*Request, error) {
	r, err := m.requests.Modify(ctx, id, func(cur Request) (Request, error) {
		next, err := fn(cur.clone())
		if err != nil {
			return cur, err
		}
		return next.clone(), nil
	})
	if err != nil {
		return nil, err
	}
	out := r.clone()
	return &out, nil
}

func (m *storeRepo) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Request, int, error) {
	all, total, err := m.requests.Find(ctx, matcher(params), 0, 0)
	if err != nil {
		return nil, 0, err
	}
	sortRequests(all, params[ParamSort])
	page := store.Slice(all, limit, offset)

	out := make([]*Request, len(page))
	for i := range page {
		r := page[i].clone()
		out[i] = &r
	}
	return out, total, nil
}

// clone copies the line slice so stored requests never share memory with
// callers.
func (r Request) clone() Request {
	lines := make([]Line, len(r.Lines))
	for i, l := range r.Lines {
		l.TimesOfDay = append([]string(nil), l.TimesOfDay...)
		lines[i] = l
	}
	r.Lines = lines
	return r
}

func matcher(params map[string]string) func(Request) bool {
	status := params[ParamStatus]
	priority := params[ParamPriority]
	student := params[ParamStudentID]
	term := strings.ToLower(strings.TrimSpace(params[ParamSearch]))

	return func(r Request) bool {
		if status != "" && string(r.Status) != status {
			return false
		}
		if priority != "" && string(r.Priority) != priority {
			return false
		}
		if student != "" && r.StudentID.String() != student {
			return false
		}
		if term == "" {
			return true
		}
		for _, s := range []string{r.Code, r.StudentName, r.ParentName} {
			if strings.Contains(strings.ToLower(s), term) {
				return true
			}
		}
		for _, l := range r.Lines {
			if strings.Contains(strings.ToLower(l.Name), term) {
				return true
			}
		}
		return false
	}
}

var priorityRank = map[Priority]int{PriorityLow: 0, PriorityNormal: 1, PriorityHigh: 2, PriorityCritical: 3}

// sortRequests orders by "submittedAt", "priority" or "studentName"; a
// leading "-" reverses. Unknown keys keep insertion order.
func sortRequests(reqs []Request, key string) {
	desc := strings.HasPrefix(key, "-")
	key = strings.TrimPrefix(key, "-")

	var less func(a, b Request) bool
	switch key {
	case "submittedAt":
		less = func(a, b Request) bool { return a.SubmittedAt.Before(b.SubmittedAt) }
	case "priority":
		less = func(a, b Request) bool { return priorityRank[a.Priority] < priorityRank[b.Priority] }
	case "studentName":
		less = func(a, b Request) bool { return strings.ToLower(a.StudentName) < strings.ToLower(b.StudentName) }
	default:
		return
	}
	sort.SliceStable(reqs, func(i, j int) bool {
		if desc {
			return less(reqs[j], reqs[i])
		}
		return less(reqs[i], reqs[j])
	})
}
