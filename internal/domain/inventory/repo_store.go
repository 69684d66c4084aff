package inventory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/schoolhealth/nurse-console/internal/platform/store"
)

type storeRepo struct {
	items store.Store[Item]
}

// NewRepo returns an ItemRepository over any record store.
func NewRepo(s store.Store[Item]) ItemRepository {
	return &storeRepo{items: s}
}

// NewMemoryRepo returns an ItemRepository kept in process memory.
func NewMemoryRepo() ItemRepository {
	return NewRepo(store.NewMemory[Item]())
}

func (r *storeRepo) Create(ctx context.Context, it *Item) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	return r.items.Insert(ctx, it.ID, *it)
}

func (r *storeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	it, err := r.items.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *storeRepo) Update(ctx context.Context, it *Item) error {
	return r.items.Replace(ctx, it.ID, *it)
}

func (r *storeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.items.Delete(ctx, id)
}

func (r *storeRepo) Mutate(ctx context.Context, id uuid.UUID, fn func(Item) (Item, error)) (*Item, error) {
	it, err := r.items.Modify(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *storeRepo) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Item, int, error) {
	all, total, err := r.items.Find(ctx, matcher(params), 0, 0)
	if err != nil {
		return nil, 0, err
	}
	sortItems(all, params[ParamSort])
	page := store.Slice(all, limit, offset)

	out := make([]*Item, len(page))
	for i := range page {
		it := page[i]
		out[i] = &it
	}
	return out, total, nil
}

func matcher(params map[string]string) func(Item) bool {
	status := params[ParamStatus]
	priority := params[ParamPriority]
	kind := params[ParamType]
	urgent := params[ParamUrgent]
	term := strings.ToLower(strings.TrimSpace(params[ParamSearch]))

	return func(it Item) bool {
		if status != "" && string(it.Status) != status {
			return false
		}
		if priority != "" && string(it.Priority) != priority {
			return false
		}
		if kind != "" && string(it.Kind) != kind {
			return false
		}
		if urgent == "true" && !it.Urgent {
			return false
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(it.Name), term) &&
			!strings.Contains(strings.ToLower(it.Description), term) {
			return false
		}
		return true
	}
}

var priorityRank = map[Priority]int{PriorityLow: 0, PriorityNormal: 1, PriorityHigh: 2, PriorityCritical: 3}

// sortItems orders by "name", "quantity", "expiryDate" or "priority"; a
// leading "-" reverses. Unknown keys keep insertion order.
func sortItems(items []Item, key string) {
	desc := strings.HasPrefix(key, "-")
	key = strings.TrimPrefix(key, "-")

	var less func(a, b Item) bool
	switch key {
	case "name":
		less = func(a, b Item) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case "quantity":
		less = func(a, b Item) bool { return a.Quantity < b.Quantity }
	case "priority":
		less = func(a, b Item) bool { return priorityRank[a.Priority] < priorityRank[b.Priority] }
	case "expiryDate":
		less = func(a, b Item) bool {
			if a.ExpiryDate == nil || b.ExpiryDate == nil {
				return a.ExpiryDate != nil
			}
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
	default:
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}
