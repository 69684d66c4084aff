package inventory

import (
	"context"

	"github.com/google/uuid"
)

// Search parameter keys understood by ItemRepository.Search.
const (
	ParamStatus   = "status"
	ParamPriority = "priority"
	ParamType     = "type"
	ParamSearch   = "searchTerm"
	ParamUrgent   = "urgent"
	ParamSort     = "sort"
)

type ItemRepository interface {
	Create(ctx context.Context, it *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	Update(ctx context.Context, it *Item) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Mutate replaces the item by fn(item) atomically. The stored item is
	// unchanged when fn fails.
	Mutate(ctx context.Context, id uuid.UUID, fn func(Item) (Item, error)) (*Item, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Item, int, error)
}
