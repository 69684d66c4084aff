package vaccination

import (
	"context"

	"github.com/google/uuid"
)

// Search parameter keys understood by SessionRepository.Search.
const (
	ParamStatus      = "status"
	ParamVaccineType = "vaccineType"
	ParamClass       = "class"
	ParamSearch      = "searchTerm"
	ParamSort        = "sort"
)

type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	Update(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id uuid.UUID) error
	Mutate(ctx context.Context, id uuid.UUID, fn func(Session) (Session, error)) (*Session, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Session, int, error)
}
