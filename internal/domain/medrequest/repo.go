package medrequest

import (
	"context"

	"github.com/google/uuid"
)

// Search parameter keys understood by RequestRepository.Search.
const (
	ParamStatus    = "status"
	ParamPriority  = "priority"
	ParamStudentID = "studentId"
	ParamSearch    = "searchTerm"
	ParamSort      = "sort"
)

type RequestRepository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	Update(ctx context.Context, r *Request) error
	// Delete removes the request when guard accepts its stored state. The
	// check and the removal are atomic.
	Delete(ctx context.Context, id uuid.UUID, guard func(Request) error) error
	// Mutate replaces the request by fn(request) atomically. The stored
	// request is unchanged when fn fails.
	Mutate(ctx context.Context, id uuid.UUID, fn func(Request) (Request, error)) (*Request, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Request, int, error)
}
