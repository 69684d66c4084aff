package console

import (
	"context"
	"strconv"

	"github.com/google/uuid"
)

// Filter keys understood by every gateway.
const (
	FilterStatus   = "status"
	FilterPriority = "priority"
	FilterType     = "type"
)

// ListParams are the query parameters of a list call.
type ListParams struct {
	PageIndex  int
	PageSize   int
	SearchTerm string
	Filters    map[string]string
	Sort       string
}

// Query renders the params as wire query parameters.
func (p ListParams) Query() map[string]string {
	q := map[string]string{
		"pageIndex": strconv.Itoa(p.PageIndex),
		"pageSize":  strconv.Itoa(p.PageSize),
	}
	if p.SearchTerm != "" {
		q["searchTerm"] = p.SearchTerm
	}
	if p.Sort != "" {
		q["sort"] = p.Sort
	}
	for k, v := range p.Filters {
		if v != "" {
			q[k] = v
		}
	}
	return q
}

// Envelope is the response shape of every gateway endpoint.
type Envelope[T any] struct {
	Success    bool   `json:"success"`
	Data       T      `json:"data"`
	TotalCount int    `json:"totalCount,omitempty"`
	TotalPages int    `json:"totalPages,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Empty is the data type of envelopes that carry no payload.
type Empty struct{}

// TransitionPayload carries the justification of a transition.
type TransitionPayload struct {
	Notes  string `json:"notes,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Text returns whichever justification is set.
func (p TransitionPayload) Text() string {
	if p.Reason != "" {
		return p.Reason
	}
	return p.Notes
}

// Gateway is the remote service for one resource kind. Well-formed failure
// responses come back as an Envelope with Success=false and a nil error;
// a non-nil error means a transport fault or a malformed response.
type Gateway[T any] interface {
	List(ctx context.Context, params ListParams) (Envelope[[]T], error)
	Get(ctx context.Context, id uuid.UUID) (Envelope[T], error)
	Create(ctx context.Context, payload T) (Envelope[T], error)
	Update(ctx context.Context, id uuid.UUID, payload T) (Envelope[T], error)
	Transition(ctx context.Context, id uuid.UUID, action Action, payload TransitionPayload) (Envelope[Empty], error)
	Delete(ctx context.Context, id uuid.UUID) (Envelope[Empty], error)
}

// Page is one successful list result.
type Page[T any] struct {
	Items      []T
	TotalCount int
	TotalPages int
	Params     ListParams
}

// gatewayFailure maps a transport error or failure envelope onto a
// *GatewayError using fallback when the server gave no message.
func gatewayFailure(op, message, fallback string, err error) *GatewayError {
	if message == "" {
		message = fallback
	}
	return &GatewayError{Op: op, Message: message, Err: err}
}
