package console

import "strings"

// DefaultPageSize is used when a list is configured without a page size.
const DefaultPageSize = 10

// QueryState is the filter, search and pagination state of one list view.
// It is a value type: every With* method returns a new state and never
// mutates the receiver, so a fetch that captured a state is unaffected by
// later edits.
type QueryState struct {
	Search    string
	Filters   map[string]string
	PageIndex int
	PageSize  int
	Sort      string
}

// NewQueryState returns the initial state of a list with a fixed page size.
func NewQueryState(pageSize int) QueryState {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return QueryState{
		Filters:   map[string]string{},
		PageIndex: 1,
		PageSize:  pageSize,
	}
}

// Snapshot returns a deep copy of q.
func (q QueryState) Snapshot() QueryState {
	filters := make(map[string]string, len(q.Filters))
	for k, v := range q.Filters {
		filters[k] = v
	}
	q.Filters = filters
	return q
}

// WithSearch sets the search term and resets the page.
func (q QueryState) WithSearch(search string) QueryState {
	next := q.Snapshot()
	next.Search = strings.TrimSpace(search)
	next.PageIndex = 1
	return next
}

// WithFilter sets one filter and resets the page. An empty value removes
// the filter.
func (q QueryState) WithFilter(key, value string) QueryState {
	next := q.Snapshot()
	if value == "" {
		delete(next.Filters, key)
	} else {
		next.Filters[key] = value
	}
	next.PageIndex = 1
	return next
}

// WithoutFilters clears every filter and the search term and resets the page.
func (q QueryState) WithoutFilters() QueryState {
	next := q.Snapshot()
	next.Filters = map[string]string{}
	next.Search = ""
	next.PageIndex = 1
	return next
}

// WithPage moves to page n without touching filters.
func (q QueryState) WithPage(n int) QueryState {
	next := q.Snapshot()
	next.PageIndex = n
	return next
}

// WithSort sets the sort order. Sorting does not reset the page.
func (q QueryState) WithSort(sort string) QueryState {
	next := q.Snapshot()
	next.Sort = sort
	return next
}

// Filter returns the value of one filter.
func (q QueryState) Filter(key string) string {
	return q.Filters[key]
}

// Params renders q as gateway list parameters.
func (q QueryState) Params() ListParams {
	s := q.Snapshot()
	return ListParams{
		PageIndex:  s.PageIndex,
		PageSize:   s.PageSize,
		SearchTerm: s.Search,
		Filters:    s.Filters,
		Sort:       s.Sort,
	}
}

// ParamOverride adjusts the parameters of a single refresh.
type ParamOverride func(*ListParams)

// WithPageSizeOverride requests a different page size for one fetch.
func WithPageSizeOverride(n int) ParamOverride {
	return func(p *ListParams) {
		if n > 0 {
			p.PageSize = n
		}
	}
}

// WithFilterOverride adds or replaces one filter for one fetch.
func WithFilterOverride(key, value string) ParamOverride {
	return func(p *ListParams) {
		if p.Filters == nil {
			p.Filters = map[string]string{}
		}
		p.Filters[key] = value
	}
}
