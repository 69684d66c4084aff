package console

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"k8s.io/utils/clock"

	"github.com/schoolhealth/nurse-console/pkg/pagination"
)

// Stats summarises the records of the current page. They are computed from
// the returned page only, not from the whole filtered collection.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
	Flags    map[string]int `json:"flags,omitempty"`
}

// FlagFunc counts resource-specific flags (low stock, urgent, ...) on a page.
type FlagFunc[T any] func(items []T) map[string]int

// View is an immutable snapshot of a list controller.
type View[T any] struct {
	Items      []T
	TotalCount int
	TotalPages int
	Stats      Stats
	Query      QueryState
	SearchText string
	Loading    bool
	Err        error
}

// Empty reports whether the view is a successfully loaded empty page.
func (v View[T]) Empty() bool {
	return !v.Loading && v.Err == nil && len(v.Items) == 0
}

// Filtered reports whether any filter or search term is active.
func (v View[T]) Filtered() bool {
	return v.Query.Search != "" || len(v.Query.Filters) > 0
}

// Options configures a ListController.
type Options[T any] struct {
	// Name is the human name of the listed resource, used in alerts.
	Name            string
	PageSize        int
	Debounce        time.Duration
	Clock           clock.WithDelayedExecution
	Alerter         Alerter
	Logger          zerolog.Logger
	Flags           FlagFunc[T]
	FallbackMessage string
}

// ListController owns the current page of one list view.
type ListController[T Record[T]] struct {
	name      string
	gateway   Gateway[T]
	flags     FlagFunc[T]
	alerter   Alerter
	logger    zerolog.Logger
	fallback  string
	debouncer *Debouncer

	mu         sync.Mutex
	query      QueryState
	searchText string
	searchCtx  context.Context
	issued     uint64
	items      []T
	totalCount int
	totalPages int
	stats      Stats
	loading    bool
	lastErr    error
	listeners  []func(View[T])
}

// NewListController creates a controller with empty state. Callers perform
// the initial Refresh themselves.
func NewListController[T Record[T]](gw Gateway[T], opts Options[T]) *ListController[T] {
	if opts.Name == "" {
		opts.Name = "records"
	}
	if opts.Alerter == nil {
		opts.Alerter = LogAlerter(opts.Logger)
	}
	if opts.FallbackMessage == "" {
		opts.FallbackMessage = "Unable to load " + opts.Name + ". Please try again."
	}
	c := &ListController[T]{
		name:      opts.Name,
		gateway:   gw,
		flags:     opts.Flags,
		alerter:   opts.Alerter,
		logger:    opts.Logger.With().Str("list", opts.Name).Logger(),
		fallback:  opts.FallbackMessage,
		query:     NewQueryState(opts.PageSize),
		searchCtx: context.Background(),
	}
	c.stats = c.computeStats(nil)
	c.debouncer = NewDebouncer(opts.Clock, opts.Debounce, c.applySearch)
	return c
}

// Name returns the resource name of the list.
func (c *ListController[T]) Name() string { return c.name }

// OnChange registers fn to be called with a fresh snapshot after every
// state change. fn must not call back into the controller synchronously
// with a lock it also needs.
func (c *ListController[T]) OnChange(fn func(View[T])) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Refresh fetches the page described by the current query merged with the
// overrides. A response that is not the latest issued is discarded and
// ErrStaleResponse is returned.
func (c *ListController[T]) Refresh(ctx context.Context, overrides ...ParamOverride) (Page[T], error) {
	c.mu.Lock()
	c.issued++
	seq := c.issued
	params := c.query.Params()
	c.loading = true
	c.mu.Unlock()

	for _, o := range overrides {
		o(&params)
	}

	env, err := c.gateway.List(ctx, params)

	c.mu.Lock()
	if seq != c.issued {
		c.mu.Unlock()
		c.logger.Debug().Uint64("seq", seq).Msg("discarding stale list response")
		return Page[T]{}, ErrStaleResponse
	}
	c.loading = false

	if err != nil || !env.Success {
		gerr := gatewayFailure("list", env.Message, c.fallback, err)
		c.items = nil
		c.totalCount = 0
		c.totalPages = 0
		c.stats = c.computeStats(nil)
		c.lastErr = gerr
		view := c.viewLocked()
		c.mu.Unlock()

		c.logger.Error().Err(gerr).Msg("list fetch failed")
		c.alerter.ShowAlert(AlertError, "Could not load "+c.name, gerr.Message)
		c.notify(view)
		return Page[T]{}, gerr
	}

	items := make([]T, len(env.Data))
	copy(items, env.Data)
	totalPages := env.TotalPages
	if totalPages == 0 && env.TotalCount > 0 {
		totalPages = pagination.TotalPages(env.TotalCount, params.PageSize)
	}
	c.items = items
	c.totalCount = env.TotalCount
	c.totalPages = totalPages
	c.stats = c.computeStats(items)
	c.lastErr = nil
	view := c.viewLocked()
	c.mu.Unlock()

	c.logger.Debug().
		Uint64("seq", seq).
		Int("page", params.PageIndex).
		Int("items", len(items)).
		Int("total", env.TotalCount).
		Msg("list refreshed")
	c.notify(view)

	out := make([]T, len(items))
	copy(out, items)
	return Page[T]{Items: out, TotalCount: env.TotalCount, TotalPages: totalPages, Params: params}, nil
}

// SetSearch records the text for display immediately and schedules a
// debounced refresh with it.
func (c *ListController[T]) SetSearch(ctx context.Context, text string) {
	c.mu.Lock()
	c.searchText = text
	c.searchCtx = ctx
	c.mu.Unlock()
	c.debouncer.Schedule(text)
}

func (c *ListController[T]) applySearch(text string) {
	c.mu.Lock()
	c.query = c.query.WithSearch(text)
	ctx := c.searchCtx
	c.mu.Unlock()

	if _, err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrStaleResponse) {
		c.logger.Debug().Err(err).Str("search", text).Msg("debounced search refresh failed")
	}
}

// SetFilter sets one filter, resets to the first page and refreshes.
func (c *ListController[T]) SetFilter(ctx context.Context, key, value string) error {
	c.mu.Lock()
	c.query = c.query.WithFilter(key, value)
	c.mu.Unlock()
	_, err := c.Refresh(ctx)
	return ignoreStale(err)
}

// ResetFilters clears filters and search and refreshes.
func (c *ListController[T]) ResetFilters(ctx context.Context) error {
	c.debouncer.Stop()
	c.mu.Lock()
	c.query = c.query.WithoutFilters()
	c.searchText = ""
	c.mu.Unlock()
	_, err := c.Refresh(ctx)
	return ignoreStale(err)
}

// SetSort changes the sort order and refreshes the current page.
func (c *ListController[T]) SetSort(ctx context.Context, sort string) error {
	c.mu.Lock()
	c.query = c.query.WithSort(sort)
	c.mu.Unlock()
	_, err := c.Refresh(ctx)
	return ignoreStale(err)
}

// SetPage moves to page n. Pages outside 1..TotalPages are ignored.
func (c *ListController[T]) SetPage(ctx context.Context, n int) error {
	c.mu.Lock()
	if total := c.totalPages; n < 1 || n > total {
		c.mu.Unlock()
		c.logger.Debug().Int("page", n).Int("total_pages", total).Msg("ignoring out of range page")
		return nil
	}
	c.query = c.query.WithPage(n)
	c.mu.Unlock()
	_, err := c.Refresh(ctx)
	return ignoreStale(err)
}

// Find returns the record with id from the current page.
func (c *ListController[T]) Find(id uuid.UUID) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.items {
		if item.RecordID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Patch replaces the record with id by fn(record) in the current page. It
// is a display-only update; the next Refresh overwrites it.
func (c *ListController[T]) Patch(id uuid.UUID, fn func(T) T) bool {
	c.mu.Lock()
	patched := false
	for i, item := range c.items {
		if item.RecordID() == id {
			c.items[i] = fn(item)
			patched = true
			break
		}
	}
	if !patched {
		c.mu.Unlock()
		return false
	}
	c.stats = c.computeStats(c.items)
	view := c.viewLocked()
	c.mu.Unlock()
	c.notify(view)
	return true
}

// Snapshot returns the current state.
func (c *ListController[T]) Snapshot() View[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Query returns a copy of the current query state.
func (c *ListController[T]) Query() QueryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query.Snapshot()
}

// Close drops any pending debounced search.
func (c *ListController[T]) Close() {
	c.debouncer.Stop()
}

func (c *ListController[T]) viewLocked() View[T] {
	items := make([]T, len(c.items))
	copy(items, c.items)
	return View[T]{
		Items:      items,
		TotalCount: c.totalCount,
		TotalPages: c.totalPages,
		Stats:      c.stats.clone(),
		Query:      c.query.Snapshot(),
		SearchText: c.searchText,
		Loading:    c.loading,
		Err:        c.lastErr,
	}
}

func (c *ListController[T]) notify(view View[T]) {
	c.mu.Lock()
	listeners := make([]func(View[T]), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(view)
	}
}

func (c *ListController[T]) computeStats(items []T) Stats {
	s := Stats{Total: len(items), ByStatus: map[Status]int{}}
	for _, item := range items {
		s.ByStatus[item.RecordStatus()]++
	}
	if c.flags != nil {
		s.Flags = c.flags(items)
	}
	return s
}

func (s Stats) clone() Stats {
	out := Stats{Total: s.Total, ByStatus: make(map[Status]int, len(s.ByStatus))}
	for k, v := range s.ByStatus {
		out.ByStatus[k] = v
	}
	if s.Flags != nil {
		out.Flags = make(map[string]int, len(s.Flags))
		for k, v := range s.Flags {
			out.Flags[k] = v
		}
	}
	return out
}

func ignoreStale(err error) error {
	if errors.Is(err, ErrStaleResponse) {
		return nil
	}
	return err
}
