package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/schoolhealth/nurse-console/internal/console"
	"github.com/schoolhealth/nurse-console/pkg/pagination"
)

// syncWriter serialises writes from the command goroutine and the
// debounced refreshes of an interactive session.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type listOutput[T any] struct {
	Items      []T           `json:"items"`
	TotalCount int           `json:"totalCount"`
	TotalPages int           `json:"totalPages"`
	PageIndex  int           `json:"pageIndex"`
	Stats      console.Stats `json:"stats"`
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderView[T console.Record[T]](a *app, r resource[T], view console.View[T]) error {
	if a.jsonOut {
		return writeJSON(a.out, listOutput[T]{
			Items:      view.Items,
			TotalCount: view.TotalCount,
			TotalPages: view.TotalPages,
			PageIndex:  view.Query.PageIndex,
			Stats:      view.Stats,
		})
	}
	var b strings.Builder
	writeTable(&b, r, view.Items, true)
	if view.Empty() {
		if view.Filtered() {
			b.WriteString("No " + r.title + " match the current filters.\n")
		} else {
			b.WriteString("No " + r.title + " yet.\n")
		}
	}
	pages := view.TotalPages
	if pages == 0 {
		pages = 1
	}
	fmt.Fprintf(&b, "Page %d of %d, %d %s%s\n", view.Query.PageIndex, pages, view.TotalCount, r.title, pagerHint(view))
	if line := statsLine(r, view.Stats); line != "" {
		b.WriteString(line + "\n")
	}
	_, err := io.WriteString(a.out, b.String())
	return err
}

func renderRecord[T console.Record[T]](a *app, r resource[T], rec T, offered []console.Action) error {
	if a.jsonOut {
		return writeJSON(a.out, rec)
	}
	var b strings.Builder
	writeTable(&b, r, []T{rec}, false)
	actions := joinActions(offered)
	if len(offered) == 0 && r.machine.Terminal(rec.RecordStatus()) {
		actions += " (final)"
	}
	b.WriteString("Actions: " + actions + "\n")
	_, err := io.WriteString(a.out, b.String())
	return err
}

// pagerHint tells which of next and prev lead somewhere.
func pagerHint[T any](view console.View[T]) string {
	p := pagination.Params{PageIndex: view.Query.PageIndex, PageSize: view.Query.PageSize}
	var moves []string
	if p.HasPrevious() {
		moves = append(moves, "prev")
	}
	if p.HasNext(view.TotalCount) {
		moves = append(moves, "next")
	}
	if len(moves) == 0 {
		return ""
	}
	return "  [" + strings.Join(moves, " | ") + "]"
}

func writeTable[T console.Record[T]](w io.Writer, r resource[T], items []T, numbered bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := r.columns
	if numbered {
		header = append([]string{"#"}, header...)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for i, item := range items {
		cells := r.row(item)
		if numbered {
			cells = append([]string{fmt.Sprint(i + 1)}, cells...)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}

// statsLine summarises the page counts in machine status order, then the
// derived flags by name.
func statsLine[T console.Record[T]](r resource[T], s console.Stats) string {
	var parts []string
	for _, st := range r.statuses() {
		if n := s.ByStatus[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", st, n))
		}
	}
	keys := make([]string, 0, len(s.Flags))
	for k := range s.Flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, s.Flags[k]))
	}
	return strings.Join(parts, "  ")
}
