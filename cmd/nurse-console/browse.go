package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/schoolhealth/nurse-console/internal/console"
	"github.com/schoolhealth/nurse-console/internal/platform/websocket"
)

const browseHelp = `Commands:
  search <text>         search, applied after the debounce delay
  filter <key> <value>  set a filter (empty value clears it)
  reset                 clear search and filters
  sort <field>          sort, prefix with - for descending
  page <n> | next | prev
  open <row>            open the action menu of a row (again to close)
  <action> [text]       run an action on the open row
  cancel                withdraw the open row, where allowed
  refresh | help | quit
`

func browseCmd[T console.Record[T]](a *app, r resource[T]) *cobra.Command {
	var live bool
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse " + r.title + " interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := r.client(a)
			if err != nil {
				return err
			}
			list, coord := r.controllers(a, gw)
			defer list.Close()
			b := &browser[T]{app: a, res: r, list: list, coord: coord, menu: console.NewActionMenu(coord.Machine())}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if live {
				go b.follow(ctx)
			}
			return b.run(ctx)
		},
	}
	cmd.Flags().BoolVar(&live, "live", false, "refresh when another console changes a record")
	return cmd
}

// browser is a line-oriented list view. Each input line is one
// interaction with the view.
type browser[T console.Record[T]] struct {
	app   *app
	res   resource[T]
	list  *console.ListController[T]
	coord *console.Coordinator[T]
	menu  *console.ActionMenu

	mu         sync.Mutex
	lastSearch string
}

func (b *browser[T]) run(ctx context.Context) error {
	// Debounced searches complete on a timer goroutine.
	b.list.OnChange(func(v console.View[T]) {
		if v.Query.Search != b.searchSeen(v.Query.Search) {
			_ = renderView(b.app, b.res, v)
		}
	})
	if _, err := b.list.Refresh(ctx); err != nil {
		return err
	}
	b.render()

	scanner := bufio.NewScanner(b.app.in)
	for {
		fmt.Fprint(b.app.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		quit, err := b.handle(ctx, line)
		if err != nil {
			fmt.Fprintln(b.app.out, "error:", err)
		}
		if quit {
			return nil
		}
	}
}

// follow refreshes the view whenever the backend reports a change to this
// kind.
func (b *browser[T]) follow(ctx context.Context) {
	err := websocket.Listen(ctx, b.app.cfg.GatewayURL, b.app.cfg.APIToken, []string{b.res.kind}, func(ev websocket.Event) {
		if _, err := b.list.Refresh(ctx); err != nil {
			b.app.logger.Debug().Err(err).Msg("live refresh failed")
			return
		}
		fmt.Fprintf(b.app.out, "\n[%s %s by %s]\n", ev.Action, b.res.kind, ev.Actor)
		b.render()
	})
	if err != nil {
		b.app.logger.Warn().Err(err).Msg("live updates stopped")
	}
}

// searchSeen records s as the last rendered search and returns the
// previous one.
func (b *browser[T]) searchSeen(s string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.lastSearch
	b.lastSearch = s
	return prev
}

func (b *browser[T]) render() {
	v := b.list.Snapshot()
	b.searchSeen(v.Query.Search)
	_ = renderView(b.app, b.res, v)
	if id, ok := b.menu.OpenID(); ok {
		if rec, found := b.list.Find(id); found {
			busy := ""
			if b.coord.InFlight(id) {
				busy = "  (saving)"
			}
			fmt.Fprintf(b.app.out, "Open: %s  actions: %s%s\n", id, joinActions(b.menu.Actions(rec.RecordStatus())), busy)
		}
	}
}

func (b *browser[T]) handle(ctx context.Context, line string) (bool, error) {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	verb = strings.ToLower(verb)

	// Anything other than acting on the open menu counts as an
	// interaction outside it.
	if _, isAction := b.actionFor(verb); !isAction && verb != "cancel" && verb != "open" {
		b.menu.Dismiss(console.Interaction{})
	}

	switch verb {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		fmt.Fprint(b.app.out, browseHelp)
		return false, nil
	case "search":
		b.list.SetSearch(ctx, rest)
		return false, nil
	case "filter":
		key, value, _ := strings.Cut(rest, " ")
		if key == "" {
			return false, errors.New("usage: filter <key> <value>")
		}
		if err := b.list.SetFilter(ctx, key, strings.TrimSpace(value)); err != nil {
			return false, err
		}
	case "reset":
		b.searchSeen("")
		if err := b.list.ResetFilters(ctx); err != nil {
			return false, err
		}
	case "sort":
		if err := b.list.SetSort(ctx, rest); err != nil {
			return false, err
		}
	case "page", "next", "prev":
		n := b.list.Query().PageIndex
		switch verb {
		case "next":
			n++
		case "prev":
			n--
		default:
			var err error
			if n, err = strconv.Atoi(rest); err != nil {
				return false, fmt.Errorf("invalid page %q", rest)
			}
		}
		if err := b.list.SetPage(ctx, n); err != nil {
			return false, err
		}
	case "refresh":
		if _, err := b.list.Refresh(ctx); err != nil {
			return false, err
		}
	case "open":
		id, err := b.rowID(rest)
		if err != nil {
			return false, err
		}
		b.menu.Toggle(id)
	case "cancel":
		id, ok := b.menu.OpenID()
		if !ok {
			return false, errors.New("open a row first")
		}
		if err := b.coord.Cancel(ctx, id); err != nil {
			return false, err
		}
		b.menu.Close()
	default:
		action, ok := b.actionFor(verb)
		if !ok {
			return false, fmt.Errorf("unknown command %q, try help", verb)
		}
		id, open := b.menu.OpenID()
		if !open {
			return false, errors.New("open a row first")
		}
		if err := b.coord.Perform(ctx, id, action, rest); err != nil {
			return false, err
		}
		b.menu.Close()
	}
	b.render()
	return false, nil
}

func (b *browser[T]) actionFor(verb string) (console.Action, bool) {
	for _, def := range b.res.actions() {
		if string(def.action) == verb {
			return def.action, true
		}
	}
	return "", false
}

func (b *browser[T]) rowID(raw string) (uuid.UUID, error) {
	n, err := strconv.Atoi(raw)
	items := b.list.Snapshot().Items
	if err != nil || n < 1 || n > len(items) {
		return uuid.Nil, fmt.Errorf("no row %q on this page", raw)
	}
	return items[n-1].RecordID(), nil
}

func joinActions(actions []console.Action) string {
	if len(actions) == 0 {
		return "none"
	}
	names := make([]string, len(actions))
	for i, act := range actions {
		names[i] = string(act)
	}
	return strings.Join(names, ", ")
}
