package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"github.com/schoolhealth/nurse-console/internal/config"
	"github.com/schoolhealth/nurse-console/internal/console"
	"github.com/schoolhealth/nurse-console/internal/domain/inventory"
	"github.com/schoolhealth/nurse-console/internal/domain/medrequest"
	"github.com/schoolhealth/nurse-console/internal/domain/vaccination"
	"github.com/schoolhealth/nurse-console/internal/platform/gateway"
)

// resource describes how one record kind is listed, rendered and driven
// from the command line.
type resource[T console.Record[T]] struct {
	use     string
	aliases []string
	short   string
	title   string
	kind    string
	machine *console.Machine

	debounce   func(*config.Config) time.Duration
	flags      console.FlagFunc[T]
	filters    []filterFlag
	columns    []string
	row        func(T) []string
	cancelable func(T) bool
}

// filterFlag exposes one list filter as a command line flag.
type filterFlag struct {
	name  string
	key   string
	usage string
}

var statusFilter = filterFlag{name: "status", key: console.FilterStatus, usage: "only records in this status"}

func inventoryResource() resource[inventory.Item] {
	return resource[inventory.Item]{
		use:      "inventory",
		aliases:  []string{"inv"},
		short:    "Review inventory restock requests",
		title:    "inventory",
		kind:     gateway.KindInventory,
		machine:  inventory.Machine,
		debounce: func(c *config.Config) time.Duration { return c.InventoryDebounce },
		flags:    inventory.Flags,
		filters: []filterFlag{
			statusFilter,
			{name: "priority", key: inventory.ParamPriority, usage: "only records with this priority"},
			{name: "type", key: inventory.ParamType, usage: "medication or supply"},
			{name: "urgent", key: inventory.ParamUrgent, usage: "true for urgent requests only"},
		},
		columns: []string{"ID", "NAME", "KIND", "QTY", "PRIORITY", "STATUS", "FLAGS"},
		row: func(it inventory.Item) []string {
			var flags []string
			if it.Urgent {
				flags = append(flags, "urgent")
			}
			if it.LowStock {
				flags = append(flags, "low-stock")
			}
			if it.Expired {
				flags = append(flags, "expired")
			} else if it.ExpiringSoon {
				flags = append(flags, "expiring")
			}
			return []string{it.ID.String(), it.Name, string(it.Kind), strconv.Itoa(it.Quantity),
				string(it.Priority), string(it.Status), strings.Join(flags, ",")}
		},
	}
}

func requestResource() resource[medrequest.Request] {
	return resource[medrequest.Request]{
		use:      "requests",
		aliases:  []string{"medication-requests", "mr"},
		short:    "Review parent medication requests",
		title:    "medication requests",
		kind:     gateway.KindMedicationRequests,
		machine:  medrequest.Machine,
		debounce: func(c *config.Config) time.Duration { return c.MedRequestDebounce },
		flags:    medrequest.Flags,
		filters: []filterFlag{
			statusFilter,
			{name: "priority", key: medrequest.ParamPriority, usage: "only records with this priority"},
			{name: "student", key: medrequest.ParamStudentID, usage: "only requests for this student id"},
		},
		columns: []string{"ID", "CODE", "STUDENT", "PARENT", "MEDICATIONS", "PRIORITY", "STATUS"},
		row: func(r medrequest.Request) []string {
			return []string{r.ID.String(), r.Code, r.StudentName, r.ParentName,
				r.Medications(), string(r.Priority), string(r.Status)}
		},
		cancelable: medrequest.Request.CanCancel,
	}
}

func sessionResource() resource[vaccination.Session] {
	return resource[vaccination.Session]{
		use:      "vaccinations",
		aliases:  []string{"vaccination-sessions", "vs"},
		short:    "Review vaccination sessions",
		title:    "vaccination sessions",
		kind:     gateway.KindVaccinationSessions,
		machine:  vaccination.Machine,
		debounce: func(c *config.Config) time.Duration { return c.VaccinationDebounce },
		flags:    vaccination.Flags,
		filters: []filterFlag{
			statusFilter,
			{name: "vaccine", key: vaccination.ParamVaccineType, usage: "only sessions for this vaccine"},
			{name: "class", key: vaccination.ParamClass, usage: "only sessions targeting this class"},
		},
		columns: []string{"ID", "NAME", "VACCINE", "CLASSES", "SCHEDULED", "CONSENT", "STATUS"},
		row: func(s vaccination.Session) []string {
			return []string{s.ID.String(), s.Name, s.VaccineType, strings.Join(s.TargetClasses, ","),
				s.ScheduledAt.Format("2006-01-02 15:04"),
				fmt.Sprintf("%d/%d (%.0f%%)", s.ApprovedStudents, s.TotalStudents, s.ConsentRate()*100), string(s.Status)}
		},
	}
}

// actionDef is one user-triggerable action and the justification it needs.
type actionDef struct {
	action        console.Action
	justification console.Justification
}

// actions lists the offered actions of the machine in table order.
func (r resource[T]) actions() []actionDef {
	seen := map[console.Action]bool{}
	var out []actionDef
	for _, tr := range r.machine.Transitions() {
		if tr.External || seen[tr.Action] {
			continue
		}
		seen[tr.Action] = true
		out = append(out, actionDef{action: tr.Action, justification: tr.Justification})
	}
	return out
}

// statuses lists every status of the machine in table order.
func (r resource[T]) statuses() []console.Status {
	seen := map[console.Status]bool{}
	var out []console.Status
	for _, tr := range r.machine.Transitions() {
		for _, s := range []console.Status{tr.From, tr.To} {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

func (r resource[T]) client(a *app) (*gateway.Client[T], error) {
	return gateway.NewClient[T](a.cfg.GatewayURL, r.kind, a.gatewayOptions()...)
}

// controllers builds the list and coordinator for one command invocation.
func (r resource[T]) controllers(a *app, gw console.Gateway[T]) (*console.ListController[T], *console.Coordinator[T]) {
	alerter := a.alerter()
	list := console.NewListController[T](gw, console.Options[T]{
		Name:     r.title,
		PageSize: a.cfg.PageSize,
		Debounce: r.debounce(a.cfg),
		Clock:    clock.RealClock{},
		Alerter:  alerter,
		Logger:   a.logger,
		Flags:    r.flags,
	})
	coord := console.NewCoordinator(list, gw, r.machine.WithMinJustification(a.cfg.MinJustificationLength),
		console.CoordinatorOptions[T]{
			Alerter:    alerter,
			Logger:     a.logger,
			Cancelable: r.cancelable,
		})
	return list, coord
}

// pinned narrows a gateway to a single record, so the coordinator can act
// on a record addressed by id instead of by page. Once the record is
// deleted the list is empty.
type pinned[T any] struct {
	console.Gateway[T]
	id      uuid.UUID
	deleted bool
}

func (p *pinned[T]) List(ctx context.Context, _ console.ListParams) (console.Envelope[[]T], error) {
	if p.deleted {
		return console.Envelope[[]T]{Success: true, Data: []T{}}, nil
	}
	env, err := p.Get(ctx, p.id)
	if err != nil || !env.Success {
		return console.Envelope[[]T]{Message: env.Message}, err
	}
	return console.Envelope[[]T]{Success: true, Data: []T{env.Data}, TotalCount: 1, TotalPages: 1}, nil
}

func (p *pinned[T]) Delete(ctx context.Context, id uuid.UUID) (console.Envelope[console.Empty], error) {
	env, err := p.Gateway.Delete(ctx, id)
	if err == nil && env.Success && id == p.id {
		p.deleted = true
	}
	return env, err
}

func resourceCmd[T console.Record[T]](a *app, r resource[T]) *cobra.Command {
	cmd := &cobra.Command{
		Use:     r.use,
		Aliases: r.aliases,
		Short:   r.short,
	}
	cmd.AddCommand(listCmd(a, r))
	cmd.AddCommand(showCmd(a, r))
	cmd.AddCommand(browseCmd(a, r))
	for _, def := range r.actions() {
		cmd.AddCommand(actionCmd(a, r, def))
	}
	if r.cancelable != nil {
		cmd.AddCommand(cancelCmd(a, r))
	}
	return cmd
}

func listCmd[T console.Record[T]](a *app, r resource[T]) *cobra.Command {
	var (
		search   string
		sort     string
		page     int
		pageSize int
	)
	filters := make([]string, len(r.filters))

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List " + r.title,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := r.client(a)
			if err != nil {
				return err
			}
			list, _ := r.controllers(a, gw)
			defer list.Close()

			override := func(p *console.ListParams) {
				p.SearchTerm = strings.TrimSpace(search)
				p.Sort = sort
				if page > 0 {
					p.PageIndex = page
				}
				for i, f := range r.filters {
					if filters[i] != "" {
						if p.Filters == nil {
							p.Filters = map[string]string{}
						}
						p.Filters[f.key] = filters[i]
					}
				}
			}
			pg, err := list.Refresh(cmd.Context(), override, console.WithPageSizeOverride(pageSize))
			if err != nil {
				return err
			}
			// The overrides apply to this fetch only, so describe the page
			// that was actually requested.
			view := list.Snapshot()
			view.Query = console.QueryState{
				Search:    pg.Params.SearchTerm,
				Filters:   pg.Params.Filters,
				PageIndex: pg.Params.PageIndex,
				PageSize:  pg.Params.PageSize,
				Sort:      pg.Params.Sort,
			}
			return renderView(a, r, view)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "free text search")
	cmd.Flags().StringVar(&sort, "sort", "", "sort field, prefix with - for descending")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "records per page (defaults to PAGE_SIZE)")
	for i, f := range r.filters {
		cmd.Flags().StringVar(&filters[i], f.name, "", f.usage)
	}
	return cmd
}

// openPinned loads the record with id through a pinned gateway.
func (r resource[T]) openPinned(ctx context.Context, a *app, raw string) (uuid.UUID, *console.ListController[T], *console.Coordinator[T], error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, nil, nil, fmt.Errorf("invalid id %q", raw)
	}
	gw, err := r.client(a)
	if err != nil {
		return uuid.Nil, nil, nil, err
	}
	list, coord := r.controllers(a, &pinned[T]{Gateway: gw, id: id})
	if _, err := list.Refresh(ctx); err != nil {
		list.Close()
		return uuid.Nil, nil, nil, err
	}
	return id, list, coord, nil
}

func showCmd[T console.Record[T]](a *app, r resource[T]) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record and the actions it offers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, list, coord, err := r.openPinned(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			defer list.Close()
			rec, _ := list.Find(id)
			offered, err := coord.Offered(id)
			if err != nil {
				return err
			}
			return renderRecord(a, r, rec, offered)
		},
	}
}

func actionCmd[T console.Record[T]](a *app, r resource[T], def actionDef) *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   string(def.action) + " <id>",
		Short: strings.ToUpper(string(def.action[:1])) + string(def.action[1:]) + " a " + r.machine.Resource(),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, list, coord, err := r.openPinned(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			defer list.Close()
			if err := coord.Perform(cmd.Context(), id, def.action, text); err != nil {
				return err
			}
			rec, _ := list.Find(id)
			offered, _ := coord.Offered(id)
			return renderRecord(a, r, rec, offered)
		},
	}
	if key := def.justification.Key(); key != "" {
		cmd.Flags().StringVar(&text, key, "", key+" recorded with the "+string(def.action))
	}
	return cmd
}

func cancelCmd[T console.Record[T]](a *app, r resource[T]) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Withdraw a " + r.machine.Resource() + " that has not been reviewed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, list, coord, err := r.openPinned(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			defer list.Close()
			return coord.Cancel(cmd.Context(), id)
		},
	}
}
