package console

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions[T any] struct {
	Alerter Alerter
	Logger  zerolog.Logger
	// FallbackMessage is shown when a failed mutation carries no server
	// message.
	FallbackMessage string
	// Cancelable reports whether a record may still be cancelled by its
	// owner. A nil predicate disables Cancel.
	Cancelable func(T) bool
}

// Coordinator drives the approval state machine of one list.
type Coordinator[T Record[T]] struct {
	list       *ListController[T]
	gateway    Gateway[T]
	machine    *Machine
	alerter    Alerter
	logger     zerolog.Logger
	fallback   string
	cancelable func(T) bool

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

// NewCoordinator creates a coordinator reconciling through list.
func NewCoordinator[T Record[T]](list *ListController[T], gw Gateway[T], machine *Machine, opts CoordinatorOptions[T]) *Coordinator[T] {
	if opts.Alerter == nil {
		opts.Alerter = LogAlerter(opts.Logger)
	}
	if opts.FallbackMessage == "" {
		opts.FallbackMessage = "Unable to update " + machine.Resource() + ". Please try again."
	}
	return &Coordinator[T]{
		list:       list,
		gateway:    gw,
		machine:    machine,
		alerter:    opts.Alerter,
		logger:     opts.Logger.With().Str("resource", machine.Resource()).Logger(),
		fallback:   opts.FallbackMessage,
		cancelable: opts.Cancelable,
		inflight:   map[uuid.UUID]struct{}{},
	}
}

// Machine returns the state machine the coordinator enforces.
func (c *Coordinator[T]) Machine() *Machine { return c.machine }

// Offered returns the actions available for the record with id.
func (c *Coordinator[T]) Offered(id uuid.UUID) ([]Action, error) {
	rec, ok := c.list.Find(id)
	if !ok {
		return nil, ErrRecordNotFound
	}
	return c.machine.Offered(rec.RecordStatus()), nil
}

// Requirement returns the justification the action needs for the record
// with id, so a confirmation prompt can ask for it.
func (c *Coordinator[T]) Requirement(id uuid.UUID, action Action) (Justification, error) {
	rec, ok := c.list.Find(id)
	if !ok {
		return JustificationNone, ErrRecordNotFound
	}
	tr, err := c.machine.Check(rec.RecordStatus(), action)
	if err != nil {
		return JustificationNone, err
	}
	return tr.Justification, nil
}

// InFlight reports whether a transition for id has not resolved yet.
func (c *Coordinator[T]) InFlight(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[id]
	return ok
}

// Perform moves the record with id through action. Illegal actions and
// missing justification fail before the gateway is contacted. On success
// the record is patched in place and the list is reloaded.
func (c *Coordinator[T]) Perform(ctx context.Context, id uuid.UUID, action Action, justification string) error {
	rec, ok := c.list.Find(id)
	if !ok {
		return ErrRecordNotFound
	}

	tr, err := c.machine.Check(rec.RecordStatus(), action)
	if err != nil {
		c.logger.Warn().Err(err).Str("id", id.String()).Msg("rejected transition")
		c.alerter.ShowAlert(AlertError, "Action not available", err.Error())
		return err
	}
	if err := c.machine.CheckJustification(tr, justification); err != nil {
		return err
	}

	if !c.acquire(id) {
		return ErrBusy
	}
	defer c.release(id)

	env, err := c.gateway.Transition(ctx, id, action, tr.Payload(justification))
	if err != nil || !env.Success {
		gerr := gatewayFailure(string(action), env.Message, c.fallback, err)
		c.logger.Error().Err(gerr).Str("id", id.String()).Str("action", string(action)).Msg("transition failed")
		c.alerter.ShowAlert(AlertError, "Action failed", gerr.Message)
		return gerr
	}

	c.list.Patch(id, func(r T) T { return r.WithTransition(tr, justification) })
	c.logger.Info().
		Str("id", id.String()).
		Str("action", string(action)).
		Str("from", string(tr.From)).
		Str("to", string(tr.To)).
		Msg("transition applied")
	msg := env.Message
	if msg == "" {
		msg = c.machine.Resource() + " is now " + string(tr.To)
	}
	c.alerter.ShowAlert(AlertSuccess, "Done", msg)

	if _, err := c.list.Refresh(ctx); err != nil && !errors.Is(err, ErrStaleResponse) {
		c.logger.Warn().Err(err).Msg("reload after transition failed")
	}
	return nil
}

// Cancel forwards a delete for a record whose owner may still withdraw it.
func (c *Coordinator[T]) Cancel(ctx context.Context, id uuid.UUID) error {
	rec, ok := c.list.Find(id)
	if !ok {
		return ErrRecordNotFound
	}
	if c.cancelable == nil || !c.cancelable(rec) {
		return ErrNotCancelable
	}
	if !c.acquire(id) {
		return ErrBusy
	}
	defer c.release(id)

	env, err := c.gateway.Delete(ctx, id)
	if err != nil || !env.Success {
		gerr := gatewayFailure("cancel", env.Message, c.fallback, err)
		c.logger.Error().Err(gerr).Str("id", id.String()).Msg("cancel failed")
		c.alerter.ShowAlert(AlertError, "Cancel failed", gerr.Message)
		return gerr
	}
	c.alerter.ShowAlert(AlertSuccess, "Cancelled", c.machine.Resource()+" cancelled")

	if _, err := c.list.Refresh(ctx); err != nil && !errors.Is(err, ErrStaleResponse) {
		c.logger.Warn().Err(err).Msg("reload after cancel failed")
	}
	return nil
}

func (c *Coordinator[T]) acquire(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[id]; busy {
		return false
	}
	c.inflight[id] = struct{}{}
	return true
}

func (c *Coordinator[T]) release(id uuid.UUID) {
	c.mu.Lock()
	delete(c.inflight, id)
	c.mu.Unlock()
}
