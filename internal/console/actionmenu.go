package console

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Interaction is a pointer event somewhere in the list view. MenuID is the
// record whose open menu contains the event, or uuid.Nil when the event
// landed outside every menu.
type Interaction struct {
	MenuID uuid.UUID
}

// ActionMenu tracks the single row whose action menu is open.
type ActionMenu struct {
	machine *Machine

	mu     sync.Mutex
	openID uuid.UUID
	open   bool
}

// NewActionMenu creates a closed menu offering the machine's actions.
func NewActionMenu(machine *Machine) *ActionMenu {
	return &ActionMenu{machine: machine}
}

// Toggle opens the menu of id, or closes it when it is already open.
// Opening one menu closes any other.
func (m *ActionMenu) Toggle(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open && m.openID == id {
		m.open = false
		m.openID = uuid.Nil
		return
	}
	m.openID = id
	m.open = true
}

// OpenID returns the record whose menu is open.
func (m *ActionMenu) OpenID() (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openID, m.open
}

// IsOpen reports whether the menu of id is open.
func (m *ActionMenu) IsOpen(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open && m.openID == id
}

// Close closes whatever menu is open.
func (m *ActionMenu) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	m.openID = uuid.Nil
}

// Dismiss handles an interaction and closes the open menu when the event
// fell outside it. It returns true when a menu was closed.
func (m *ActionMenu) Dismiss(ev Interaction) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open || ev.MenuID == m.openID {
		return false
	}
	m.open = false
	m.openID = uuid.Nil
	return true
}

// Watch dismisses on every interaction received until ctx is done or the
// channel is closed. It ties outside-click handling to the lifetime of the
// view that owns ctx.
func (m *ActionMenu) Watch(ctx context.Context, events <-chan Interaction) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.Dismiss(ev)
		}
	}
}

// Actions returns the actions the menu offers for a record in status s.
func (m *ActionMenu) Actions(s Status) []Action {
	return m.machine.Offered(s)
}
