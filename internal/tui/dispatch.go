package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// actionMsg carries a function to run on the Update goroutine.
type actionMsg func()

// Bridge is the presentation-thread dispatcher: actions are sent to the
// running program and executed inside Update, so state owned by the model
// is only ever touched from one goroutine.
type Bridge struct {
	mu sync.RWMutex
	p  *tea.Program
}

func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach routes subsequent actions to p.
func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	b.p = p
	b.mu.Unlock()
}

// Dispatch queues action on the program. Actions are dropped while no
// program is attached. Send returns immediately once the program exits.
func (b *Bridge) Dispatch(action func()) {
	b.mu.RLock()
	p := b.p
	b.mu.RUnlock()
	if p == nil {
		return
	}
	p.Send(actionMsg(action))
}
