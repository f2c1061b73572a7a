// Package connectivity tracks whether the remote API is reachable.
//
// It stands in for the browser's navigator.onLine and "online" event: the
// state is ONLINE or OFFLINE, and listeners armed with OnceOnline run exactly
// once on the next OFFLINE -> ONLINE transition. Going offline runs nothing.
package connectivity

import (
	"log/slog"
	"sync"
)

// State: whether the remote API is reachable.
type State int

const (
	Offline State = iota
	Online
)

// String returns "online" or "offline".
func (s State) String() string {
	if s == Online {
		return "online"
	}
	return "offline"
}

// Monitor: current connectivity state plus the listeners waiting for the
// next transition to online.
type Monitor struct {
	mu      sync.Mutex
	state   State
	waiters []func()
	logger  *slog.Logger
}

// NewMonitor returns a monitor starting in the given state.
func NewMonitor(initial State, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{state: initial, logger: logger}
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Online reports whether the current state is Online.
func (m *Monitor) Online() bool {
	return m.State() == Online
}

// Set records the current state. On an OFFLINE -> ONLINE transition every
// armed listener is removed and run, in arming order, on the caller's
// goroutine.
func (m *Monitor) Set(s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	var fire []func()
	if prev == Offline && s == Online {
		fire = m.waiters
		m.waiters = nil
	}
	m.mu.Unlock()

	if prev != s {
		m.logger.Info("connectivity changed", "from", prev, "to", s, "listeners", len(fire))
	}
	for _, fn := range fire {
		fn()
	}
}

// OnceOnline arms fn for the next OFFLINE -> ONLINE transition. Arming while
// already online still waits for a transition.
func (m *Monitor) OnceOnline(fn func()) {
	m.mu.Lock()
	m.waiters = append(m.waiters, fn)
	m.mu.Unlock()
}

// WhenOnline runs fn right away, on the caller's goroutine, when the state is
// already Online. Otherwise it arms fn like OnceOnline. The check and the
// arming happen under one lock, so a concurrent Set cannot slip between them.
// It reports whether fn ran.
func (m *Monitor) WhenOnline(fn func()) bool {
	m.mu.Lock()
	if m.state != Online {
		m.waiters = append(m.waiters, fn)
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	fn()
	return true
}

// Armed returns the number of listeners waiting for the next transition.
func (m *Monitor) Armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}
