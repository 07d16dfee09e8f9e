// Package hotkey listens for global key combinations and reports presses
// and releases by binding id.
package hotkey

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	hook "github.com/robotn/gohook"
)

// Handler receives binding events. pressed is false on release.
type Handler func(bindingID, shortcut string, pressed bool)

type binding struct {
	shortcut Shortcut
	enabled  bool
	active   bool // all keys currently held
}

// Manager tracks global key state and dispatches matching bindings in order
// on a single goroutine.
type Manager struct {
	handler Handler

	mu       sync.Mutex
	bindings map[string]*binding
	pressed  map[uint16]bool
	running  bool

	dispatch chan func()
	done     chan struct{}

	onStatus func(granted bool)
}

// NewManager creates a manager that sends binding events to handler.
func NewManager(handler Handler) *Manager {
	return &Manager{
		handler:  handler,
		bindings: make(map[string]*binding),
		pressed:  make(map[uint16]bool),
	}
}

// SetStatusCallback is called on Start with the accessibility permission state.
func (m *Manager) SetStatusCallback(fn func(granted bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStatus = fn
}

// Set installs or replaces the shortcut for a binding. New bindings are
// enabled unless disabled is set.
func (m *Manager) Set(id, shortcut string, disabled bool) error {
	sc, err := Parse(shortcut)
	if err != nil {
		return fmt.Errorf("binding %s: %w", id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[id] = &binding{shortcut: sc, enabled: !disabled}
	return nil
}

// Register enables a binding installed with Set.
func (m *Manager) Register(id string) {
	m.setEnabled(id, true)
}

// Unregister disables a binding. A held combination is dropped without a
// release event.
func (m *Manager) Unregister(id string) {
	m.setEnabled(id, false)
}

func (m *Manager) setEnabled(id string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bindings[id]
	if !ok {
		slog.Warn("unknown hotkey binding", "binding", id)
		return
	}
	b.enabled = enabled
	if !enabled {
		b.active = false
	}
}

// Start begins listening for global key events.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.dispatch = make(chan func(), 64)
	m.done = make(chan struct{})
	onStatus := m.onStatus
	m.mu.Unlock()

	granted := IsAccessibilityEnabled(true)
	if onStatus != nil {
		onStatus(granted)
	}

	go m.runDispatch(m.dispatch, m.done)

	events := hook.Start()
	go func() {
		for ev := range events {
			m.handle(ev)
		}
	}()
	return nil
}

// Stop ends listening.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.done)
	m.mu.Unlock()

	hook.End()
}

func (m *Manager) runDispatch(queue <-chan func(), done <-chan struct{}) {
	for {
		select {
		case fn := <-queue:
			fn()
		case <-done:
			return
		}
	}
}

// handle updates key state for one event and queues binding callbacks.
func (m *Manager) handle(ev hook.Event) {
	var calls []func()

	m.mu.Lock()
	code := canonical(ev.Keycode)
	switch ev.Kind {
	case hook.KeyHold:
		m.pressed[code] = true
		if id, b := m.bestMatch(code); b != nil {
			b.active = true
			calls = append(calls, m.call(id, b.shortcut.Raw, true))
		}
	case hook.KeyUp:
		delete(m.pressed, code)
		for id, b := range m.bindings {
			if b.active && slices.Contains(b.shortcut.keys, code) {
				b.active = false
				calls = append(calls, m.call(id, b.shortcut.Raw, false))
			}
		}
	}
	queue := m.dispatch
	m.mu.Unlock()

	for _, fn := range calls {
		if queue == nil {
			fn()
			continue
		}
		queue <- fn
	}
}

// bestMatch returns the enabled, inactive binding completed by code with the
// most keys. Ties go to the smallest id. Caller holds m.mu.
func (m *Manager) bestMatch(code uint16) (string, *binding) {
	var bestID string
	var best *binding
	for id, b := range m.bindings {
		if !b.enabled || b.active || !slices.Contains(b.shortcut.keys, code) || !m.matches(b.shortcut) {
			continue
		}
		if best == nil || len(b.shortcut.keys) > len(best.shortcut.keys) ||
			(len(b.shortcut.keys) == len(best.shortcut.keys) && id < bestID) {
			bestID, best = id, b
		}
	}
	return bestID, best
}

// matches reports whether every key of sc is held and no other modifier is.
// Caller holds m.mu.
func (m *Manager) matches(sc Shortcut) bool {
	for _, k := range sc.keys {
		if !m.pressed[k] {
			return false
		}
	}
	for k := range m.pressed {
		if isModifier(k) && !slices.Contains(sc.keys, k) {
			return false
		}
	}
	return true
}

func (m *Manager) call(id, shortcut string, pressed bool) func() {
	return func() { m.handler(id, shortcut, pressed) }
}
