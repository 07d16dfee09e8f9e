package app

import "sync"

// ToggleState records which bindings have an active recording. A binding
// reads false unless a start ran and no stop has finished.
//
// Every start opens a new session, even on a binding that is still set.
// A stop run clears the binding only while its session is current.
type ToggleState struct {
	mu     sync.Mutex
	last   uint64
	states map[string]toggleEntry
}

type toggleEntry struct {
	on      bool
	session uint64
}

// NewToggleState returns an empty ToggleState.
func NewToggleState() *ToggleState {
	return &ToggleState{states: make(map[string]toggleEntry)}
}

func (t *ToggleState) Get(bindingID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[bindingID].on
}

func (t *ToggleState) Set(bindingID string, on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.set(bindingID, on)
}

// Toggle flips the binding and returns its new value.
func (t *ToggleState) Toggle(bindingID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	on := !t.states[bindingID].on
	t.set(bindingID, on)
	return on
}

func (t *ToggleState) set(bindingID string, on bool) {
	e := t.states[bindingID]
	if on {
		t.last++
		e.session = t.last
	}
	e.on = on
	t.states[bindingID] = e
}

// Session returns the id of the binding's latest session, 0 if none.
func (t *ToggleState) Session(bindingID string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[bindingID].session
}

// Release clears the binding if session is still its latest one and
// reports whether it did.
func (t *ToggleState) Release(bindingID string, session uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.states[bindingID]
	if !ok || e.session != session {
		return false
	}
	e.on = false
	t.states[bindingID] = e
	return true
}

// Reset clears every binding.
func (t *ToggleState) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.states)
}
