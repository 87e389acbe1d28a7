package wrapup

import (
	"sync"

	"github.com/dennisdiepolder/monti/wrapupbridge/internal/types"
)

// PendingTable maps an interaction to the wrap-up code that should be applied
// once the interaction reaches Wrapup. There is at most one entry per
// interaction; Put overwrites.
type PendingTable struct {
	entries map[types.InteractionID]types.WrapupCodeID
	mu      sync.Mutex
}

// NewPendingTable creates an empty table
func NewPendingTable() *PendingTable {
	return &PendingTable{
		entries: make(map[types.InteractionID]types.WrapupCodeID),
	}
}

// Put records code as pending for id, replacing any previous entry.
// It returns the replaced code, if any.
func (t *PendingTable) Put(id types.InteractionID, code types.WrapupCodeID) (types.WrapupCodeID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, existed := t.entries[id]
	t.entries[id] = code
	return prev, existed
}

// Take removes and returns the pending code for id
func (t *PendingTable) Take(id types.InteractionID) (types.WrapupCodeID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	code, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return code, ok
}

// Get returns the pending code for id without removing it
func (t *PendingTable) Get(id types.InteractionID) (types.WrapupCodeID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	code, ok := t.entries[id]
	return code, ok
}

// Clear drops every pending entry and returns how many were dropped
func (t *PendingTable) Clear() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.entries)
	t.entries = make(map[types.InteractionID]types.WrapupCodeID)
	return n
}

// Len returns the number of pending entries
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Snapshot returns a copy of the table
func (t *PendingTable) Snapshot() map[types.InteractionID]types.WrapupCodeID {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[types.InteractionID]types.WrapupCodeID, len(t.entries))
	for id, code := range t.entries {
		out[id] = code
	}
	return out
}
