package core

import (
	"context"
	"sync"

	"todo/internal/models"
)

// State is the value presentation shells render.
//
// Loading is true only before the first snapshot arrives. Items is nil
// while loading and after a feed failure; an empty but loaded list is a
// non-nil empty slice. Err carries the feed failure message.
type State struct {
	Loading bool          `json:"loading"`
	Items   []models.Item `json:"items"`
	Err     string        `json:"error"`
}

// Failed reports whether the state describes a feed failure.
func (s State) Failed() bool {
	return s.Err != ""
}

// Empty reports whether the list loaded successfully with no items.
func (s State) Empty() bool {
	return !s.Loading && s.Items != nil && len(s.Items) == 0
}

func loadingState() State {
	return State{Loading: true}
}

func readyState(items []models.Item) State {
	if items == nil {
		items = []models.Item{}
	}
	return State{Items: items}
}

func failedState(err error) State {
	return State{Err: err.Error()}
}

// stateVar holds the current state. Every publish closes the changed
// channel and replaces it, which wakes all watchers at once.
type stateVar struct {
	mu      sync.Mutex
	value   State
	changed chan struct{}
	closed  bool
}

func newStateVar(initial State) *stateVar {
	return &stateVar{
		value:   initial,
		changed: make(chan struct{}),
	}
}

func (v *stateVar) get() (State, <-chan struct{}, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value, v.changed, v.closed
}

func (v *stateVar) set(s State) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return false
	}
	v.value = s
	close(v.changed)
	v.changed = make(chan struct{})
	return true
}

// close stops publication. Watchers drain and exit.
func (v *stateVar) close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.closed = true
	close(v.changed)
}

// watch delivers the current value, then each newer value. A slow reader
// skips straight to the latest value.
func (v *stateVar) watch(ctx context.Context) <-chan State {
	out := make(chan State, 1)

	go func() {
		defer close(out)

		for {
			value, changed, closed := v.get()
			if closed {
				return
			}

			select {
			case out <- value:
			case <-ctx.Done():
				return
			case <-changed:
				// Superseded before the reader took it.
				continue
			}

			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
