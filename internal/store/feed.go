package store

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"todo/internal/models"
)

// feed fans change signals out to live subscribers.
// Each subscriber has a one-slot wakeup channel, so a burst of commits
// collapses into a single re-query that sees the latest state.
type feed struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
	done   chan struct{}
}

type subscriber struct {
	wake chan struct{}
}

func newFeed() *feed {
	return &feed{
		subs: make(map[*subscriber]struct{}),
		done: make(chan struct{}),
	}
}

func (f *feed) subscribe() (*subscriber, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, false
	}
	sub := &subscriber{wake: make(chan struct{}, 1)}
	f.subs[sub] = struct{}{}
	return sub, true
}

func (f *feed) unsubscribe(sub *subscriber) {
	f.mu.Lock()
	delete(f.subs, sub)
	f.mu.Unlock()
}

// publish signals every subscriber without blocking.
func (f *feed) publish() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for sub := range f.subs {
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	close(f.done)
}

func (f *feed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *feed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// ObserveAll returns a live feed of every item in the store.
// The current snapshot is sent first. Identical consecutive snapshots are
// suppressed, and commits made while the reader lags fold into one re-query.
func (s *SQLiteStore) ObserveAll(ctx context.Context) <-chan Update {
	out := make(chan Update, 1)

	sub, ok := s.feed.subscribe()
	if !ok {
		out <- Update{Err: ErrClosed}
		close(out)
		return out
	}

	go s.runFeed(ctx, sub, out)
	return out
}

func (s *SQLiteStore) runFeed(ctx context.Context, sub *subscriber, out chan<- Update) {
	defer close(out)
	defer s.feed.unsubscribe(sub)

	var last []models.Item
	sent := false

	for {
		items, err := s.ListItems(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if s.feed.isClosed() {
				err = ErrClosed
			}
			s.logger.Warn("item feed failed", zap.Error(err))
			sendUpdate(ctx, out, Update{Err: err})
			return
		}

		if !sent || !slices.Equal(items, last) {
			if !sendUpdate(ctx, out, Update{Items: items}) {
				return
			}
			last, sent = items, true
		}

		select {
		case <-ctx.Done():
			return
		case <-s.feed.done:
			sendUpdate(ctx, out, Update{Err: ErrClosed})
			return
		case <-sub.wake:
		}
	}
}

func sendUpdate(ctx context.Context, out chan<- Update, u Update) bool {
	select {
	case out <- u:
		return true
	case <-ctx.Done():
		return false
	}
}

// IsFatal reports whether err ends a feed for good, as opposed to a fault
// a fresh subscription might recover from.
func IsFatal(err error) bool {
	return errors.Is(err, ErrClosed)
}
