package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"todo/internal/models"
	"todo/internal/store"
)

// fakeStore lets tests drive the feed by hand and control write outcomes.
type fakeStore struct {
	mu         sync.Mutex
	writes     []string
	nextID     int64
	persistErr error
	gate       chan struct{}

	subscribed chan *fakeSub
}

type fakeSub struct {
	ctx context.Context
	in  chan store.Update
}

func newFakeStore() *fakeStore {
	return &fakeStore{subscribed: make(chan *fakeSub, 16)}
}

func (f *fakeStore) ObserveAll(ctx context.Context) <-chan store.Update {
	sub := &fakeSub{ctx: ctx, in: make(chan store.Update)}
	out := make(chan store.Update)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-sub.in:
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
				if u.Err != nil {
					return
				}
			}
		}
	}()

	f.subscribed <- sub
	return out
}

func (f *fakeStore) wait(ctx context.Context) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeStore) Persist(ctx context.Context, item *models.Item) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.persistErr != nil {
		return f.persistErr
	}
	if item.IsNew() {
		f.nextID++
		item.ID = f.nextID
	}
	f.writes = append(f.writes, "upsert:"+item.Title)
	return nil
}

func (f *fakeStore) Remove(ctx context.Context, item models.Item) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, "delete:"+item.Title)
	return nil
}

func (f *fakeStore) ListItems(ctx context.Context) ([]models.Item, error) {
	return []models.Item{}, nil
}

func (f *fakeStore) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func (f *fakeStore) nextSub(t *testing.T) *fakeSub {
	t.Helper()
	select {
	case sub := <-f.subscribed:
		return sub
	case <-time.After(stateTimeout):
		require.FailNow(t, "timed out waiting for subscription")
		return nil
	}
}

func (s *fakeSub) send(t *testing.T, u store.Update) {
	t.Helper()
	select {
	case s.in <- u:
	case <-s.ctx.Done():
		require.FailNow(t, "subscription cancelled before send")
	case <-time.After(stateTimeout):
		require.FailNow(t, "timed out sending update")
	}
}
