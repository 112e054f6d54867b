// Package core keeps a render-ready view of the item store up to date.
//
// A Core owns exactly one subscription to the store's all-items feed and
// republishes each snapshot as a State. Writes are queued and forwarded to
// the store on a background goroutine; the caller gets a Pending handle it
// may wait on or ignore.
package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"todo/internal/models"
	"todo/internal/store"
)

// ErrClosed is returned for writes submitted after Close.
var ErrClosed = errors.New("sync core closed")

var errFeedEnded = errors.New("item feed ended unexpectedly")

const (
	defaultWriteTimeout = 5 * time.Second
	defaultErrorBuffer  = 16
)

// Core bridges a store's change feed to a single published State.
type Core struct {
	store  store.Store
	state  *stateVar
	writes *writeQueue
	logger *zap.Logger

	retry        *Backoff
	writeTimeout time.Duration
	errorBuffer  int

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Core.
type Option func(*Core)

// WithLogger sets the logger for feed and write diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Core) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetry makes the core re-subscribe after a feed failure, waiting
// according to b. Failures caused by the store being closed are final.
func WithRetry(b Backoff) Option {
	return func(c *Core) {
		if b.Base <= 0 && b.Max <= 0 && b.Attempts == 0 {
			b = DefaultBackoff
		}
		c.retry = &b
	}
}

// WithWriteTimeout bounds each store write. Zero disables the bound.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Core) {
		c.writeTimeout = d
	}
}

// WithErrorBuffer sets the capacity of the Errors channel.
func WithErrorBuffer(n int) Option {
	return func(c *Core) {
		if n >= 0 {
			c.errorBuffer = n
		}
	}
}

// New creates a Core and immediately subscribes to s.
func New(s store.Store, opts ...Option) *Core {
	c := &Core{
		store:        s,
		state:        newStateVar(loadingState()),
		logger:       zap.NewNop(),
		writeTimeout: defaultWriteTimeout,
		errorBuffer:  defaultErrorBuffer,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.writes = newWriteQueue(c.apply, c.writeTimeout, c.errorBuffer, c.logger)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.run(ctx)

	return c
}

// State returns the current published state. Safe from any goroutine.
func (c *Core) State() State {
	value, _, _ := c.state.get()
	return value
}

// Watch delivers the current state and then every later one until ctx
// ends or the core is closed. A slow reader only sees the latest state.
func (c *Core) Watch(ctx context.Context) <-chan State {
	return c.state.watch(ctx)
}

// Errors delivers write failures. It is closed after Close once queued
// writes have drained. Reading it is optional.
func (c *Core) Errors() <-chan *WriteError {
	return c.writes.errs
}

// SubmitUpsert queues item for insert-or-replace and returns immediately.
func (c *Core) SubmitUpsert(item models.Item) *Pending {
	return c.writes.submit(OpUpsert, item)
}

// SubmitDelete queues removal of item and returns immediately.
func (c *Core) SubmitDelete(item models.Item) *Pending {
	return c.writes.submit(OpDelete, item)
}

// Flush waits until every write submitted so far has finished.
func (c *Core) Flush(ctx context.Context) error {
	return c.writes.flush(ctx)
}

// Close cancels the subscription and stops publishing. Writes already
// queued still reach the store; new ones fail with ErrClosed.
func (c *Core) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.done
		c.state.close()
		c.writes.close()
	})
	return nil
}

func (c *Core) apply(ctx context.Context, op Op, item models.Item) (models.Item, error) {
	switch op {
	case OpDelete:
		return item, c.store.Remove(ctx, item)
	default:
		err := c.store.Persist(ctx, &item)
		return item, err
	}
}

func (c *Core) run(ctx context.Context) {
	defer close(c.done)

	attempt := 0
	for {
		delivered, err := c.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errFeedEnded
		}

		c.logger.Error("item feed failed", zap.Error(err))
		c.publish(failedState(err))

		if c.retry == nil || store.IsFatal(err) {
			return
		}
		if delivered {
			attempt = 0
		}
		delay, ok := c.retry.Delay(attempt)
		if !ok {
			c.logger.Warn("giving up on item feed", zap.Int("attempts", attempt))
			return
		}
		attempt++

		c.logger.Info("resubscribing to item feed", zap.Duration("delay", delay), zap.Int("attempt", attempt))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// consume reads one subscription until it ends.
func (c *Core) consume(ctx context.Context) (delivered bool, err error) {
	for u := range c.store.ObserveAll(ctx) {
		if u.Err != nil {
			return delivered, u.Err
		}
		c.publish(readyState(u.Items))
		delivered = true
	}
	return delivered, nil
}

func (c *Core) publish(s State) {
	if c.state.set(s) && !s.Failed() {
		c.logger.Debug("published item snapshot", zap.Int("items", len(s.Items)))
	}
}
