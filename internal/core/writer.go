package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"todo/internal/models"
)

// Op names the kind of write a Pending tracks.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// WriteError reports a write that the store rejected.
type WriteError struct {
	Op   Op
	Item models.Item
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to %s item %d: %v", e.Op, e.Item.ID, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Pending is the handle for a submitted write. Callers may ignore it;
// the write happens either way.
type Pending struct {
	op        Op
	submitted models.Item
	result    models.Item
	err       error
	done      chan struct{}
}

func newPending(op Op, item models.Item) *Pending {
	return &Pending{op: op, submitted: item, result: item, done: make(chan struct{})}
}

func (p *Pending) finish(item models.Item, err error) {
	p.result = item
	p.err = err
	close(p.done)
}

// Done is closed once the store has finished the write.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err returns the write's result. It is nil until Done is closed.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the write completes or ctx ends. Giving up on the wait
// does not cancel the write.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Item returns the item as written once Done is closed, including the ID
// the store assigned to a new item. Before that it returns the submitted item.
func (p *Pending) Item() models.Item {
	select {
	case <-p.done:
		return p.result
	default:
		return p.submitted
	}
}

// Op reports which kind of write this is.
func (p *Pending) Op() Op {
	return p.op
}

type applyFunc func(ctx context.Context, op Op, item models.Item) (models.Item, error)

// writeQueue forwards writes to the store in submission order. A worker
// goroutine exists only while there is work, so writes queued before
// teardown still drain afterwards.
type writeQueue struct {
	mu      sync.Mutex
	queue   []*Pending
	running bool
	closed  bool
	idle    chan struct{}

	apply   applyFunc
	timeout time.Duration
	errs    chan *WriteError
	errOnce sync.Once
	logger  *zap.Logger
}

func newWriteQueue(apply applyFunc, timeout time.Duration, errBuffer int, logger *zap.Logger) *writeQueue {
	idle := make(chan struct{})
	close(idle)
	return &writeQueue{
		idle:    idle,
		apply:   apply,
		timeout: timeout,
		errs:    make(chan *WriteError, errBuffer),
		logger:  logger,
	}
}

func (q *writeQueue) submit(op Op, item models.Item) *Pending {
	p := newPending(op, item)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		p.finish(item, ErrClosed)
		return p
	}
	if !q.running {
		q.idle = make(chan struct{})
	}
	q.queue = append(q.queue, p)
	start := !q.running
	q.running = true
	q.mu.Unlock()

	if start {
		go q.run()
	}
	return p
}

func (q *writeQueue) run() {
	for {
		q.mu.Lock()
		if len(q.queue) == 0 {
			q.running = false
			close(q.idle)
			closed := q.closed
			q.mu.Unlock()
			if closed {
				q.closeErrs()
			}
			return
		}
		p := q.queue[0]
		q.queue[0] = nil
		q.queue = q.queue[1:]
		q.mu.Unlock()

		q.process(p)
	}
}

func (q *writeQueue) process(p *Pending) {
	ctx := context.Background()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	item, err := q.apply(ctx, p.op, p.submitted)
	if err != nil {
		werr := &WriteError{Op: p.op, Item: p.submitted, Err: err}
		q.logger.Error("item write failed",
			zap.String("op", string(p.op)),
			zap.Int64("id", p.submitted.ID),
			zap.Error(err),
		)
		q.report(werr)
		p.finish(p.submitted, werr)
		return
	}

	q.logger.Debug("item written", zap.String("op", string(p.op)), zap.Int64("id", item.ID))
	p.finish(item, nil)
}

// report offers the failure to the Errors channel without blocking.
func (q *writeQueue) report(werr *WriteError) {
	select {
	case q.errs <- werr:
	default:
		q.logger.Warn("write error channel full, dropping notification", zap.Error(werr))
	}
}

// flush waits until every write submitted so far has finished.
func (q *writeQueue) flush(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close rejects new writes. Queued writes keep draining; the error channel
// closes once they are done.
func (q *writeQueue) close() {
	q.mu.Lock()
	q.closed = true
	running := q.running
	q.mu.Unlock()

	if !running {
		q.closeErrs()
	}
}

func (q *writeQueue) closeErrs() {
	q.errOnce.Do(func() { close(q.errs) })
}
