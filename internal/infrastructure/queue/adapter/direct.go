package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"zenchatty/internal/infrastructure/queue/port"
)

// ErrQueueClosed is returned by DirectQueue.Enqueue after Stop.
var ErrQueueClosed = errors.New("direct queue: closed")

// DirectQueue is the broker-less backend: it is both the port.Client and the
// port.Server. With buffer 0 Enqueue runs the handler inline and returns its
// error. With buffer > 0 tasks go through a bounded channel consumed by a
// single worker started by Run; Stop closes the channel and drains it.
// running is claimed once, by Run or by a Stop that finds no worker.
type DirectQueue struct {
	buffer int
	log    *zap.Logger

	hmu      sync.RWMutex
	handlers map[string]port.Handler

	// mu guards closed and the channel close
	mu     sync.RWMutex
	closed bool

	tasks   chan port.Task
	drained chan struct{}
	running atomic.Bool
	once    sync.Once
}

// NewDirectQueue constructs a DirectQueue; buffer <= 0 selects synchronous mode.
func NewDirectQueue(buffer int, log *zap.Logger) *DirectQueue {
	if log == nil {
		log = zap.NewNop()
	}
	q := &DirectQueue{
		buffer:   buffer,
		log:      log,
		handlers: make(map[string]port.Handler),
		drained:  make(chan struct{}),
	}
	if buffer > 0 {
		q.tasks = make(chan port.Task, buffer)
	}
	return q
}

var (
	_ port.Client = (*DirectQueue)(nil)
	_ port.Server = (*DirectQueue)(nil)
)

func (q *DirectQueue) Register(taskType string, h port.Handler) {
	q.hmu.Lock()
	q.handlers[taskType] = h
	q.hmu.Unlock()
}

func (q *DirectQueue) Enqueue(ctx context.Context, t port.Task, opts ...port.EnqueueOption) (string, error) {
	if t.Type == "" {
		return "", errors.New("direct queue: task type is required")
	}
	id := uuid.NewString()
	if len(opts) > 0 && opts[0].TaskID != "" {
		id = opts[0].TaskID
	}

	if q.tasks == nil {
		q.mu.RLock()
		closed := q.closed
		q.mu.RUnlock()
		if closed {
			return "", ErrQueueClosed
		}
		if err := q.dispatch(ctx, t); err != nil {
			return "", err
		}
		return id, nil
	}

	// hold the read lock so Stop cannot close the channel mid-send
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return "", ErrQueueClosed
	}
	select {
	case q.tasks <- t:
		return id, nil
	case <-ctx.Done():
		return "", fmt.Errorf("direct queue: enqueue: %w", ctx.Err())
	}
}

func (q *DirectQueue) dispatch(ctx context.Context, t port.Task) (err error) {
	q.hmu.RLock()
	h := q.handlers[t.Type]
	q.hmu.RUnlock()
	if h == nil {
		return fmt.Errorf("%w: %s", port.ErrUnknownTaskType, t.Type)
	}
	defer func() {
		if r := recover(); r != nil {
			err = port.Permanent(fmt.Errorf("direct queue: handler panic: %v", r))
		}
	}()
	return h(ctx, t)
}

// Run consumes buffered tasks until Stop closes the channel. In synchronous
// mode it just waits for ctx.
func (q *DirectQueue) Run(ctx context.Context) error {
	if q.tasks == nil {
		<-ctx.Done()
		return nil
	}
	if !q.running.CompareAndSwap(false, true) {
		// another Run, or a Stop that already drained the buffer
		return nil
	}
	defer close(q.drained)

	go func() {
		select {
		case <-ctx.Done():
			_ = q.Stop(context.Background())
		case <-q.drained:
		}
	}()

	for t := range q.tasks {
		q.run(context.Background(), t)
	}
	return nil
}

func (q *DirectQueue) run(ctx context.Context, t port.Task) {
	if err := q.dispatch(ctx, t); err != nil {
		q.log.Error("direct queue: task failed, dropping",
			zap.String("type", t.Type),
			zap.Bool("permanent", port.IsPermanent(err)),
			zap.Error(err))
	}
}

// Stop refuses new tasks, closes the channel and waits for what is already
// buffered to be handled, bounded by ctx. Without a running worker Stop
// handles the backlog itself.
func (q *DirectQueue) Stop(ctx context.Context) error {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		if q.tasks != nil {
			close(q.tasks)
		}
		q.mu.Unlock()
	})
	if q.tasks == nil {
		return nil
	}
	if q.running.CompareAndSwap(false, true) {
		defer close(q.drained)
		return q.drainInline(ctx)
	}
	select {
	case <-q.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *DirectQueue) drainInline(ctx context.Context) error {
	for {
		select {
		case t, ok := <-q.tasks:
			if !ok {
				return nil
			}
			q.run(ctx, t)
		case <-ctx.Done():
			q.log.Error("direct queue: stop deadline hit, dropping buffered tasks", zap.Int("dropped", len(q.tasks)))
			return ctx.Err()
		}
	}
}

func (q *DirectQueue) Close() error {
	return q.Stop(context.Background())
}
