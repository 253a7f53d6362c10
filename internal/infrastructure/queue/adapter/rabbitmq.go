package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"zenchatty/internal/infrastructure/queue/port"
)

const taskTypeHeader = "task_type"

// ===================== Client =====================

// RabbitClient implements port.Client on a durable RabbitMQ queue.
// Messages are published persistent so they survive a broker restart.
type RabbitClient struct {
	conn  *amqp.Connection
	queue string

	mu sync.Mutex
	ch *amqp.Channel
}

// NewRabbitClient dials url and declares the durable queue.
func NewRabbitClient(url, queue string) (*RabbitClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	c := &RabbitClient{conn: conn, queue: queue}
	if _, err := c.channel(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

var _ port.Client = (*RabbitClient)(nil)

// channel returns the shared publishing channel, reopening it after a channel-level error.
func (c *RabbitClient) channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch != nil && !c.ch.IsClosed() {
		return c.ch, nil
	}
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq: declare queue: %w", err)
	}
	c.ch = ch
	return ch, nil
}

func (c *RabbitClient) Enqueue(ctx context.Context, t port.Task, opts ...port.EnqueueOption) (string, error) {
	if t.Type == "" {
		return "", errors.New("rabbitmq: task type is required")
	}
	id := uuid.NewString()
	if len(opts) > 0 && opts[0].TaskID != "" {
		id = opts[0].TaskID
	}
	ch, err := c.channel()
	if err != nil {
		return "", err
	}
	err = ch.PublishWithContext(ctx, "", c.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Headers:      amqp.Table{taskTypeHeader: t.Type},
		Body:         t.Payload,
	})
	if err != nil {
		return "", fmt.Errorf("rabbitmq: publish: %w", err)
	}
	return id, nil
}

func (c *RabbitClient) Close() error {
	c.mu.Lock()
	if c.ch != nil {
		_ = c.ch.Close()
	}
	c.mu.Unlock()
	return c.conn.Close()
}

// ===================== Server =====================

// RabbitServer implements port.Server with manual acknowledgements.
// A delivery is acked only after its handler returns nil; failures are
// nacked without requeue so a poison message cannot loop forever.
type RabbitServer struct {
	conn     *amqp.Connection
	queue    string
	prefetch int
	log      *zap.Logger

	mu       sync.RWMutex
	handlers map[string]port.Handler

	chmu     sync.Mutex // guards ch between Run and Stop
	ch       *amqp.Channel
	tag      string
	started  chan struct{}
	drained  chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewRabbitServer dials url; prefetch bounds unacknowledged deliveries in flight.
func NewRabbitServer(url, queue string, prefetch int, log *zap.Logger) (*RabbitServer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RabbitServer{
		conn:     conn,
		queue:    queue,
		prefetch: prefetch,
		log:      log,
		handlers: make(map[string]port.Handler),
		tag:      "consumer-" + uuid.NewString(),
		started:  make(chan struct{}),
		drained:  make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

var _ port.Server = (*RabbitServer)(nil)

func (s *RabbitServer) Register(taskType string, h port.Handler) {
	s.mu.Lock()
	s.handlers[taskType] = h
	s.mu.Unlock()
}

// Run consumes until ctx is canceled or Stop is called, then waits for
// in-flight deliveries before returning.
func (s *RabbitServer) Run(ctx context.Context) error {
	ch, err := s.conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	s.chmu.Lock()
	s.ch = ch
	s.chmu.Unlock()
	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare queue: %w", err)
	}
	if err := ch.Qos(s.prefetch, 0, false); err != nil {
		return fmt.Errorf("rabbitmq: qos: %w", err)
	}
	// manual ack (auto-ack=false)
	deliveries, err := ch.Consume(s.queue, s.tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume: %w", err)
	}

	s.log.Info("rabbitmq consumer started", zap.String("queue", s.queue), zap.Int("prefetch", s.prefetch))
	close(s.started)
	defer close(s.drained)

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop(context.Background())
		case <-s.done:
		}
	}()

	// After Cancel the broker stops sending and the channel drains the
	// deliveries it already buffered, then closes.
	for d := range deliveries {
		s.handle(ctx, d)
	}
	return nil
}

func (s *RabbitServer) handle(ctx context.Context, d amqp.Delivery) {
	taskType, _ := d.Headers[taskTypeHeader].(string)

	s.mu.RLock()
	h := s.handlers[taskType]
	s.mu.RUnlock()

	if h == nil {
		s.log.Error("rabbitmq: dropping delivery", zap.String("type", taskType), zap.Error(port.ErrUnknownTaskType))
		_ = d.Nack(false, false)
		return
	}

	// handlers must finish even while shutting down
	err := h(context.WithoutCancel(ctx), port.Task{Type: taskType, Payload: d.Body})
	if err != nil {
		s.log.Error("rabbitmq: task failed, dropping",
			zap.String("type", taskType),
			zap.String("message_id", d.MessageId),
			zap.Bool("permanent", port.IsPermanent(err)),
			zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	if err := d.Ack(false); err != nil {
		s.log.Warn("rabbitmq: ack failed", zap.String("message_id", d.MessageId), zap.Error(err))
	}
}

// Stop cancels the consumer and waits until Run has handled every delivery
// it already received, bounded by ctx.
func (s *RabbitServer) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		s.chmu.Lock()
		ch := s.ch
		s.chmu.Unlock()
		select {
		case <-s.started:
			err = ch.Cancel(s.tag, false)
			select {
			case <-s.drained:
			case <-ctx.Done():
				err = ctx.Err()
			}
		default:
		}
		if ch != nil {
			_ = ch.Close()
		}
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
	return err
}
