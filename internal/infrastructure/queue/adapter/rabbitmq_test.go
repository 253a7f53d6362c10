package adapter

import (
	"context"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"zenchatty/internal/infrastructure/queue/port"
)

// ackLog records how deliveries were settled.
type ackLog struct {
	mu       sync.Mutex
	acked    []uint64
	nacked   []uint64
	requeues []bool
}

func (a *ackLog) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackLog) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	a.requeues = append(a.requeues, requeue)
	return nil
}

func (a *ackLog) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func unstartedRabbitServer() *RabbitServer {
	return &RabbitServer{
		queue:    "chat",
		prefetch: 1,
		log:      zap.NewNop(),
		handlers: make(map[string]port.Handler),
		tag:      "consumer-test",
		started:  make(chan struct{}),
		drained:  make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func delivery(acks *ackLog, tag uint64, taskType, body string) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: acks,
		DeliveryTag:  tag,
		MessageId:    "m",
		Headers:      amqp.Table{taskTypeHeader: taskType},
		Body:         []byte(body),
	}
}

func TestRabbitServerSettlesDeliveries(t *testing.T) {
	s := unstartedRabbitServer()
	acks := &ackLog{}
	var bodies []string
	s.Register("work", func(_ context.Context, task port.Task) error {
		bodies = append(bodies, string(task.Payload))
		switch string(task.Payload) {
		case "transient":
			return errors.New("db down")
		case "poison":
			return port.Permanent(errors.New("bad json"))
		}
		return nil
	})

	ctx := context.Background()
	s.handle(ctx, delivery(acks, 1, "work", "ok"))
	s.handle(ctx, delivery(acks, 2, "work", "transient"))
	s.handle(ctx, delivery(acks, 3, "work", "poison"))
	s.handle(ctx, delivery(acks, 4, "unknown", "x"))

	assert.Equal(t, []string{"ok", "transient", "poison"}, bodies)
	assert.Equal(t, []uint64{1}, acks.acked)
	assert.Equal(t, []uint64{2, 3, 4}, acks.nacked)
	assert.Equal(t, []bool{false, false, false}, acks.requeues, "failed deliveries are never requeued")
}

func TestRabbitServerHandlerOutlivesCanceledContext(t *testing.T) {
	s := unstartedRabbitServer()
	acks := &ackLog{}
	s.Register("work", func(ctx context.Context, _ port.Task) error {
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.handle(ctx, delivery(acks, 7, "work", ""))
	assert.Equal(t, []uint64{7}, acks.acked)
}

func TestRabbitServerStopBeforeRun(t *testing.T) {
	s := unstartedRabbitServer()
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}
