package adapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"zenchatty/internal/infrastructure/queue/port"
)

// ===================== Client =====================

// AsynqClient implements port.Client using github.com/hibiken/asynq
// and Redis as the backing store.
type AsynqClient struct {
	client *asynq.Client
}

// NewAsynqClient constructs a client on the redis instance at redisURL.
func NewAsynqClient(redisURL string) (*AsynqClient, error) {
	if redisURL == "" {
		return nil, errors.New("asynq: REDIS_URL is not set")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse REDIS_URL: %w", err)
	}
	c := asynq.NewClient(opt)
	return &AsynqClient{client: c}, nil
}

// Ensure interface is satisfied
var _ port.Client = (*AsynqClient)(nil)

func (a *AsynqClient) Enqueue(ctx context.Context, t port.Task, opts ...port.EnqueueOption) (string, error) {
	if t.Type == "" {
		return "", errors.New("asynq: task type is required")
	}
	var op port.EnqueueOption
	if len(opts) > 0 {
		op = opts[0]
	}
	info, err := a.client.EnqueueContext(ctx, asynq.NewTask(t.Type, t.Payload), asynqOptions(op)...)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict):
		// the earlier copy with this id will deliver it
		return op.TaskID, nil
	case err != nil:
		return "", fmt.Errorf("asynq: enqueue %s: %w", t.Type, err)
	}
	return info.ID, nil
}

// asynqOptions maps the fields of op that asynq supports.
func asynqOptions(op port.EnqueueOption) []asynq.Option {
	var out []asynq.Option
	switch {
	case !op.ProcessAt.IsZero():
		out = append(out, asynq.ProcessAt(op.ProcessAt))
	case op.ProcessIn > 0:
		out = append(out, asynq.ProcessIn(op.ProcessIn))
	}
	if op.Queue != "" {
		out = append(out, asynq.Queue(op.Queue))
	}
	if op.MaxRetry > 0 {
		out = append(out, asynq.MaxRetry(op.MaxRetry))
	}
	if op.UniqueTTL > 0 {
		out = append(out, asynq.Unique(op.UniqueTTL))
	}
	if op.Retention > 0 {
		out = append(out, asynq.Retention(op.Retention))
	}
	if !op.Deadline.IsZero() {
		out = append(out, asynq.Deadline(op.Deadline))
	}
	if op.TaskID != "" {
		out = append(out, asynq.TaskID(op.TaskID))
	}
	return out
}

func (a *AsynqClient) Close() error {
	return a.client.Close()
}

// ===================== Server =====================

// AsynqServer implements port.Server using github.com/hibiken/asynq
type AsynqServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// AsynqServerOptions configures NewAsynqServer.
//   - Concurrency: worker goroutines (default 10)
//   - Queues: CSV like "critical=6,default=3,low=1" (default "default=1,chat=1")
type AsynqServerOptions struct {
	RedisURL    string
	Concurrency int
	Queues      string
	Logger      *zap.Logger
}

// NewAsynqServer constructs a server consuming from the redis instance at RedisURL.
func NewAsynqServer(o AsynqServerOptions) (*AsynqServer, error) {
	if o.RedisURL == "" {
		return nil, errors.New("asynq: REDIS_URL is not set")
	}
	opt, err := asynq.ParseRedisURI(o.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse REDIS_URL: %w", err)
	}
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}

	concurrency := 10
	if o.Concurrency > 0 {
		concurrency = o.Concurrency
	}

	// Default to consuming both "default" and "chat" queues so tasks are picked up when running API directly
	queues := map[string]int{"default": 1, "chat": 1}
	if v := strings.TrimSpace(o.Queues); v != "" {
		parsed := parseQueueWeights(v)
		if len(parsed) > 0 {
			queues = parsed
		}
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error("asynq task failed",
				zap.String("type", task.Type()),
				zap.Bool("permanent", port.IsPermanent(err)),
				zap.Error(err))
		}),
		Logger: log.Sugar(),
	})
	return &AsynqServer{server: srv, mux: asynq.NewServeMux()}, nil
}

// Ensure interface is satisfied
var _ port.Server = (*AsynqServer)(nil)

func (s *AsynqServer) Register(taskType string, h port.Handler) {
	s.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		pt := port.Task{Type: t.Type(), Payload: t.Payload()}
		err := h(ctx, pt)
		if port.IsPermanent(err) {
			// archive instead of retrying
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return err
	})
}

// Run starts the server and blocks until the context is canceled, then gracefully shuts down.
func (s *AsynqServer) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	// Wait for cancellation
	<-ctx.Done()
	// Shutdown waits for in-flight handlers (bounded by asynq's ShutdownTimeout)
	s.server.Shutdown()
	return nil
}

// Stop gracefully shuts down the server.
func (s *AsynqServer) Stop(ctx context.Context) error {
	_ = ctx // context not used by current Shutdown signature
	s.server.Shutdown()
	return nil
}

// parseQueueWeights parses strings like "critical=6,default=3,low=1" into a map.
func parseQueueWeights(s string) map[string]int {
	res := make(map[string]int)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		name := strings.TrimSpace(kv[0])
		if name == "" {
			continue
		}
		w := 1
		if len(kv) == 2 {
			if i, err := strconv.Atoi(strings.TrimSpace(kv[1])); err == nil && i > 0 {
				w = i
			}
		}
		res[name] = w
	}
	return res
}
