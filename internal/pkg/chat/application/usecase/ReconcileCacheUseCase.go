package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	chat "zenchatty/internal/pkg/chat/application/domain"
	"zenchatty/internal/pkg/chat/persistence/recency"
	repository "zenchatty/internal/pkg/chat/persistence/repository/port"
)

// DefaultReconcileInterval is how often the reconciler runs.
const DefaultReconcileInterval = time.Minute

// ReconcileCacheUseCase repairs recency cache buckets that drifted from the
// durable store.
type ReconcileCacheUseCase struct {
	Messages repository.MessageRepository
	Cache    *recency.Cache
	// Window is how many of the newest durable rows are compared. Zero uses
	// the cache capacity.
	Window int
	Log    *zap.Logger
	Now    func() time.Time
}

func NewReconcileCacheUseCase(messages repository.MessageRepository, cache *recency.Cache, window int, log *zap.Logger) *ReconcileCacheUseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReconcileCacheUseCase{Messages: messages, Cache: cache, Window: window, Log: log}
}

func (uc *ReconcileCacheUseCase) window() int {
	n := uc.Window
	if n <= 0 || n > uc.Cache.Capacity() {
		n = uc.Cache.Capacity()
	}
	return n
}

// Execute compares chatID's bucket with the newest durable rows and replaces
// the bucket when the trace id sets differ. It reports whether it replaced.
func (uc *ReconcileCacheUseCase) Execute(ctx context.Context, chatID string) (bool, error) {
	n := uc.window()
	latest, err := uc.Messages.ListLatestMessages(ctx, chatID, n)
	if err != nil {
		return false, persistence(err)
	}
	cached := uc.Cache.TraceIDs(chatID)
	if len(cached) > n {
		cached = cached[len(cached)-n:]
	}

	if sameTraceIDs(cached, latest) {
		return false, nil
	}
	uc.Cache.Replace(chatID, latest)
	uc.Log.Info("recency cache bucket replaced",
		zap.String("chat_id", chatID), zap.Int("cached", len(cached)), zap.Int("stored", len(latest)))
	return true, nil
}

func sameTraceIDs(cached []string, stored []chat.Message) bool {
	if len(cached) != len(stored) {
		return false
	}
	set := make(map[string]struct{}, len(cached))
	for _, id := range cached {
		set[id] = struct{}{}
	}
	for _, m := range stored {
		if _, ok := set[m.TraceID]; !ok {
			return false
		}
	}
	return true
}

// Run reconciles every chat written since the previous pass, then sweeps
// expired buckets, until ctx is done.
func (uc *ReconcileCacheUseCase) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	now := clockOr(uc.Now)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	since := now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			started := now()
			uc.Pass(ctx, since)
			since = started
		}
	}
}

// Pass reconciles chats active since the given time and returns how many
// buckets were replaced.
func (uc *ReconcileCacheUseCase) Pass(ctx context.Context, since time.Time) int {
	replaced := 0
	for _, chatID := range uc.Cache.ActiveSince(since) {
		if ctx.Err() != nil {
			break
		}
		ok, err := uc.Execute(ctx, chatID)
		if err != nil {
			uc.Log.Warn("reconcile chat failed", zap.String("chat_id", chatID), zap.Error(err))
			continue
		}
		if ok {
			replaced++
		}
	}
	if swept := uc.Cache.Sweep(); swept > 0 {
		uc.Log.Debug("recency cache swept", zap.Int("buckets", swept))
	}
	return replaced
}
