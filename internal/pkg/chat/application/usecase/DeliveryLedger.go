package usecase

import (
	"context"
	"time"

	cport "zenchatty/internal/infrastructure/cache/port"
)

// DefaultLedgerTTL bounds how long a processed stage is remembered. It only
// needs to outlive broker redelivery.
const DefaultLedgerTTL = 24 * time.Hour

// DeliveryLedger records which side-effecting delivery stages already ran for
// a trace id, so a redelivered message does not repeat them.
type DeliveryLedger struct {
	Cache cport.Cache
	TTL   time.Duration
}

func NewDeliveryLedger(cache cport.Cache, ttl time.Duration) *DeliveryLedger {
	if ttl <= 0 {
		ttl = DefaultLedgerTTL
	}
	return &DeliveryLedger{Cache: cache, TTL: ttl}
}

func ledgerKey(traceID, stage string) string {
	return "chat:delivery:" + traceID + ":" + stage
}

// Claim marks stage as done for traceID and reports whether this caller is
// the first to do so.
func (l *DeliveryLedger) Claim(ctx context.Context, traceID, stage string) (bool, error) {
	return l.Cache.SetNX(ctx, ledgerKey(traceID, stage), time.Now().UTC().Format(time.RFC3339Nano), l.TTL)
}

// Release forgets stage for traceID.
func (l *DeliveryLedger) Release(ctx context.Context, traceID, stage string) error {
	_, err := l.Cache.Del(ctx, ledgerKey(traceID, stage))
	return err
}
