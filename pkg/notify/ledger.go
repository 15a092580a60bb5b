package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Ledger is an optional idempotency guard against duplicate sends. The
// dispatch pipeline is at-least-once by default; a configured ledger closes
// the worker-crash-after-send window by recording each delivery ID before
// transmission.
type Ledger interface {
	// AcquireSend returns true if this call won the right to transmit the
	// delivery, false if it was already transmitted.
	AcquireSend(ctx context.Context, deliveryID uuid.UUID) (bool, error)
}

const defaultLedgerTTL = 72 * time.Hour

// RedisLedger implements Ledger via SETNX with a TTL. Entries expire after
// the retry window has long passed; the delivery row remains the durable
// audit record.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisLedgerOption configures a RedisLedger.
type RedisLedgerOption func(*RedisLedger)

// WithLedgerTTL overrides how long sent markers are kept.
func WithLedgerTTL(ttl time.Duration) RedisLedgerOption {
	return func(l *RedisLedger) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithLedgerPrefix overrides the key prefix.
func WithLedgerPrefix(prefix string) RedisLedgerOption {
	return func(l *RedisLedger) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// NewRedisLedger creates a sent ledger on the given redis client.
func NewRedisLedger(client *redis.Client, opts ...RedisLedgerOption) *RedisLedger {
	l := &RedisLedger{
		client: client,
		ttl:    defaultLedgerTTL,
		prefix: "notify:sent:",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLedger) AcquireSend(ctx context.Context, deliveryID uuid.UUID) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+deliveryID.String(), time.Now().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check sent ledger: %w", err)
	}
	return ok, nil
}

// MemoryLedger implements Ledger in memory for tests and single-process use.
type MemoryLedger struct {
	mu   sync.Mutex
	sent map[uuid.UUID]struct{}
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{sent: make(map[uuid.UUID]struct{})}
}

func (l *MemoryLedger) AcquireSend(ctx context.Context, deliveryID uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.sent[deliveryID]; ok {
		return false, nil
	}
	l.sent[deliveryID] = struct{}{}
	return true, nil
}
