package core

import (
	"ArtistExchange/internal/observability"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// DBIdempotencyChecker is the interface for the Postgres dedup lookup
type DBIdempotencyChecker interface {
	IsDuplicate(eventType string, idempotencyKey string) (bool, error)
}

// IdempotencyChecker implements two-tier deduplication: an in-memory LRU of
// recently committed keys in front of the persisted event log.
type IdempotencyChecker struct {
	mu        sync.Mutex
	lru       *lru.Cache[string, struct{}]
	dbChecker DBIdempotencyChecker
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

func NewIdempotencyChecker(capacity int, dbChecker DBIdempotencyChecker, metrics *observability.Metrics) (*IdempotencyChecker, error) {
	cache, err := lru.New[string, struct{}](capacity)
	if err != nil {
		return nil, fmt.Errorf("idempotency lru: %w", err)
	}
	return &IdempotencyChecker{
		lru:       cache,
		dbChecker: dbChecker,
		metrics:   metrics,
		logger:    observability.NewLogger("idempotency"),
	}, nil
}

func compositeKey(eventType, idempotencyKey string) string {
	return eventType + ":" + idempotencyKey
}

// IsDuplicate checks if a command has already been committed.
func (ic *IdempotencyChecker) IsDuplicate(eventType string, idempotencyKey string) bool {
	key := compositeKey(eventType, idempotencyKey)

	ic.mu.Lock()
	defer ic.mu.Unlock()

	if ic.lru.Contains(key) {
		ic.recordDuplicate(eventType, "lru")
		return true
	}

	if ic.dbChecker == nil {
		return false
	}

	start := time.Now()
	isDup, err := ic.dbChecker.IsDuplicate(eventType, idempotencyKey)
	if ic.metrics != nil {
		ic.metrics.DedupTier2Duration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		// A DB outage must not block trading; the LRU still covers recent keys.
		ic.logger.Warn().Err(err).Str("event_type", eventType).Msg("tier-2 dedup lookup failed")
		return false
	}

	if isDup {
		ic.recordDuplicate(eventType, "postgres")
		ic.lru.Add(key, struct{}{})
		return true
	}

	return false
}

// MarkProcessed records a committed command.
func (ic *IdempotencyChecker) MarkProcessed(eventType string, idempotencyKey string) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	ic.lru.Add(compositeKey(eventType, idempotencyKey), struct{}{})
	if ic.metrics != nil {
		ic.metrics.DedupLRUSize.Set(float64(ic.lru.Len()))
	}
}

// Warm loads composite keys (as returned by Keys) into the LRU, oldest first.
func (ic *IdempotencyChecker) Warm(keys []string) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	for _, k := range keys {
		ic.lru.Add(k, struct{}{})
	}
}

// Keys returns the cached composite keys, oldest first.
func (ic *IdempotencyChecker) Keys() []string {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.lru.Keys()
}

func (ic *IdempotencyChecker) recordDuplicate(eventType, tier string) {
	if ic.metrics != nil {
		ic.metrics.IdempotencyDuplicates.WithLabelValues(eventType, tier).Inc()
	}
}
