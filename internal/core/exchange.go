package core

import (
	"ArtistExchange/internal/amm"
	"ArtistExchange/internal/bonding"
	"ArtistExchange/internal/errs"
	"ArtistExchange/internal/event"
	"ArtistExchange/internal/ledger"
	"ArtistExchange/internal/observability"
	"ArtistExchange/internal/registry"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Exchange is the single entry point to the registry, the liquidity pools
// and the share markets. Every mutating call runs as one serialized
// transaction against the shared ledger: it either commits completely or
// changes nothing. Reads share a lock and see only committed state.
type Exchange struct {
	mu sync.RWMutex

	sequence  int64
	chain     *hashChain
	ledger    *ledger.Ledger
	validator *ledger.InvariantValidator
	registry  *registry.Registry
	pools     *amm.Engine
	market    *bonding.Market
	engines   map[EngineKind]PricingEngine

	owner               uuid.UUID
	openListing         bool
	globalCheckInterval int64

	idempotency *IdempotencyChecker
	metrics     *observability.Metrics
	logger      zerolog.Logger
	clock       func() time.Time

	persistChan chan<- CoreOutput
	publishChan chan<- CoreOutput
	payouts     PayoutSink
}

// CoreOutput is one committed operation, handed to persistence and publishing.
type CoreOutput struct {
	Envelope   *event.EventEnvelope
	Batch      *ledger.Batch
	StateDelta []byte
}

// Config wires an Exchange. Zero values are usable: no channels, no
// dedup, wall clock, invariant sweep every 1000 operations.
type Config struct {
	// Owner may create artists, deposit native currency and, unless
	// OpenListing is set, create tokens.
	Owner       uuid.UUID
	OpenListing bool

	// StartSequence is the first sequence assigned; defaults to 1.
	StartSequence int64

	// GlobalCheckInterval is how often (in operations) the full supply
	// reconciliation runs.
	GlobalCheckInterval int64

	// PersistChan receives every output with a blocking send; PublishChan
	// receives them best-effort.
	PersistChan chan<- CoreOutput
	PublishChan chan<- CoreOutput

	Idempotency *IdempotencyChecker
	Payouts     PayoutSink
	Metrics     *observability.Metrics
	Logger      *zerolog.Logger
	Clock       func() time.Time
}

func NewExchange(cfg Config) *Exchange {
	l := ledger.New()
	pools := amm.NewEngine(ledger.ExchangeAccount)
	market := bonding.NewMarket(ledger.BondingAccount)

	x := &Exchange{
		sequence:            cfg.StartSequence,
		chain:               newHashChain(),
		ledger:              l,
		validator:           ledger.NewInvariantValidator(l),
		registry:            registry.New(),
		pools:               pools,
		market:              market,
		owner:               cfg.Owner,
		openListing:         cfg.OpenListing,
		globalCheckInterval: cfg.GlobalCheckInterval,
		idempotency:         cfg.Idempotency,
		metrics:             cfg.Metrics,
		clock:               cfg.Clock,
		persistChan:         cfg.PersistChan,
		publishChan:         cfg.PublishChan,
		payouts:             cfg.Payouts,
	}
	x.engines = map[EngineKind]PricingEngine{
		EngineConstantProduct: poolPricing{pools},
		EngineBondingCurve:    curvePricing{market},
	}

	if x.sequence <= 0 {
		x.sequence = 1
	}
	if x.globalCheckInterval <= 0 {
		x.globalCheckInterval = 1000
	}
	if x.clock == nil {
		x.clock = time.Now
	}
	if cfg.Logger != nil {
		x.logger = *cfg.Logger
	} else {
		x.logger = observability.NewLogger("core")
	}

	return x
}

// op is the staged body of one mutating call.
type op func(tx *ledger.Tx, caller uuid.UUID) (*outcome, error)

type outcome struct {
	evt     event.Event
	payouts []Payout
}

// execute runs body as one serialized transaction:
// dedup → stage → commit → post-check → hash → emit → payouts.
func (x *Exchange) execute(ctx context.Context, et event.EventType, body op) error {
	start := time.Now()
	eventType := et.String()

	caller, ok := CallerFrom(ctx)
	if !ok {
		x.reject(eventType, errs.ErrUnauthorized)
		return fmt.Errorf("%s: no caller identity: %w", eventType, errs.ErrUnauthorized)
	}
	if ledger.IsSystemAccount(caller) {
		x.reject(eventType, errs.ErrUnauthorized)
		return fmt.Errorf("%s: system account %s cannot call: %w", eventType, caller, errs.ErrUnauthorized)
	}

	key, hasKey := idempotencyKeyFrom(ctx)
	replay := replayingFrom(ctx)
	ts, ok := timestampFrom(ctx)
	if !ok {
		ts = x.clock()
	}

	x.mu.Lock()

	if hasKey && !replay && x.idempotency != nil && x.idempotency.IsDuplicate(eventType, key) {
		x.mu.Unlock()
		x.reject(eventType, errs.ErrDuplicateRequest)
		return fmt.Errorf("%s key=%s: %w", eventType, key, errs.ErrDuplicateRequest)
	}
	if !hasKey {
		key = fmt.Sprintf("%s:%d", eventType, x.sequence)
	}

	tx := x.ledger.Begin(key, x.sequence, ts.UnixMicro())
	out, err := body(tx, caller)
	if err != nil {
		tx.Discard()
		x.mu.Unlock()
		x.reject(eventType, err)
		x.logger.Info().Err(err).Str("event_type", eventType).Str("caller", caller.String()).
			Str("kind", errs.KindOf(err).String()).Msg("operation rejected")
		return err
	}

	batch, err := tx.Commit()
	if err != nil {
		panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
	}

	if err := x.postCheckInvariants(batch); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	output := x.seal(batch, key, ts, out.evt)
	x.sequence++

	if hasKey && x.idempotency != nil {
		x.idempotency.MarkProcessed(eventType, key)
	}

	if !replay {
		x.emit(output)
	}
	x.observe(eventType, batch, out.evt, start)

	x.mu.Unlock()

	x.logger.Debug().Int64("sequence", output.Envelope.Sequence).Str("event_type", eventType).
		Str("caller", caller.String()).Int("journals", len(batch.Journals)).Msg("operation committed")

	// Outbound value transfers are announced only after the commit is
	// visible and the writer lock is released.
	if x.payouts != nil && !replay {
		for _, p := range out.payouts {
			p.Sequence = output.Envelope.Sequence
			x.payouts.OnPayout(ctx, p)
		}
	}

	return nil
}

// seal builds the envelope and advances the state hash chain.
func (x *Exchange) seal(batch *ledger.Batch, key string, ts time.Time, evt event.Event) CoreOutput {
	digest := x.computeStateDigest(batch)
	prev := x.chain.Tip()
	hash := x.chain.link(x.sequence, digest)

	envelope, err := event.NewEnvelope(x.sequence, key, ts, evt)
	if err != nil {
		panic(fmt.Sprintf("FATAL: encode %s: %v", evt.EventType(), err))
	}
	envelope.StateHash = hash
	envelope.PrevHash = prev

	return CoreOutput{Envelope: envelope, Batch: batch, StateDelta: digest}
}

// emit hands output to persistence (blocking, so nothing is lost) and to
// publishing (dropped when full; subscribers can replay from Postgres).
func (x *Exchange) emit(output CoreOutput) {
	if x.persistChan != nil {
		select {
		case x.persistChan <- output:
		default:
			if x.metrics != nil {
				x.metrics.PersistBackpressure.Inc()
			}
			x.persistChan <- output
		}
	}

	if x.publishChan != nil {
		select {
		case x.publishChan <- output:
		default:
			if x.metrics != nil {
				x.metrics.PublishDrops.Inc()
			}
		}
	}
}

func (x *Exchange) reject(eventType string, err error) {
	if x.metrics != nil {
		x.metrics.CoreOpsRejected.WithLabelValues(eventType, errs.KindOf(err).String()).Inc()
	}
}

func (x *Exchange) requireOwner(caller uuid.UUID, what string) error {
	if caller != x.owner {
		return fmt.Errorf("%s: caller %s is not the registry owner: %w", what, caller, errs.ErrUnauthorized)
	}
	return nil
}

// Sequence returns the next sequence to be assigned.
func (x *Exchange) Sequence() int64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.sequence
}

// StateHash returns the current state hash (chain tip).
func (x *Exchange) StateHash() [32]byte {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.chain.Tip()
}

// Owner returns the registry owner account.
func (x *Exchange) Owner() uuid.UUID {
	return x.owner
}
