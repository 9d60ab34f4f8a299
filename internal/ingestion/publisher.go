package ingestion

import (
	"ArtistExchange/internal/core"
	"ArtistExchange/internal/observability"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// StreamPublisher is the publishing half of jetstream.JetStream.
type StreamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// OutboundPublisher publishes committed events and payout notifications to
// NATS for downstream consumers. Subjects:
//
//	exchange.events.{event_type}.{subject}   e.g. exchange.events.TokensPurchased.asset.1
//	exchange.payouts.{reason}
type OutboundPublisher struct {
	js        StreamPublisher
	inputChan <-chan core.CoreOutput
	payouts   chan core.Payout
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// PublishableEvent is the outbound wire form of a committed event.
type PublishableEvent struct {
	Sequence       int64           `json:"sequence"`
	EventType      string          `json:"event_type"`
	IdempotencyKey string          `json:"idempotency_key"`
	Subject        string          `json:"subject"`
	Payload        json.RawMessage `json:"payload"`
	StateHash      string          `json:"state_hash"`
	PrevHash       string          `json:"prev_hash"`
	Timestamp      time.Time       `json:"timestamp"`
}

// PublishablePayout is the outbound wire form of a payout.
type PublishablePayout struct {
	Sequence int64  `json:"sequence"`
	Account  string `json:"account"`
	Amount   string `json:"amount"` // base units
	Reason   string `json:"reason"`
}

func NewOutboundPublisher(js StreamPublisher, inputChan <-chan core.CoreOutput, metrics *observability.Metrics) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		payouts:   make(chan core.Payout, 1024),
		metrics:   metrics,
		logger:    observability.NewLogger("publisher"),
	}
}

// OnPayout queues a payout notification; it blocks only while the queue is
// full and gives up when ctx ends.
func (op *OutboundPublisher) OnPayout(ctx context.Context, p core.Payout) {
	select {
	case op.payouts <- p:
	case <-ctx.Done():
		op.logger.Error().Int64("sequence", p.Sequence).Str("account", p.Account.String()).
			Msg("payout notification abandoned")
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-op.inputChan:
			if !ok {
				return nil
			}
			if err := op.publishEvent(ctx, out); err != nil {
				// Non-fatal: downstream consumers can replay from the event log
				op.logger.Warn().Err(err).Int64("sequence", out.Envelope.Sequence).Msg("outbound publish failed")
				op.recordError("event")
			}

		case p := <-op.payouts:
			if err := op.publishPayout(ctx, p); err != nil {
				op.logger.Error().Err(err).Int64("sequence", p.Sequence).Msg("payout publish failed")
				op.recordError("payout")
			}
		}
	}
}

func (op *OutboundPublisher) publishEvent(ctx context.Context, out core.CoreOutput) error {
	env := out.Envelope
	evt := PublishableEvent{
		Sequence:       env.Sequence,
		EventType:      env.EventType.String(),
		IdempotencyKey: env.IdempotencyKey,
		Subject:        env.Subject,
		Payload:        env.Payload,
		StateHash:      hex.EncodeToString(env.StateHash[:]),
		PrevHash:       hex.EncodeToString(env.PrevHash[:]),
		Timestamp:      env.Timestamp,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("exchange.events.%s.%s", evt.EventType, env.Subject)
	// The sequence is the message id so a republish after restart is
	// dropped by the stream's duplicate window.
	if _, err := op.js.Publish(ctx, subject, data, jetstream.WithMsgID(strconv.FormatInt(env.Sequence, 10))); err != nil {
		return err
	}
	if op.metrics != nil {
		op.metrics.PublishedEvents.Inc()
	}
	return nil
}

func (op *OutboundPublisher) publishPayout(ctx context.Context, p core.Payout) error {
	data, err := json.Marshal(PublishablePayout{
		Sequence: p.Sequence,
		Account:  p.Account.String(),
		Amount:   p.Amount.Dec(),
		Reason:   string(p.Reason),
	})
	if err != nil {
		return fmt.Errorf("marshal payout: %w", err)
	}

	subject := "exchange.payouts." + string(p.Reason)
	msgID := fmt.Sprintf("%d:%s", p.Sequence, p.Account)
	if _, err := op.js.Publish(ctx, subject, data, jetstream.WithMsgID(msgID)); err != nil {
		return err
	}
	if op.metrics != nil {
		op.metrics.PayoutsPublished.WithLabelValues(string(p.Reason)).Inc()
	}
	return nil
}

func (op *OutboundPublisher) recordError(kind string) {
	if op.metrics != nil {
		op.metrics.PublishErrors.WithLabelValues(kind).Inc()
	}
}
