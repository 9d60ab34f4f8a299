package ingestion

import (
	"ArtistExchange/internal/core"
	"ArtistExchange/internal/errs"
	"ArtistExchange/internal/observability"
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Outcome is how the dispatcher settled one inbound command.
type Outcome string

const (
	OutcomeApplied    Outcome = "applied"
	OutcomeRejected   Outcome = "rejected"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeMalformed  Outcome = "malformed"
	OutcomeOutOfOrder Outcome = "out_of_order"
	OutcomeRetry      Outcome = "retry"
)

// Deduper reports whether a command id was already committed.
// *core.IdempotencyChecker implements it.
type Deduper interface {
	IsDuplicate(eventType string, idempotencyKey string) bool
}

// Dispatcher drains the subscriber channel and applies each command to the
// exchange under the command's caller, id and timestamp.
type Dispatcher struct {
	exchange  Executor
	dedup     Deduper
	sequences *SequenceValidator
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

func NewDispatcher(x Executor, dedup Deduper, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		exchange:  x,
		dedup:     dedup,
		sequences: NewSequenceValidator(metrics),
		metrics:   metrics,
		logger:    observability.NewLogger("ingestion"),
	}
}

// Sequences exposes the per-source cursors for recovery.
func (d *Dispatcher) Sequences() *SequenceValidator {
	return d.sequences
}

// Run processes commands until ctx is cancelled or in is closed.
func (d *Dispatcher) Run(ctx context.Context, in <-chan RawCommand) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-in:
			if !ok {
				return nil
			}
			d.Handle(ctx, raw)
		}
	}
}

// Handle applies one command and acknowledges it. Only sequence gaps and
// cancellation are redelivered; every other outcome is final.
func (d *Dispatcher) Handle(ctx context.Context, raw RawCommand) Outcome {
	cmd, err := ParseRawCommand(raw, raw.Command)
	if err != nil {
		d.logger.Warn().Err(err).Str("subject", raw.Subject).Str("command", raw.Command).Msg("malformed command dropped")
		return d.settle(raw, raw.Command, OutcomeMalformed)
	}

	eventType := cmd.Op.EventType().String()

	if cmd.SourceSequence > 0 {
		dup := d.dedup != nil && d.dedup.IsDuplicate(eventType, cmd.CommandID)
		if err := d.sequences.ValidateSequence(cmd.Source, cmd.SourceSequence, dup); err != nil {
			if errors.Is(err, ErrSequenceGap) {
				d.logger.Warn().Err(err).Str("command_id", cmd.CommandID).Msg("sequence gap, awaiting redelivery")
				return d.settle(raw, cmd.Name, OutcomeRetry)
			}
			d.logger.Warn().Err(err).Str("command_id", cmd.CommandID).Msg("out-of-order command dropped")
			return d.settle(raw, cmd.Name, OutcomeOutOfOrder)
		}
	}

	opCtx := core.WithCaller(ctx, cmd.Caller)
	opCtx = core.WithIdempotencyKey(opCtx, cmd.CommandID)
	opCtx = core.WithTimestamp(opCtx, cmd.Timestamp)

	err = cmd.Op.Apply(opCtx, d.exchange)
	switch {
	case err == nil:
		return d.settle(raw, cmd.Name, OutcomeApplied)
	case errors.Is(err, errs.ErrDuplicateRequest):
		return d.settle(raw, cmd.Name, OutcomeDuplicate)
	case ctx.Err() != nil:
		if cmd.SourceSequence > 0 {
			d.sequences.SetExpectedSequence(cmd.Source, cmd.SourceSequence)
		}
		return d.settle(raw, cmd.Name, OutcomeRetry)
	default:
		d.logger.Info().Err(err).Str("command", cmd.Name).Str("command_id", cmd.CommandID).
			Str("kind", errs.KindOf(err).String()).Msg("command rejected")
		return d.settle(raw, cmd.Name, OutcomeRejected)
	}
}

func (d *Dispatcher) settle(raw RawCommand, command string, outcome Outcome) Outcome {
	if outcome == OutcomeRetry {
		if raw.NakFunc != nil {
			raw.NakFunc()
		}
	} else if raw.AckFunc != nil {
		raw.AckFunc()
	}

	if d.metrics != nil {
		d.metrics.IngestCommands.WithLabelValues(command, string(outcome)).Inc()
	}
	return outcome
}
