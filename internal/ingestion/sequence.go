package ingestion

import (
	"ArtistExchange/internal/observability"
	"errors"
	"fmt"
)

var (
	// ErrSequenceGap means commands from the source are missing; the
	// command should be redelivered once the gap fills.
	ErrSequenceGap = errors.New("sequence gap")
	// ErrOutOfOrder means a new command arrived behind the source's cursor.
	ErrOutOfOrder = errors.New("out-of-order command")
)

// SequenceValidator validates source sequences per producer.
// Not thread-safe: only accessed from the dispatcher goroutine.
type SequenceValidator struct {
	expectedNextSeq map[string]int64 // source -> next expected sequence
	metrics         *observability.Metrics
}

func NewSequenceValidator(metrics *observability.Metrics) *SequenceValidator {
	return &SequenceValidator{
		expectedNextSeq: make(map[string]int64),
		metrics:         metrics,
	}
}

// ValidateSequence checks source sequence ordering. The first command seen
// from a source sets its cursor.
func (sv *SequenceValidator) ValidateSequence(source string, sourceSequence int64, isDuplicate bool) error {
	expected, known := sv.expectedNextSeq[source]
	if !known {
		sv.expectedNextSeq[source] = sourceSequence + 1
		return nil
	}

	if sourceSequence < expected {
		// stale redelivery of a committed command
		if isDuplicate {
			return nil
		}
		sv.recordOutOfOrder(source)
		return fmt.Errorf("source=%s expected=%d got=%d: %w", source, expected, sourceSequence, ErrOutOfOrder)
	}

	if sourceSequence == expected {
		sv.expectedNextSeq[source] = expected + 1
		return nil
	}

	sv.recordOutOfOrder(source)
	return fmt.Errorf("source=%s expected=%d got=%d: %w", source, expected, sourceSequence, ErrSequenceGap)
}

// GetExpectedSequence returns next expected sequence for a source, 0 if
// the source has not been seen.
func (sv *SequenceValidator) GetExpectedSequence(source string) int64 {
	return sv.expectedNextSeq[source]
}

// SetExpectedSequence initializes expected sequence (used during recovery)
func (sv *SequenceValidator) SetExpectedSequence(source string, seq int64) {
	sv.expectedNextSeq[source] = seq
}

func (sv *SequenceValidator) recordOutOfOrder(source string) {
	if sv.metrics != nil {
		sv.metrics.CommandOutOfOrder.WithLabelValues(source).Inc()
	}
}
