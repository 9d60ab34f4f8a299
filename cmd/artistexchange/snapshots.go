package main

import (
	"ArtistExchange/internal/core"
	"ArtistExchange/internal/observability"
	"ArtistExchange/internal/persistence"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	snapshotCheckPeriod = 10 * time.Second
	durablePollPeriod   = 50 * time.Millisecond
	durableWaitTimeout  = 30 * time.Second
)

// snapshotter saves engine state every interval events. A snapshot is only
// marked verified once the event log holds every event it covers, so a
// restart never resumes from a point the log cannot continue.
type snapshotter struct {
	x        *core.Exchange
	sm       *persistence.SnapshotManager
	interval int64
	metrics  *observability.Metrics
	logger   zerolog.Logger

	lastSeq int64
	poll    time.Duration
	wait    time.Duration
}

func newSnapshotter(x *core.Exchange, sm *persistence.SnapshotManager, interval int64, metrics *observability.Metrics) *snapshotter {
	return &snapshotter{
		x:        x,
		sm:       sm,
		interval: interval,
		metrics:  metrics,
		logger:   observability.NewLogger("snapshot"),
		lastSeq:  x.Sequence() - 1,
		poll:     durablePollPeriod,
		wait:     durableWaitTimeout,
	}
}

// Run checks every snapshotCheckPeriod and snapshots once interval events
// have committed since the last one.
func (s *snapshotter) Run(ctx context.Context) error {
	ticker := time.NewTicker(snapshotCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.x.Sequence()-1-s.lastSeq < s.interval {
				continue
			}
			if err := s.Take(ctx); err != nil {
				s.logger.Error().Err(err).Msg("periodic snapshot failed")
			}
		}
	}
}

// Take saves the current state and marks it verified once persisted events
// reach its sequence. Nothing is written when no event committed since the
// previous snapshot.
func (s *snapshotter) Take(ctx context.Context) error {
	start := time.Now()
	snap := s.x.CreateSnapshotState()
	if snap.Sequence <= s.lastSeq {
		return nil
	}

	size, err := s.sm.SaveSnapshot(ctx, snap)
	if err != nil {
		return fmt.Errorf("save snapshot seq=%d: %w", snap.Sequence, err)
	}
	if err := s.awaitDurable(ctx, snap.Sequence); err != nil {
		return err
	}
	if err := s.sm.MarkVerified(ctx, snap.Sequence); err != nil {
		return fmt.Errorf("verify snapshot seq=%d: %w", snap.Sequence, err)
	}
	s.lastSeq = snap.Sequence

	if s.metrics != nil {
		s.metrics.SnapshotTaken.Inc()
		s.metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
		s.metrics.SnapshotSizeBytes.Set(float64(size))
		s.metrics.SnapshotLastSeq.Set(float64(snap.Sequence))
	}

	s.logger.Info().Int64("sequence", snap.Sequence).Int("size_bytes", size).
		Dur("duration", time.Since(start)).Msg("snapshot taken")
	return nil
}

func (s *snapshotter) awaitDurable(ctx context.Context, seq int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.wait)
	defer cancel()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		latest, err := s.sm.GetLatestSequence(ctx)
		if err != nil {
			return fmt.Errorf("read log position: %w", err)
		}
		if latest >= seq {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("event log at seq %d, snapshot at %d: %w", latest, seq, ctx.Err())
		case <-ticker.C:
		}
	}
}
