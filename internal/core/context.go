package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

const (
	callerKey ctxKey = iota
	idempotencyKeyKey
	timestampKey
	replayKey
)

// WithCaller attaches the authenticated account making the call.
func WithCaller(ctx context.Context, caller uuid.UUID) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFrom returns the account attached by WithCaller.
func CallerFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(callerKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// WithIdempotencyKey attaches a dedup key; a second commit under the same
// key and operation is rejected.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyKey, key)
}

func idempotencyKeyFrom(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKeyKey).(string)
	return key, ok && key != ""
}

// WithTimestamp pins the operation's timestamp, e.g. to the time an inbound
// command was produced. Without it the exchange clock is used.
func WithTimestamp(ctx context.Context, ts time.Time) context.Context {
	return context.WithValue(ctx, timestampKey, ts)
}

func timestampFrom(ctx context.Context) (time.Time, bool) {
	ts, ok := ctx.Value(timestampKey).(time.Time)
	return ts, ok
}

// WithReplay marks ctx as re-executing an operation from the event log:
// the dedup check is skipped and nothing is emitted or paid out.
func WithReplay(ctx context.Context) context.Context {
	return context.WithValue(ctx, replayKey, true)
}

func replayingFrom(ctx context.Context) bool {
	replay, _ := ctx.Value(replayKey).(bool)
	return replay
}
