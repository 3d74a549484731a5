package logx

import (
	"context"

	"pkt.systems/langpad/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	playgroundKey contextKey = iota
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithPlayground annotates the context logger with the playground id if present.
func WithPlayground(ctx context.Context, id schema.PlaygroundID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if id != "" {
		if current, ok := ctx.Value(playgroundKey).(schema.PlaygroundID); ok && current == id {
			return log
		}
		log = log.With("playground", id)
	}
	return log
}

// WithSession annotates the logger with a session id when available.
func WithSession(log pslog.Logger, sessionID schema.SessionID) pslog.Logger {
	if sessionID != "" {
		log = log.With("session", sessionID)
	}
	return log
}

// ContextWithPlayground stores the playground marker on the context for log de-duplication.
func ContextWithPlayground(ctx context.Context, id schema.PlaygroundID) context.Context {
	if ctx == nil || id == "" {
		return ctx
	}
	return context.WithValue(ctx, playgroundKey, id)
}

// ContextWithPlaygroundLogger attaches the logger and playground marker to the context.
func ContextWithPlaygroundLogger(ctx context.Context, log pslog.Logger, id schema.PlaygroundID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithPlayground(ctx, id)
}
