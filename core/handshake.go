package core

import (
	"context"
	"encoding/json"

	"pkt.systems/langpad/schema"
)

// SpawnRequest describes a worker to start.
type SpawnRequest struct {
	Session schema.SessionID
	Kind    schema.SessionKind
	// Grammar is the definition a sample worker compiles. Definition workers ignore it.
	Grammar string
}

// WorkerSpawner starts background workers and performs the start handshake.
//
// Spawn resolves when the worker reports ready and rejects when it reports failure, when its
// connection closes or when ctx is done. A rejected worker has already been terminated.
type WorkerSpawner interface {
	Spawn(ctx context.Context, req SpawnRequest) (Worker, error)
}

// Worker is a started background worker.
type Worker interface {
	Session() schema.SessionID
	Notify(ctx context.Context, method string, params any) error
	Call(ctx context.Context, method string, params, result any) error
	// Subscribe registers fn for notifications with the given method and returns a cancel func.
	Subscribe(method string, fn func(params json.RawMessage)) func()
	// Terminate closes the worker. It is idempotent.
	Terminate() error
	// Done is closed once the worker connection has ended.
	Done() <-chan struct{}
}
