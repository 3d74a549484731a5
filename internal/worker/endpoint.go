package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.lsp.dev/jsonrpc2"

	"pkt.systems/langpad/schema"
	"pkt.systems/pslog"
)

// Endpoint is the client side of a worker pipe.
type Endpoint struct {
	session schema.SessionID
	conn    jsonrpc2.Conn
	server  *server
	log     pslog.Logger

	mu     sync.Mutex
	subs   map[string]map[int]func(json.RawMessage)
	nextID int

	terminateOnce sync.Once
	terminateErr  error
}

func newEndpoint(session schema.SessionID, rwc io.ReadWriteCloser, srv *server, logger pslog.Logger) *Endpoint {
	return &Endpoint{
		session: session,
		conn:    jsonrpc2.NewConn(jsonrpc2.NewStream(rwc)),
		server:  srv,
		log:     logger,
		subs:    make(map[string]map[int]func(json.RawMessage)),
	}
}

func (e *Endpoint) run(ctx context.Context) {
	e.conn.Go(ctx, e.handle)
}

// handle runs on the connection's read loop and must not write to the connection.
func (e *Endpoint) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	e.mu.Lock()
	subs := make([]func(json.RawMessage), 0, len(e.subs[req.Method()]))
	for _, fn := range e.subs[req.Method()] {
		subs = append(subs, fn)
	}
	e.mu.Unlock()
	if len(subs) == 0 {
		e.log.Trace("worker notification unhandled", "method", req.Method())
	}
	params := req.Params()
	for _, fn := range subs {
		fn(params)
	}
	if _, isCall := req.(*jsonrpc2.Call); isCall {
		return reply(ctx, nil, fmt.Errorf("%w: %s", jsonrpc2.ErrMethodNotFound, req.Method()))
	}
	return reply(ctx, nil, nil)
}

// Session returns the session the worker serves.
func (e *Endpoint) Session() schema.SessionID { return e.session }

// Notify sends a notification to the worker.
func (e *Endpoint) Notify(ctx context.Context, method string, params any) error {
	if e.closed() {
		return schema.ErrWorkerClosed
	}
	if err := e.conn.Notify(ctx, method, params); err != nil {
		return e.wrap(err)
	}
	return nil
}

// Call sends a request and decodes the response into result.
func (e *Endpoint) Call(ctx context.Context, method string, params, result any) error {
	if e.closed() {
		return schema.ErrWorkerClosed
	}
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-e.conn.Done():
			cancel()
		case <-callCtx.Done():
		}
	}()
	if _, err := e.conn.Call(callCtx, method, params, result); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return e.wrap(err)
	}
	return nil
}

// Subscribe registers fn for notifications with the given method.
func (e *Endpoint) Subscribe(method string, fn func(params json.RawMessage)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	subs := e.subs[method]
	if subs == nil {
		subs = make(map[int]func(json.RawMessage))
		e.subs[method] = subs
	}
	subs[id] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		if subs := e.subs[method]; subs != nil {
			delete(subs, id)
			if len(subs) == 0 {
				delete(e.subs, method)
			}
		}
		e.mu.Unlock()
	}
}

// Terminate closes both ends of the pipe. It is idempotent.
func (e *Endpoint) Terminate() error {
	e.terminateOnce.Do(func() {
		var errs []error
		if err := e.conn.Close(); err != nil && !isClosedErr(err) {
			errs = append(errs, err)
		}
		if e.server != nil {
			if err := e.server.close(); err != nil && !isClosedErr(err) {
				errs = append(errs, err)
			}
		}
		e.terminateErr = errors.Join(errs...)
		e.log.Debug("worker terminated")
	})
	return e.terminateErr
}

// Done is closed once the client side of the connection has ended.
func (e *Endpoint) Done() <-chan struct{} {
	return e.conn.Done()
}

func (e *Endpoint) closed() bool {
	select {
	case <-e.conn.Done():
		return true
	default:
		return false
	}
}

func (e *Endpoint) wrap(err error) error {
	if e.closed() || isClosedErr(err) {
		return fmt.Errorf("%w: %v", schema.ErrWorkerClosed, err)
	}
	return err
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.ErrClosedPipe) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
