package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidPlayground indicates an invalid playground identifier.
	ErrInvalidPlayground = errors.New("invalid playground")
	// ErrPlaygroundNotFound indicates a requested playground does not exist.
	ErrPlaygroundNotFound = errors.New("playground not found")
	// ErrInvalidShareData indicates an encoded grammar or content string could not be decoded.
	ErrInvalidShareData = errors.New("invalid share data")
	// ErrWorkerFailed indicates a worker rejected its start message.
	ErrWorkerFailed = errors.New("worker failed to start")
	// ErrWorkerClosed indicates a worker connection closed before or while in use.
	ErrWorkerClosed = errors.New("worker closed")
	// ErrHandshakeTimeout indicates a worker did not become ready in time.
	ErrHandshakeTimeout = errors.New("worker handshake timed out")
	// ErrMissingClient indicates a session started without a language client.
	ErrMissingClient = errors.New("language client missing")
	// ErrClientNotStarted indicates a language client was used before Start.
	ErrClientNotStarted = errors.New("language client not started")
	// ErrClosed indicates the playground or component has been closed.
	ErrClosed = errors.New("closed")
	// ErrInvalidGrammar indicates a grammar could not be compiled.
	ErrInvalidGrammar = errors.New("invalid grammar")
)
