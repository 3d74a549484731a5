package core

import "pkt.systems/pslog"

// ServiceDeps captures dependencies for the core service. Spawner and Clients are required.
type ServiceDeps struct {
	Spawner     WorkerSpawner
	Clients     ClientFactory
	Highlighter Highlighter
	Renderer    TreeRenderer
	EventSink   EventSink
	Logger      pslog.Logger
}
