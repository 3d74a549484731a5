package core

import (
	"context"

	"pkt.systems/langpad/schema"
)

// Service is the transport-agnostic API for managing playgrounds.
type Service interface {
	CreatePlayground(ctx context.Context, req schema.CreatePlaygroundRequest) (schema.CreatePlaygroundResponse, error)
	ClosePlayground(ctx context.Context, req schema.ClosePlaygroundRequest) (schema.ClosePlaygroundResponse, error)
	UpdateDefinition(ctx context.Context, req schema.UpdateTextRequest) (schema.UpdateTextResponse, error)
	UpdateSample(ctx context.Context, req schema.UpdateTextRequest) (schema.UpdateTextResponse, error)
	Resize(ctx context.Context, req schema.ResizeRequest) (schema.ResizeResponse, error)
	ExportState(ctx context.Context, req schema.ExportStateRequest) (schema.ExportStateResponse, error)
	ListPlaygrounds(ctx context.Context, req schema.ListPlaygroundsRequest) (schema.ListPlaygroundsResponse, error)
	CloseAll(ctx context.Context) error
}
