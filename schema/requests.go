package schema

// CreatePlaygroundRequest describes a request to create a playground.
// Encoded fields take precedence over plain text; RestoreID takes precedence over both.
type CreatePlaygroundRequest struct {
	Grammar        string
	Content        string
	EncodedGrammar string
	EncodedContent string
	RestoreID      PlaygroundID
}

// CreatePlaygroundResponse reports the created playground.
type CreatePlaygroundResponse struct {
	Playground PlaygroundInfo
	Snapshot   StateSnapshot
}

// ClosePlaygroundRequest identifies a playground to close.
type ClosePlaygroundRequest struct {
	ID PlaygroundID
}

// ClosePlaygroundResponse reports the final state of a closed playground.
type ClosePlaygroundResponse struct {
	Snapshot StateSnapshot
}

// UpdateTextRequest replaces the text of one editor.
type UpdateTextRequest struct {
	ID   PlaygroundID
	Text string
}

// UpdateTextResponse acknowledges an edit.
type UpdateTextResponse struct {
	Version int32
}

// ResizeRequest signals a layout change for a playground.
type ResizeRequest struct {
	ID PlaygroundID
}

// ResizeResponse acknowledges a resize.
type ResizeResponse struct{}

// ExportStateRequest identifies a playground to export.
type ExportStateRequest struct {
	ID PlaygroundID
}

// ExportStateResponse carries the exported state and a share link.
type ExportStateResponse struct {
	Snapshot  StateSnapshot
	ShareLink string
	Info      PlaygroundInfo
}

// ListPlaygroundsRequest lists playgrounds.
type ListPlaygroundsRequest struct{}

// ListPlaygroundsResponse reports active playgrounds.
type ListPlaygroundsResponse struct {
	Playgrounds []PlaygroundInfo
}
