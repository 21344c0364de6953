package adapter

import (
	"context"
	"encoding/json"

	"gemini-chat-gateway/internal/domain/model"
)

// AIServiceAdapter forwards one chat turn to the upstream model API.
//
// The model id, turn content and tool declarations are passed through
// unmodified; the fixed request policy (safety thresholds, output size cap) is
// adapter configuration. tools carries the caller's tool declarations verbatim
// (for example a google_search_retrieval grounding request) and may be nil.
// credential, when non-empty, replaces the adapter's own API key for this
// call. A nil reply with a nil error means the upstream answered successfully
// but returned no model turn.
//
// Upstream failures surface as *domain.UpstreamError.
type AIServiceAdapter interface {
	Send(ctx context.Context, modelID string, turns []model.Turn, tools json.RawMessage, credential string) (*model.Turn, error)
}
