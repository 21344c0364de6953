package ai

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"gemini-chat-gateway/internal/domain/model"
	"gemini-chat-gateway/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter implements adapter.AIServiceAdapter for local/dev testing.
// It logs turns instead of sending real upstream requests.
type NoopAIAdapter struct{}

func NewNoopAIAdapter() *NoopAIAdapter {
	return &NoopAIAdapter{}
}

func (a *NoopAIAdapter) Send(ctx context.Context, modelID string, turns []model.Turn, tools json.RawMessage, credential string) (*model.Turn, error) {
	// Simulate slight processing time and respect ctx
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	log.Printf("[noop-ai] model=%s turns=%d\n", modelID, len(turns))
	return &model.Turn{
		Role:  model.RoleModel,
		Parts: []model.Part{{Text: "This is a noop AI response."}},
	}, nil
}
