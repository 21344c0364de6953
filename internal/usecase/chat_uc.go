// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"gemini-chat-gateway/internal/config"
	"gemini-chat-gateway/internal/domain"
	"gemini-chat-gateway/internal/domain/model"
	"gemini-chat-gateway/internal/domain/ports/adapter"
	"gemini-chat-gateway/internal/infra/logging"
	"gemini-chat-gateway/internal/infra/metrics"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

// ChatRequest is the caller's view of one chat turn: the requested model and
// the conversation turns, the last of which is the newly submitted user turn.
// Tools carries the caller's tool declarations (the browser client sends
// google_search_retrieval when web search is on) and is forwarded verbatim.
type ChatRequest struct {
	Model    string          `json:"model"`
	Contents []model.Turn    `json:"contents"`
	Tools    json.RawMessage `json:"tools,omitempty"`
}

type ChatUseCase interface {
	SendTurn(ctx context.Context, sessionKey string, req ChatRequest) (*model.Turn, error)
}

type chatUC struct {
	records   *RecordStore
	ai        adapter.AIServiceAdapter
	core      config.Core
	serverKey string
	log       *zerolog.Logger
}

func NewChatUseCase(records *RecordStore, ai adapter.AIServiceAdapter, core config.Core, serverKey string, log *zerolog.Logger) *chatUC {
	return &chatUC{records: records, ai: ai, core: core, serverKey: serverKey, log: log}
}

// SendTurn runs the Admitted -> Forwarded -> {Appended, Rejected} machine.
// The ledger is debited only after a confirmed upstream success, and every
// admitted request ends in exactly one store write.
func (c *chatUC) SendTurn(ctx context.Context, sessionKey string, req ChatRequest) (reply *model.Turn, err error) {
	log := logging.With(ctx, c.log)
	defer logging.TraceDuration(log, "ChatUC.SendTurn")()

	if len(req.Contents) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	submitted := req.Contents[len(req.Contents)-1]

	unlock := c.records.Acquire(ctx, sessionKey)
	defer unlock()

	rec, err := c.records.Load(ctx, sessionKey)
	if err != nil {
		return nil, err
	}

	// Admission. The record's own credential fully substitutes for the
	// server's; with neither the request is a configuration failure.
	credential := rec.APIKey
	if credential == "" {
		credential = c.serverKey
	}
	if credential == "" {
		return nil, domain.ErrNoCredential
	}
	if !rec.CanSpend() {
		metrics.IncQuotaExhausted()
		return nil, domain.ErrQuotaExhausted
	}

	modelID := req.Model
	if modelID == "" {
		modelID = rec.Model
	}
	// Binary content forces a vision-capable model over the caller's choice.
	if submitted.HasInlineData() {
		modelID = c.core.VisionModel
	}

	// Admitted: from here the record is written back exactly once, whether
	// the upstream accepts or rejects the turn.
	defer func() {
		if saveErr := c.records.Save(ctx, sessionKey, rec); saveErr != nil {
			log.Error().Err(saveErr).Msg("record write failed after chat turn")
			if err == nil {
				reply, err = nil, saveErr
			}
		}
	}()

	start := time.Now()
	reply, err = c.ai.Send(ctx, modelID, req.Contents, req.Tools, credential)
	metrics.ObserveUpstreamLatency(modelID, time.Since(start))
	if err != nil {
		metrics.IncChatTurn(modelID, "upstream_error")
		return nil, err
	}

	rec.Debit()
	if conv := rec.ActiveConversation(); conv != nil {
		conv.Append(submitted)
		if reply != nil {
			conv.Append(*reply)
		}
	} else {
		// Best-effort attach: the turn succeeded upstream but there is no
		// thread to hold it.
		log.Debug().Msg("no active conversation; turn not persisted to history")
	}
	metrics.IncChatTurn(modelID, "ok")
	return reply, nil
}
