// File: internal/usecase/conversation_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"gemini-chat-gateway/internal/domain"
	"gemini-chat-gateway/internal/domain/model"
	"gemini-chat-gateway/internal/infra/logging"
)

var _ ConversationUseCase = (*conversationUC)(nil)

// ConversationAction is the boundary's conversation-action command.
type ConversationAction struct {
	Action   string `json:"action"` // create | delete | rename | switch
	ConvID   string `json:"convId"`
	NewTitle string `json:"newTitle"`
}

// ConversationUseCase mutates the record's conversation collection. Every
// successful action returns the full updated record, never a delta.
type ConversationUseCase interface {
	Apply(ctx context.Context, sessionKey string, act ConversationAction) (*model.SessionRecord, error)
}

type conversationUC struct {
	records *RecordStore
	log     *zerolog.Logger
}

func NewConversationUseCase(records *RecordStore, log *zerolog.Logger) *conversationUC {
	return &conversationUC{records: records, log: log}
}

func (u *conversationUC) Apply(ctx context.Context, sessionKey string, act ConversationAction) (*model.SessionRecord, error) {
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "ConversationUC.Apply")()

	unlock := u.records.Acquire(ctx, sessionKey)
	defer unlock()

	rec, err := u.records.Load(ctx, sessionKey)
	if err != nil {
		return nil, err
	}

	switch act.Action {
	case "create":
		title := fmt.Sprintf("Conversation %d", len(rec.Conversations)+1)
		rec.NewConversation(title)
	case "delete":
		// Absent ids are a silent no-op, per the idempotent-style contract.
		rec.DeleteConversation(act.ConvID)
	case "rename":
		if strings.TrimSpace(act.NewTitle) == "" {
			return nil, fmt.Errorf("rename: empty title: %w", domain.ErrInvalidArgument)
		}
		rec.RenameConversation(act.ConvID, act.NewTitle)
	case "switch":
		rec.SwitchConversation(act.ConvID)
	default:
		return nil, fmt.Errorf("conversation action %q: %w", act.Action, domain.ErrInvalidArgument)
	}

	if err := u.records.Save(ctx, sessionKey, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
