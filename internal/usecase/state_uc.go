// File: internal/usecase/state_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"gemini-chat-gateway/internal/config"
	"gemini-chat-gateway/internal/domain"
	"gemini-chat-gateway/internal/domain/model"
	"gemini-chat-gateway/internal/infra/logging"
)

var _ StateUseCase = (*stateUC)(nil)

// SettingsUpdate carries the update-settings command. Nil or empty theme and
// model leave the stored value untouched; a present-but-empty apiKey clears
// the stored credential.
type SettingsUpdate struct {
	Theme  *string `json:"theme"`
	Model  *string `json:"model"`
	APIKey *string `json:"apiKey"`
}

type StateUseCase interface {
	// Get returns the repaired record without writing it back.
	Get(ctx context.Context, sessionKey string) (*model.SessionRecord, error)
	UpdateSettings(ctx context.Context, sessionKey string, upd SettingsUpdate) (*model.SessionRecord, error)
	// Restore replaces the stored record verbatim after a minimal shape
	// check. Repair applies on the next read, not here.
	Restore(ctx context.Context, sessionKey string, snapshot []byte) error
}

type stateUC struct {
	records *RecordStore
	core    config.Core
	log     *zerolog.Logger
}

func NewStateUseCase(records *RecordStore, core config.Core, log *zerolog.Logger) *stateUC {
	return &stateUC{records: records, core: core, log: log}
}

func (s *stateUC) Get(ctx context.Context, sessionKey string) (*model.SessionRecord, error) {
	return s.records.Load(ctx, sessionKey)
}

func (s *stateUC) UpdateSettings(ctx context.Context, sessionKey string, upd SettingsUpdate) (*model.SessionRecord, error) {
	log := logging.With(ctx, s.log)
	defer logging.TraceDuration(log, "StateUC.UpdateSettings")()

	if upd.Theme != nil && *upd.Theme != "" &&
		*upd.Theme != string(model.ThemeLight) && *upd.Theme != string(model.ThemeDark) {
		return nil, fmt.Errorf("theme %q: %w", *upd.Theme, domain.ErrInvalidArgument)
	}
	if upd.Model != nil && *upd.Model != "" && !s.core.ModelAllowed(*upd.Model) {
		return nil, fmt.Errorf("model %q: %w", *upd.Model, domain.ErrInvalidArgument)
	}

	unlock := s.records.Acquire(ctx, sessionKey)
	defer unlock()

	rec, err := s.records.Load(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if upd.Theme != nil && *upd.Theme != "" {
		rec.Theme = model.Theme(*upd.Theme)
	}
	if upd.Model != nil && *upd.Model != "" {
		rec.Model = *upd.Model
	}
	if upd.APIKey != nil {
		rec.APIKey = strings.TrimSpace(*upd.APIKey)
	}

	if err := s.records.Save(ctx, sessionKey, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *stateUC) Restore(ctx context.Context, sessionKey string, snapshot []byte) error {
	log := logging.With(ctx, s.log)
	defer logging.TraceDuration(log, "StateUC.Restore")()

	var probe struct {
		Quota         json.RawMessage `json:"quota"`
		Conversations json.RawMessage `json:"conversations"`
	}
	if err := json.Unmarshal(snapshot, &probe); err != nil {
		return domain.ErrInvalidSnapshot
	}
	var quota float64
	if err := json.Unmarshal(probe.Quota, &quota); err != nil {
		return domain.ErrInvalidSnapshot
	}
	var convs map[string]json.RawMessage
	if err := json.Unmarshal(probe.Conversations, &convs); err != nil {
		return domain.ErrInvalidSnapshot
	}

	return s.records.SaveRaw(ctx, sessionKey, snapshot)
}
