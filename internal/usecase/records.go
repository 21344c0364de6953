// File: internal/usecase/records.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"gemini-chat-gateway/internal/config"
	"gemini-chat-gateway/internal/domain"
	"gemini-chat-gateway/internal/domain/model"
	"gemini-chat-gateway/internal/domain/ports/repository"
	"gemini-chat-gateway/internal/infra/logging"
	"gemini-chat-gateway/internal/infra/metrics"
)

const lockTTL = 10 * time.Second

// RecordStore is the load -> repair / save pipeline shared by every usecase.
// A store I/O failure is the one genuinely fatal condition; it aborts the
// request rather than risking a half-updated record.
type RecordStore struct {
	repo   repository.RecordRepository
	locker repository.Locker // nil => last-write-wins (the accepted default)
	core   config.Core
	log    *zerolog.Logger
}

func NewRecordStore(repo repository.RecordRepository, locker repository.Locker, core config.Core, log *zerolog.Logger) *RecordStore {
	return &RecordStore{repo: repo, locker: locker, core: core, log: log}
}

// Load fetches and repairs the record for a session key. An absent record
// synthesizes a fresh default one; it is not persisted until the first
// mutating operation saves it.
func (s *RecordStore) Load(ctx context.Context, key string) (*model.SessionRecord, error) {
	data, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncRecordLoad("fresh")
			return model.NewSessionRecord(s.core.DefaultModel, s.core.TrialQuota), nil
		}
		metrics.IncRecordLoad("error")
		return nil, fmt.Errorf("load record: %w", err)
	}
	rec, repaired := DecodeAndRepair(data, s.core)
	if repaired {
		metrics.IncRecordLoad("repaired")
		logging.With(ctx, s.log).Debug().Msg("stored record coerced to current schema")
	} else {
		metrics.IncRecordLoad("ok")
	}
	return rec, nil
}

func (s *RecordStore) Save(ctx context.Context, key string, rec *model.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		metrics.IncRecordSave("error")
		return fmt.Errorf("encode record: %w", err)
	}
	if err := s.repo.Put(ctx, key, data); err != nil {
		metrics.IncRecordSave("error")
		return fmt.Errorf("save record: %w", err)
	}
	metrics.IncRecordSave("ok")
	return nil
}

// SaveRaw writes a caller-supplied snapshot verbatim. Used by restore, which
// must not normalize the blob: repair applies on the next read instead.
func (s *RecordStore) SaveRaw(ctx context.Context, key string, data []byte) error {
	if err := s.repo.Put(ctx, key, data); err != nil {
		metrics.IncRecordSave("error")
		return fmt.Errorf("save record: %w", err)
	}
	metrics.IncRecordSave("ok")
	return nil
}

// Acquire takes the optional per-key lock around a read-modify-write cycle.
// When no locker is wired, or the lock cannot be taken, the cycle proceeds
// under the contract's last-write-wins semantics.
func (s *RecordStore) Acquire(ctx context.Context, key string) func() {
	if s.locker == nil {
		return func() {}
	}
	lockKey := "record_lock:" + key
	token, err := s.locker.TryLock(ctx, lockKey, lockTTL)
	if err != nil {
		logging.With(ctx, s.log).Debug().Err(err).Msg("record lock unavailable; proceeding unlocked")
		return func() {}
	}
	return func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			logging.With(ctx, s.log).Warn().Err(err).Msg("record unlock failed")
		}
	}
}
