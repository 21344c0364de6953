// File: internal/usecase/redeem_uc.go
package usecase

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"gemini-chat-gateway/internal/config"
	"gemini-chat-gateway/internal/domain"
	"gemini-chat-gateway/internal/domain/model"
	"gemini-chat-gateway/internal/infra/logging"
	"gemini-chat-gateway/internal/infra/metrics"
)

var _ RedeemUseCase = (*redeemUC)(nil)

// RedeemResult reports a successful redemption. Granted is the quota added,
// or model.UnlimitedQuota when the code unlocked unlimited use.
type RedeemResult struct {
	Record  *model.SessionRecord
	Granted int64
}

type RedeemUseCase interface {
	Redeem(ctx context.Context, sessionKey, rawCode string) (*RedeemResult, error)
}

type redeemUC struct {
	records *RecordStore
	core    config.Core
	log     *zerolog.Logger
}

func NewRedeemUseCase(records *RecordStore, core config.Core, log *zerolog.Logger) *redeemUC {
	return &redeemUC{records: records, core: core, log: log}
}

// Redeem applies an entitlement code at most once per record. Codes are a
// closed configuration table, not user-generated data.
func (r *redeemUC) Redeem(ctx context.Context, sessionKey, rawCode string) (*RedeemResult, error) {
	log := logging.With(ctx, r.log)
	defer logging.TraceDuration(log, "RedeemUC.Redeem")()

	code := strings.ToUpper(strings.TrimSpace(rawCode))
	if code == "" {
		metrics.IncRedemption("empty")
		return nil, domain.ErrCodeEmpty
	}

	unlock := r.records.Acquire(ctx, sessionKey)
	defer unlock()

	rec, err := r.records.Load(ctx, sessionKey)
	if err != nil {
		return nil, err
	}

	if rec.HasRedeemed(code) {
		metrics.IncRedemption("used")
		return nil, domain.ErrCodeAlreadyUsed
	}
	value, known := r.core.Codes[code]
	if !known {
		metrics.IncRedemption("unknown")
		return nil, domain.ErrCodeNotFound
	}
	if rec.Unlimited() {
		// Neither re-granting unlimited nor topping it up means anything.
		metrics.IncRedemption("already_unlimited")
		return nil, domain.ErrAlreadyUnlimited
	}

	if value == model.UnlimitedQuota {
		rec.Quota = model.UnlimitedQuota
	} else {
		rec.Quota += value
	}
	rec.MarkRedeemed(code)

	if err := r.records.Save(ctx, sessionKey, rec); err != nil {
		return nil, err
	}
	metrics.IncRedemption("ok")
	log.Info().Str("code", code).Int64("granted", value).Msg("code redeemed")
	return &RedeemResult{Record: rec, Granted: value}, nil
}
