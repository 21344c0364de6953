package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound         = errors.New("entity not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNoCredential     = errors.New("no upstream credential configured")
	ErrQuotaExhausted   = errors.New("quota exhausted")
	ErrCodeEmpty        = errors.New("redeem code is empty")
	ErrCodeAlreadyUsed  = errors.New("redeem code already used")
	ErrCodeNotFound     = errors.New("redeem code not found")
	ErrAlreadyUnlimited = errors.New("quota is already unlimited")
	ErrInvalidSnapshot  = errors.New("snapshot has invalid shape")
	ErrLockBusy         = errors.New("record is locked by another request")
)

// UpstreamError carries a non-success status from the model API through to
// the boundary layer verbatim. It is never retried and never debits quota.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.StatusCode, e.Message)
}
