package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"gemini-chat-gateway/internal/domain"
	"gemini-chat-gateway/internal/domain/ports/repository"
)

var _ repository.RecordRepository = (*RecordRepo)(nil)

// RecordRepo stores one JSON session record per key. Records have no TTL:
// retention is a store-level concern, not the gateway's.
type RecordRepo struct {
	client *Client
}

func NewRecordRepo(client *Client) *RecordRepo {
	return &RecordRepo{client: client}
}

func (r *RecordRepo) recordKey(sessionKey string) string {
	return fmt.Sprintf("chat_record:%s", sessionKey)
}

func (r *RecordRepo) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.recordKey(key))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return []byte(data), nil
}

func (r *RecordRepo) Put(ctx context.Context, key string, data []byte) error {
	return r.client.Set(ctx, r.recordKey(key), data, 0)
}
