package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/model"
)

// RedisSlot keeps the pending write under one Redis key, without expiry.
type RedisSlot struct {
	client redis.UniversalClient
	key    string
}

func NewRedisSlot(client redis.UniversalClient, key string) *RedisSlot {
	if key == "" {
		key = DefaultKey
	}
	return &RedisSlot{client: client, key: key}
}

func (s *RedisSlot) Put(ctx context.Context, w model.PendingWrite) error {
	data, err := encode(w)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

func (s *RedisSlot) Get(ctx context.Context) (*model.PendingWrite, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}
	return decode(data)
}

func (s *RedisSlot) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}
	return nil
}

// ClearIf deletes the key inside a WATCH transaction, so a Put racing with it
// makes it a no-op.
func (s *RedisSlot) ClearIf(ctx context.Context, id string) (bool, error) {
	cleared := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, s.key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		w, err := decode(data)
		if err != nil {
			return err
		}
		if w.ID != id {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.key)
			return nil
		})
		if err == nil {
			cleared = true
		}
		return err
	}, s.key)

	if errors.Is(err, redis.TxFailedErr) {
		// the slot changed under us: it holds a newer write
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis clear error: %w", err)
	}
	return cleared, nil
}
