package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("session: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("session: CBOR decoder initialization failed: " + err.Error())
	}
}

// RedisStore keeps sessions in Redis as CBOR blobs that expire after ttl.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore returns a Store backed by client. A zero ttl keeps keys forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key Key) (State, error) {
	raw, err := s.client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("session get %s: %w", key, err)
	}
	var state State
	if err := decMode.Unmarshal(raw, &state); err != nil {
		return State{}, fmt.Errorf("session decode %s: %w", key, err)
	}
	return state, nil
}

func (s *RedisStore) Set(ctx context.Context, key Key, state State) error {
	if state.Empty() {
		return s.Clear(ctx, key)
	}
	raw, err := encMode.Marshal(state)
	if err != nil {
		return fmt.Errorf("session encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key.String(), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("session set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, key.String()).Err(); err != nil {
		return fmt.Errorf("session clear %s: %w", key, err)
	}
	return nil
}
