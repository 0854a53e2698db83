package state

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	redisSessionKey = "wheelhouse:session"
	redisTokenKey   = "wheelhouse:token"
)

// RedisStore keeps the pair in redis, for deployments where the CRM
// terminal state should survive the host. Both keys are written in one
// transactional pipeline and deleted with one DEL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client. The prefix isolates multiple
// terminals sharing one redis (e.g. a per-terminal ID).
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(base string) string {
	if s.prefix == "" {
		return base
	}
	return s.prefix + ":" + base
}

// Save writes both keys transactionally.
func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(redisSessionKey), rec.Session, 0)
	pipe.Set(ctx, s.key(redisTokenKey), rec.Token, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	return nil
}

// Load returns the persisted pair, or ErrNoState when either key is
// absent.
func (s *RedisStore) Load(ctx context.Context) (*Record, error) {
	vals, err := s.client.MGet(ctx, s.key(redisSessionKey), s.key(redisTokenKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	session, ok := vals[0].(string)
	if !ok || session == "" {
		return nil, ErrNoState
	}
	token, ok := vals[1].(string)
	if !ok || token == "" {
		return nil, ErrNoState
	}

	return &Record{Session: []byte(session), Token: token}, nil
}

// Clear removes both keys.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key(redisSessionKey), s.key(redisTokenKey)).Err(); err != nil {
		return fmt.Errorf("failed to clear session state: %w", err)
	}
	return nil
}
