package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "tutor:session:"
	defaultTTL       = 24 * time.Hour
)

// RedisStore keeps each session as a capped list of JSON exchanges plus a
// marker key recording that the session exists. Both keys share a TTL that
// is refreshed on every append. Sessions expire in Redis, so it does not
// report the in-process sessions gauge.
type RedisStore struct {
	client       goredis.UniversalClient
	maxExchanges int
	ttl          time.Duration
	prefix       string
}

func NewRedisStore(client goredis.UniversalClient, maxExchanges int, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{
		client:       client,
		maxExchanges: normalizeMax(maxExchanges),
		ttl:          ttl,
		prefix:       defaultKeyPrefix,
	}
}

func (s *RedisStore) listKey(id string) string   { return s.prefix + id + ":exchanges" }
func (s *RedisStore) markerKey(id string) string { return s.prefix + id }

func (s *RedisStore) CreateSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := s.client.Set(ctx, s.markerKey(id), time.Now().UTC().Format(time.RFC3339), s.ttl).Err(); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func (s *RedisStore) History(ctx context.Context, id string) (string, error) {
	raw, err := s.client.LRange(ctx, s.listKey(id), 0, -1).Result()
	if err != nil {
		return "", fmt.Errorf("load session history: %w", err)
	}
	exchanges := make([]Exchange, 0, len(raw))
	for _, item := range raw {
		var ex Exchange
		if err := json.Unmarshal([]byte(item), &ex); err != nil {
			return "", fmt.Errorf("decode session exchange: %w", err)
		}
		exchanges = append(exchanges, ex)
	}
	return formatHistory(exchanges), nil
}

// Append pushes, trims and refreshes expiry in one MULTI/EXEC.
func (s *RedisStore) Append(ctx context.Context, id, query, answer string) error {
	payload, err := json.Marshal(Exchange{Query: query, Answer: answer})
	if err != nil {
		return fmt.Errorf("encode session exchange: %w", err)
	}
	listKey := s.listKey(id)
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, listKey, payload)
		pipe.LTrim(ctx, listKey, int64(-s.maxExchanges), -1)
		pipe.Expire(ctx, listKey, s.ttl)
		pipe.Set(ctx, s.markerKey(id), time.Now().UTC().Format(time.RFC3339), s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append session exchange: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, id string) error {
	removed, err := s.client.Del(ctx, s.markerKey(id), s.listKey(id)).Result()
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if removed == 0 {
		return ErrSessionNotFound
	}
	return nil
}
