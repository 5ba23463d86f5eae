package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// sessionKeyPrefix namespaces session documents.
	sessionKeyPrefix = "skyfi:session:"

	// conversationKeyPrefix namespaces the per-conversation session id sets.
	conversationKeyPrefix = "skyfi:conversation:"

	// DefaultSessionTTL is the idle lifetime of a session in Redis.
	DefaultSessionTTL = 24 * time.Hour
)

// RedisStore keeps sessions in Redis so several gateway instances serve the
// same conversations. Each write refreshes the session's TTL.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore creates a Redis backed session store. A non-positive ttl
// uses DefaultSessionTTL.
func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisStore{
		redis: redisClient,
		ttl:   ttl,
	}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func conversationKey(conversationID string) string {
	return conversationKeyPrefix + conversationID + ":sessions"
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.redis.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	return decodeSession(data)
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	convKey := conversationKey(session.ConversationID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), data, s.ttl)
		pipe.SAdd(ctx, convKey, session.ID)
		pipe.Expire(ctx, convKey, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(id))
		pipe.SRem(ctx, conversationKey(session.ConversationID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// ListByConversation implements Store. Ids whose session expired are
// removed from the conversation set.
func (s *RedisStore) ListByConversation(ctx context.Context, conversationID string) ([]*Session, error) {
	convKey := conversationKey(conversationID)

	ids, err := s.redis.SMembers(ctx, convKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}

	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget sessions: %w", err)
	}

	var (
		sessions []*Session
		stale    []any
	)
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		session, err := decodeSession([]byte(raw))
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, convKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("redis prune sessions: %w", err)
		}
	}
	return sessions, nil
}

// Clear implements Store. Only session and conversation keys are removed.
func (s *RedisStore) Clear(ctx context.Context) error {
	for _, prefix := range []string{sessionKeyPrefix, conversationKeyPrefix} {
		var cursor uint64
		for {
			keys, next, err := s.redis.Scan(ctx, cursor, prefix+"*", 100).Result()
			if err != nil {
				return fmt.Errorf("redis scan: %w", err)
			}
			if len(keys) > 0 {
				if err := s.redis.Del(ctx, keys...).Err(); err != nil {
					return fmt.Errorf("redis del: %w", err)
				}
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
	return nil
}

func decodeSession(data []byte) (*Session, error) {
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session.Filters == nil {
		session.Filters = map[string]any{}
	}
	if session.UniqueOrderIDs == nil {
		session.UniqueOrderIDs = OrderIDSet{}
	}
	if session.Pages == nil {
		session.Pages = []Page{}
	}
	return &session, nil
}
