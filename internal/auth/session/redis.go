package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"travelplan_backend/platform/httpkit"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "travelplan:session:"

// RedisStore keeps sessions in Redis and lets key expiry do the sweeping.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: defaultKeyPrefix, now: time.Now}
}

// NewRedisClient builds a client from a redis:// or rediss:// URL.
func NewRedisClient(redisURL string, tlsInsecure bool) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.TLSConfig != nil && tlsInsecure {
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + hashID(sessionID)
}

func (s *RedisStore) Create(ctx context.Context, principal httpkit.Principal, ttl time.Duration) (Session, error) {
	if ttl <= 0 {
		return Session{}, ErrInvalidTTL
	}
	id, err := newID()
	if err != nil {
		return Session{}, err
	}
	now := s.now().UTC()
	sess := Session{ID: id, Principal: principal, CreatedAt: now, ExpiresAt: now.Add(ttl)}

	payload, err := json.Marshal(sess)
	if err != nil {
		return Session{}, err
	}
	if err := s.client.Set(ctx, s.key(id), payload, ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) Resolve(ctx context.Context, sessionID string) (httpkit.Principal, bool, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return httpkit.Principal{}, false, nil
	}
	if err != nil {
		return httpkit.Principal{}, false, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return httpkit.Principal{}, false, fmt.Errorf("decode session: %w", err)
	}
	if !s.now().Before(sess.ExpiresAt) {
		return httpkit.Principal{}, false, nil
	}
	return sess.Principal, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID)).Err()
}

var _ Store = (*RedisStore)(nil)
var _ httpkit.SessionResolver = (*RedisStore)(nil)
