package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"taskboard/internal/identity/models"
	"taskboard/pkg/platform/codec"
	"taskboard/pkg/platform/sentinel"
)

const (
	sessionKeyPrefix = "session:"
	maxWatchRetries  = 5
)

// RedisStore persists CBOR-encoded sessions with a TTL matching their expiry.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (s *RedisStore) Create(ctx context.Context, sess *models.Session) error {
	payload, err := codec.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, sessionKey(sess.ID), payload, ttlFor(sess)).Result()
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	if !ok {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (*models.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return decode(raw)
}

// Execute applies validate and mutate inside a WATCH transaction so concurrent
// writers to the same session retry instead of overwriting each other.
func (s *RedisStore) Execute(
	ctx context.Context,
	id string,
	validate func(*models.Session) error,
	mutate func(*models.Session),
) (*models.Session, error) {
	key := sessionKey(id)
	var result *models.Session

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		sess, err := decode(raw)
		if err != nil {
			return err
		}
		if err := validate(sess); err != nil {
			return err
		}
		mutate(sess)
		payload, err := codec.Marshal(sess)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttlFor(sess))
			return nil
		})
		if err == nil {
			result = sess
		}
		return err
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("update session %s: %w", id, sentinel.ErrConflict)
}

func decode(raw []byte) (*models.Session, error) {
	var sess models.Session
	if err := codec.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// ttlFor keeps revoked sessions around briefly so revocation stays observable.
func ttlFor(sess *models.Session) time.Duration {
	ttl := time.Until(sess.ExpiresAt)
	if sess.Status == models.SessionStatusRevoked || ttl <= 0 {
		return time.Hour
	}
	return ttl
}
