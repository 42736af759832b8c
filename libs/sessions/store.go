// Package sessions keeps staff chat sessions in Redis. A session is issued on a
// successful login, expires after a fixed TTL and can be revoked at logout. The set of
// live sessions doubles as the recipient list for staff notifications.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrInvalidTimezone = errors.New("invalid timezone")
)

const (
	keyPrefix = "staff_session:"
	indexKey  = "staff_sessions"
)

type Session struct {
	Token     string    `json:"token"`
	ChatID    int64     `json:"chat_id"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Location resolves the session's timezone, falling back to def when unset or unknown.
func (s Session) Location(def *time.Location) *time.Location {
	if s.Timezone == "" {
		return def
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return def
	}
	return loc
}

type Store struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl, now: time.Now}
}

func validateTimezone(tz string) error {
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	return nil
}

func (s *Store) Issue(ctx context.Context, chatID int64, timezone string) (Session, error) {
	if err := validateTimezone(timezone); err != nil {
		return Session{}, err
	}
	now := s.now().UTC()
	sess := Session{
		Token:     uuid.NewString(),
		ChatID:    chatID,
		Timezone:  timezone,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return Session{}, err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, keyPrefix+sess.Token, raw, s.ttl)
	pipe.SAdd(ctx, indexKey, sess.Token)
	if _, err := pipe.Exec(ctx); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *Store) Get(ctx context.Context, token string) (Session, error) {
	raw, err := s.rdb.Get(ctx, keyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// SetTimezone updates the timezone of a live session without extending its lifetime.
func (s *Store) SetTimezone(ctx context.Context, token, timezone string) (Session, error) {
	if err := validateTimezone(timezone); err != nil {
		return Session{}, err
	}
	sess, err := s.Get(ctx, token)
	if err != nil {
		return Session{}, err
	}
	sess.Timezone = timezone
	raw, err := json.Marshal(sess)
	if err != nil {
		return Session{}, err
	}
	err = s.rdb.SetArgs(ctx, keyPrefix+token, raw, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Revoke ends a session. Revoking an unknown or expired token is not an error.
func (s *Store) Revoke(ctx context.Context, token string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, keyPrefix+token)
	pipe.SRem(ctx, indexKey, token)
	_, err := pipe.Exec(ctx)
	return err
}

// Active lists live sessions. Tokens whose session key has expired are pruned from the index.
func (s *Store) Active(ctx context.Context) ([]Session, error) {
	tokens, err := s.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	keys := make([]string, len(tokens))
	for i, tok := range tokens {
		keys[i] = keyPrefix + tok
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var out []Session
	var stale []any
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, tokens[i])
			continue
		}
		var sess Session
		if err := json.Unmarshal([]byte(str), &sess); err != nil {
			stale = append(stale, tokens[i])
			continue
		}
		out = append(out, sess)
	}
	if len(stale) > 0 {
		_ = s.rdb.SRem(ctx, indexKey, stale...).Err()
	}
	return out, nil
}
