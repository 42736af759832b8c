package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, ttl), mr
}

func TestIssueGetRevoke(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	sess, err := store.Issue(ctx, 580866264, "Europe/Moscow")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := store.Get(ctx, sess.Token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ChatID != 580866264 || got.Timezone != "Europe/Moscow" {
		t.Fatalf("unexpected session %+v", got)
	}

	if err := store.Revoke(ctx, sess.Token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := store.Get(ctx, sess.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after revoke, got %v", err)
	}
	if err := store.Revoke(ctx, sess.Token); err != nil {
		t.Fatalf("second revoke should be a no-op: %v", err)
	}
}

func TestIssueRejectsUnknownTimezone(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	if _, err := store.Issue(context.Background(), 1, "Mars/Olympus"); !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("expected ErrInvalidTimezone, got %v", err)
	}
}

func TestActivePrunesExpiredSessions(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	if _, err := store.Issue(ctx, 1, ""); err != nil {
		t.Fatalf("issue: %v", err)
	}
	active, err := store.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active session, got %d", len(active))
	}

	mr.FastForward(2 * time.Minute)
	active, err = store.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected expired session to be gone, got %d", len(active))
	}
	members, _ := mr.Members(indexKey)
	if len(members) != 0 {
		t.Fatalf("expected index to be pruned, got %v", members)
	}
}

func TestSetTimezoneKeepsTTL(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	sess, err := store.Issue(ctx, 1, "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := store.SetTimezone(ctx, sess.Token, "Asia/Yekaterinburg"); err != nil {
		t.Fatalf("set timezone: %v", err)
	}
	if ttl := mr.TTL(keyPrefix + sess.Token); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("unexpected ttl %v", ttl)
	}
	got, err := store.Get(ctx, sess.Token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Location(time.UTC).String() != "Asia/Yekaterinburg" {
		t.Fatalf("unexpected location %s", got.Location(time.UTC))
	}

	if _, err := store.SetTimezone(ctx, "missing", "UTC"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPasswordChecker(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	c := NewPasswordChecker(string(hash))
	if err := c.Verify("s3cret"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := c.Verify("wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := NewPasswordChecker("").Verify("s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials without a hash, got %v", err)
	}
}
