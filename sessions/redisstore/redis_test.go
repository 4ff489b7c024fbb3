package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ggoodman/headerauth-go/sessions"
	"github.com/ggoodman/headerauth-go/sessions/sessionstoretest"
	"github.com/redis/go-redis/v9"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cl := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cl.Close() })
	return NewFromClient(cl, "test:sessions:"), mr
}

func TestRedisStore(t *testing.T) {
	sessionstoretest.RunStoreTests(t, func(t *testing.T) sessions.Store {
		s, _ := newStore(t)
		return s
	})
}

func TestRedisTTLAndPrefix(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	rec := &sessions.Record{ID: "abc", IdentityID: "u1", Email: "a@x.com", ExpiresAt: time.Now().Add(time.Hour)}
	if err := s.Put(ctx, rec, time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !mr.Exists("test:sessions:abc") {
		t.Fatalf("expected prefixed key, have %v", mr.Keys())
	}
	if ttl := mr.TTL("test:sessions:abc"); ttl != time.Minute {
		t.Fatalf("want ttl 1m, got %s", ttl)
	}

	mr.FastForward(2 * time.Minute)
	got, err := s.Get(ctx, "abc")
	if err != nil || got != nil {
		t.Fatalf("want (nil, nil) after expiry, got (%v, %v)", got, err)
	}
}

func TestRedisRejectsNonPositiveTTL(t *testing.T) {
	s, _ := newStore(t)
	if err := s.Put(context.Background(), &sessions.Record{ID: "x"}, 0); err == nil {
		t.Fatalf("zero ttl accepted")
	}
}

func TestNewConnectsAndPings(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := New(context.Background(), Config{RedisAddr: mr.Addr()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := New(context.Background(), Config{RedisAddr: "127.0.0.1:1"}); err == nil {
		t.Fatalf("expected ping failure against closed port")
	}
}
