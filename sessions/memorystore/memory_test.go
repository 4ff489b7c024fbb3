package memorystore

import (
	"context"
	"testing"
	"time"

	"github.com/ggoodman/headerauth-go/sessions"
	"github.com/ggoodman/headerauth-go/sessions/sessionstoretest"
)

func TestMemoryStore(t *testing.T) {
	sessionstoretest.RunStoreTests(t, func(t *testing.T) sessions.Store {
		s := New(0)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSweeperRemovesExpired(t *testing.T) {
	s := New(10 * time.Millisecond)
	defer s.Close()

	ctx := context.Background()
	if err := s.Put(ctx, &sessions.Record{ID: "a"}, 20*time.Millisecond); err != nil {
		t.Fatalf("Put: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("sweeper did not remove expired record")
		}
		time.Sleep(10 * time.Millisecond)
	}
	// Close is idempotent.
	_ = s.Close()
}
