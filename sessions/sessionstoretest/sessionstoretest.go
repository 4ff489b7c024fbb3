// Package sessionstoretest provides a contract suite shared by every
// sessions.Store implementation.
package sessionstoretest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/headerauth-go/sessions"
)

// StoreFactory creates a fresh, empty Store for one subtest.
type StoreFactory func(t *testing.T) sessions.Store

// RunStoreTests runs the Store contract against factory.
func RunStoreTests(t *testing.T, factory StoreFactory) {
	t.Run("GetMissingReturnsNil", func(t *testing.T) { testGetMissing(t, factory) })
	t.Run("PutThenGet", func(t *testing.T) { testPutThenGet(t, factory) })
	t.Run("PutReplaces", func(t *testing.T) { testPutReplaces(t, factory) })
	t.Run("DeleteIsIdempotent", func(t *testing.T) { testDelete(t, factory) })
	t.Run("ExpiredRecordIsAbsent", func(t *testing.T) { testExpiry(t, factory) })
	t.Run("ConcurrentAccess", func(t *testing.T) { testConcurrent(t, factory) })
}

func record(id string) *sessions.Record {
	now := time.Now().UTC().Truncate(time.Second)
	return &sessions.Record{
		ID:         id,
		IdentityID: "ident-" + id,
		Login:      "login-" + id,
		Email:      id + "@example.com",
		Role:       "editor",
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Hour),
	}
}

func testGetMissing(t *testing.T, factory StoreFactory) {
	s := factory(t)
	got, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("want nil, got %+v", got)
	}
}

func testPutThenGet(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := context.Background()
	want := record("s1")
	if err := s.Put(ctx, want, time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatalf("record not found")
	}
	if got.ID != want.ID || got.IdentityID != want.IdentityID || got.Login != want.Login ||
		got.Email != want.Email || got.Role != want.Role {
		t.Fatalf("mismatch: got %+v want %+v", got, want)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Fatalf("timestamps mismatch: got %+v want %+v", got, want)
	}

	// Mutating the returned record must not affect the stored one.
	got.Email = "changed@example.com"
	again, _ := s.Get(ctx, "s1")
	if again.Email != want.Email {
		t.Fatalf("store returned shared state")
	}
}

func testPutReplaces(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := context.Background()
	rec := record("s1")
	if err := s.Put(ctx, rec, time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rec.Role = "author"
	if err := s.Put(ctx, rec, time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, _ := s.Get(ctx, "s1")
	if got == nil || got.Role != "author" {
		t.Fatalf("want replaced role, got %+v", got)
	}
}

func testDelete(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := context.Background()
	if err := s.Put(ctx, record("s1"), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, record("s2"), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "s1"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if got, _ := s.Get(ctx, "s1"); got != nil {
		t.Fatalf("deleted record still present")
	}
	if got, _ := s.Get(ctx, "s2"); got == nil {
		t.Fatalf("unrelated record removed")
	}
}

func testExpiry(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := context.Background()
	rec := record("short")
	rec.ExpiresAt = time.Now().Add(50 * time.Millisecond)
	if err := s.Put(ctx, rec, 50*time.Millisecond); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(120 * time.Millisecond)
	got, err := s.Get(ctx, "short")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expired record returned: %+v", got)
	}
}

func testConcurrent(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			if err := s.Put(ctx, record(id), time.Hour); err != nil {
				errs <- err
				return
			}
			if got, err := s.Get(ctx, id); err != nil || got == nil {
				errs <- fmt.Errorf("get %s: %v %v", id, got, err)
				return
			}
			if err := s.Delete(ctx, id); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
