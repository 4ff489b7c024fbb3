// Package identitytest provides a contract test suite for identity.Store
// implementations.
package identitytest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/headerauth-go/identity"
)

// StoreFactory creates a new, empty Store for one subtest.
type StoreFactory func(t *testing.T) identity.Store

// RunStoreTests runs the complete identity.Store suite against factory.
func RunStoreTests(t *testing.T, factory StoreFactory) {
	t.Run("FindByEmail_MissingReturnsNil", func(t *testing.T) { testFindMissing(t, factory) })
	t.Run("Create_ThenFind", func(t *testing.T) { testCreateThenFind(t, factory) })
	t.Run("Create_EmailIsCaseInsensitive", func(t *testing.T) { testCaseInsensitive(t, factory) })
	t.Run("Create_DuplicateRejected", func(t *testing.T) { testDuplicate(t, factory) })
	t.Run("Create_ConcurrentFirstLogins", func(t *testing.T) { testConcurrentCreate(t, factory) })
	t.Run("SetRole_Persists", func(t *testing.T) { testSetRole(t, factory) })
	t.Run("SetRole_UnknownIdentity", func(t *testing.T) { testSetRoleUnknown(t, factory) })
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

func testFindMissing(t *testing.T, factory StoreFactory) {
	s := factory(t)
	got, err := s.FindByEmail(ctx(t), "nobody@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if got != nil {
		t.Fatalf("want nil identity, got %+v", got)
	}
}

func testCreateThenFind(t *testing.T, factory StoreFactory) {
	s := factory(t)
	c := ctx(t)
	created, err := s.Create(c, "a@x.com", "opaque-credential")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("created identity has no ID")
	}
	if created.Email != "a@x.com" || created.Login != "a@x.com" {
		t.Fatalf("email must be both login and email: %+v", created)
	}
	if created.Role == "" {
		t.Fatalf("store must assign a default role")
	}

	found, err := s.FindByEmail(c, "a@x.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if found == nil || found.ID != created.ID {
		t.Fatalf("want %s, got %+v", created.ID, found)
	}
}

func testCaseInsensitive(t *testing.T, factory StoreFactory) {
	s := factory(t)
	c := ctx(t)
	created, err := s.Create(c, "Mixed@Example.com", "cred")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	found, err := s.FindByEmail(c, "mixed@example.COM")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if found == nil || found.ID != created.ID {
		t.Fatalf("lookup must ignore case, got %+v", found)
	}
}

func testDuplicate(t *testing.T, factory StoreFactory) {
	s := factory(t)
	c := ctx(t)
	if _, err := s.Create(c, "dup@x.com", "one"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create(c, "DUP@x.com", "two"); !errors.Is(err, identity.ErrDuplicateEmail) {
		t.Fatalf("want ErrDuplicateEmail, got %v", err)
	}
}

func testConcurrentCreate(t *testing.T, factory StoreFactory) {
	s := factory(t)
	c := ctx(t)

	const n = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	created, dup := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(c, "race@x.com", "cred")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, identity.ErrDuplicateEmail):
				dup++
			default:
				t.Errorf("Create: %v", err)
			}
		}()
	}
	wg.Wait()
	if created != 1 || dup != n-1 {
		t.Fatalf("want exactly one create, got created=%d dup=%d", created, dup)
	}
}

func testSetRole(t *testing.T, factory StoreFactory) {
	s := factory(t)
	c := ctx(t)
	id, err := s.Create(c, "role@x.com", "cred")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.SetRole(c, id, "editor"); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if id.Role != "editor" {
		t.Fatalf("SetRole must update the value in place")
	}
	found, err := s.FindByEmail(c, "role@x.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if found.Role != "editor" {
		t.Fatalf("role not persisted: %+v", found)
	}
}

func testSetRoleUnknown(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ghost := &identity.Identity{ID: "00000000-0000-0000-0000-000000000000", Email: "ghost@x.com"}
	if err := s.SetRole(ctx(t), ghost, "editor"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
