package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ggoodman/headerauth-go/identity"
	"github.com/ggoodman/headerauth-go/identity/identitytest"
	"github.com/google/uuid"
)

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("HEADERAUTH_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("skipping postgres identity store tests: HEADERAUTH_TEST_DATABASE_URL not set")
	}

	identitytest.RunStoreTests(t, func(t *testing.T) identity.Store {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		table := "identities_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		s, err := New(ctx, dsn, WithTable(table))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := s.EnsureSchema(ctx); err != nil {
			t.Fatalf("EnsureSchema: %v", err)
		}
		t.Cleanup(func() {
			_ = s.DropSchema(context.Background())
			s.Close()
		})
		return s
	})
}
