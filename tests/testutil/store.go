package testutil

import (
	"testing"

	"github.com/99designs/keyring"

	"github.com/nhle/storefront/internal/credential"
	"github.com/nhle/storefront/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewTestKeyring returns a credential.Keyring held entirely in memory.
func NewTestKeyring(t *testing.T) *credential.Keyring {
	t.Helper()
	return credential.New(keyring.NewArrayKeyring(nil))
}
