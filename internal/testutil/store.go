// Package testutil provides shared helpers for package tests: a temporary
// SQLite store, a recording event bus and fixtures for domain objects.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/HerbHall/peeringmanager/internal/store"
)

// NewStore opens a fresh SQLite store in t.TempDir and closes it on cleanup.
func NewStore(t testing.TB) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("testutil.NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
