// Package testutil provides shared test helpers for setting up vault stores.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/docvault/internal/storage"
)

// TestStore creates a storage.FS over a temporary base directory.
func TestStore(t *testing.T, opts ...storage.Option) *storage.FS {
	t.Helper()
	store, err := storage.NewFS(t.TempDir(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// HostFile writes content to a file outside any vault and returns its path.
func HostFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}
