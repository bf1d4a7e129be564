// Package testutil provides shared test helpers for setting up galleries and databases.
package testutil

import (
	"os"
	"testing"

	"github.com/inkhorn/easel/internal/catalog"
	"github.com/inkhorn/easel/internal/storage"
)

// TestDB creates a temporary SQLite catalog that is automatically cleaned up.
func TestDB(t *testing.T) *catalog.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "easel-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := catalog.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestGallery creates a temporary gallery directory with a storage.Provider.
func TestGallery(t *testing.T) (string, storage.Provider) {
	t.Helper()
	galleryDir := t.TempDir()
	store, err := storage.NewFS(galleryDir)
	if err != nil {
		t.Fatal(err)
	}
	return galleryDir, store
}
