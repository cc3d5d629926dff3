// Package testing provides test helpers shared across packages.
package testing

import (
	"os"
	"testing"

	"github.com/aristath/ecovest/internal/database"
)

// NewTestDB creates a migrated SQLite database in a temporary file. The
// returned cleanup function closes and removes it and is safe to call twice.
func NewTestDB(t *testing.T) (*database.DB, func()) {
	t.Helper()

	// A file rather than :memory: so every pooled connection sees the same data
	tmpFile, err := os.CreateTemp("", "test_ecovest_*.db")
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileStandard,
		Name:    "test",
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	closed := false
	return db, func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database: %v", err)
		}
		for _, suffix := range []string{"", "-wal", "-shm"} {
			_ = os.Remove(tmpPath + suffix)
		}
	}
}
