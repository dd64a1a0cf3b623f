// Package testing provides shared helpers for argus tests: throwaway
// databases, an in-memory price provider and price series fixtures.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/aristath/argus/internal/database"
)

// NewTestDB opens a throwaway SQLite database in a per-test temp directory.
// The connection is closed automatically when the test finishes.
func NewTestDB(t *testing.T, profile database.DatabaseProfile, name string) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to open %s test database: %v", name, err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
