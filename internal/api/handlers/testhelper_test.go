package handlers

import (
	"testing"

	"sift/internal/pipeline"
	"sift/internal/storage"
)

// newTestStore creates an in-memory SQLite store with migrations applied.
// The database is closed when the test completes.
func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	db, err := storage.OpenDatabase(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := storage.RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	return storage.NewStore(db)
}

// newIdleRunner wires a Runner over the store with no sources, evaluators,
// or channels. Runs complete immediately and produce an empty digest.
func newIdleRunner(t *testing.T, store *storage.Store) *pipeline.Runner {
	t.Helper()

	return pipeline.New(pipeline.Options{
		Store:   store,
		DataDir: t.TempDir(),
	})
}
