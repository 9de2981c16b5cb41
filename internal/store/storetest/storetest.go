// Package storetest opens throwaway SQLite-backed stores for tests.
package storetest

import (
	"context"
	"testing"

	"concierge/api/internal/store"
)

// New returns a migrated store backed by a private in-memory database.
func New(t testing.TB) *store.SQLStore {
	t.Helper()

	ctx := context.Background()
	db, err := store.Open(ctx, "sqlite://:memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := store.ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return store.NewSQLStore(db)
}

// SeedClient inserts a user-less client and returns its id.
func SeedClient(t testing.TB, s *store.SQLStore, id string) string {
	t.Helper()
	if err := s.InsertClient(context.Background(), store.Client{ID: id, FamilyName: "Family " + id}); err != nil {
		t.Fatalf("seed client %s: %v", id, err)
	}
	return id
}

// SeedTemplate inserts a template with the given id, category and position.
func SeedTemplate(t testing.TB, s *store.SQLStore, id, category string, order int, required bool) store.Template {
	t.Helper()
	item := store.Template{
		ID:         id,
		Title:      "Task " + id,
		Category:   category,
		OrderNum:   order,
		IsRequired: required,
		Description: store.Description{
			{Text: "About " + id},
		},
	}
	if err := s.InsertTemplate(context.Background(), item); err != nil {
		t.Fatalf("seed template %s: %v", id, err)
	}
	return item
}
