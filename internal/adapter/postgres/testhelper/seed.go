package testhelper

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UniqueID returns a short unique string for non-conflicting test data.
func UniqueID(prefix string) string {
	return prefix + "-" + uuid.New().String()[:8]
}

// SeedDocument inserts a raw document row and returns its id.
func SeedDocument(t *testing.T, pool *pgxpool.Pool, collection string, data map[string]any) string {
	t.Helper()

	id := UniqueID(collection)
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("testhelper: SeedDocument encode: %v", err)
	}

	_, err = pool.Exec(context.Background(),
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`,
		collection, id, string(payload),
	)
	if err != nil {
		t.Fatalf("testhelper: SeedDocument insert: %v", err)
	}
	return id
}
