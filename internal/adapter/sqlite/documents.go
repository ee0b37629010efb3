// Package sqlite is a single-node docstore backend on the pure Go SQLite
// driver. Documents are JSON text rows; scalar filters are pushed down with
// json_extract and json_each, ordering happens in Go.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (collection, id)
)`

var documentColumns = []string{"collection", "id", "data", "created_at", "updated_at"}

type documentRow struct {
	Collection string `db:"collection"`
	ID         string `db:"id"`
	Data       string `db:"data"`
	CreatedAt  string `db:"created_at"`
	UpdatedAt  string `db:"updated_at"`
}

// Store implements docstore.Backend on a SQLite file.
type Store struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Open opens (or creates) the database at path. ":memory:" keeps everything
// in process.
func Open(ctx context.Context, path string, clock clockwork.Clock) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA journal_mode = WAL`,
		schema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{db: db, clock: clock}, nil
}

// Load implements docstore.Backend.
func (s *Store) Load(ctx context.Context, ref docstore.Ref) (*docstore.Document, error) {
	return s.load(ctx, s.db, ref)
}

func (s *Store) load(ctx context.Context, q sqlscan.Querier, ref docstore.Ref) (*docstore.Document, error) {
	query, args, err := sq.Select(documentColumns...).
		From("documents").
		Where(sq.Eq{"collection": ref.Collection, "id": ref.ID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var row documentRow
	if err := sqlscan.Get(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", ref, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", ref, err)
	}
	return row.document()
}

// Modify implements docstore.Backend.
func (s *Store) Modify(ctx context.Context, ref docstore.Ref, fn docstore.ModifyFunc) (changed bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil || !changed {
			_ = tx.Rollback()
		}
	}()

	cur, err := s.load(ctx, tx, ref)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	next, err := fn(cur)
	if err != nil || next == nil {
		return false, err
	}
	payload, err := json.Marshal(next)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", ref, err)
	}

	now := docstore.FormatTimestamp(s.clock.Now())
	query, args, err := sq.Insert("documents").
		Columns(documentColumns...).
		Values(ref.Collection, ref.ID, string(payload), now, now).
		Suffix("ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build upsert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return false, fmt.Errorf("%s: %w", ref, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}
	return true, nil
}

// Remove implements docstore.Backend.
func (s *Store) Remove(ctx context.Context, ref docstore.Ref) error {
	query, args, err := sq.Delete("documents").
		Where(sq.Eq{"collection": ref.Collection, "id": ref.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", ref, err)
	}
	return nil
}

// Find implements docstore.Backend.
func (s *Store) Find(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	sb := sq.Select(documentColumns...).
		From("documents").
		Where(sq.Eq{"collection": q.Collection})
	for _, f := range q.Filters {
		if pred, arg, ok := pushdown(f); ok {
			sb = sb.Where(pred, arg)
		}
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []documentRow
	if err := sqlscan.Select(ctx, s.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}

	docs := make([]docstore.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.document()
		if err != nil {
			return nil, err
		}
		if q.Matches(doc.Data) {
			docs = append(docs, *doc)
		}
	}
	return docstore.SortDocuments(docs, q), nil
}

// Ping implements docstore.Backend.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close implements docstore.Backend.
func (s *Store) Close() error { return s.db.Close() }

// pushdown narrows string filters in SQL. Everything else is matched in Go.
func pushdown(f docstore.Filter) (string, any, bool) {
	v, ok := f.Value.(string)
	if !ok {
		return "", nil, false
	}
	path := "$." + f.Field
	if strings.ContainsAny(f.Field, `'"`) {
		return "", nil, false
	}
	switch f.Op {
	case docstore.OpEqual:
		return "json_extract(data, '" + path + "') = ?", v, true
	case docstore.OpArrayContains:
		return "EXISTS (SELECT 1 FROM json_each(data, '" + path + "') WHERE json_each.value = ?)", v, true
	}
	return "", nil, false
}

func (r documentRow) document() (*docstore.Document, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(r.Data), &data); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", r.Collection, r.ID, err)
	}
	created, err := time.Parse(docstore.TimestampLayout, r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s created_at: %w", r.Collection, r.ID, err)
	}
	updated, err := time.Parse(docstore.TimestampLayout, r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s updated_at: %w", r.Collection, r.ID, err)
	}
	return &docstore.Document{
		Ref:       docstore.Doc(r.Collection, r.ID),
		Data:      data,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}
