package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/heartmarshall/labsim/internal/docstore"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var documentColumns = []string{"collection", "id", "data", "created_at", "updated_at"}

// maxModifyAttempts bounds retries when two writers race to create the same
// document.
const maxModifyAttempts = 3

var errCreateRace = errors.New("concurrent create")

type documentRow struct {
	Collection string    `db:"collection"`
	ID         string    `db:"id"`
	Data       []byte    `db:"data"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r documentRow) document() (*docstore.Document, error) {
	var data map[string]any
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", r.Collection, r.ID, err)
	}
	return &docstore.Document{
		Ref:       docstore.Doc(r.Collection, r.ID),
		Data:      data,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

// DocumentRepo stores documents as JSONB rows in the documents table.
// It implements docstore.Backend.
type DocumentRepo struct {
	db DB
	tx *TxManager
}

// NewDocumentRepo creates a DocumentRepo. The caller owns db.
func NewDocumentRepo(db DB) *DocumentRepo {
	return &DocumentRepo{db: db, tx: NewTxManager(db)}
}

// Load implements docstore.Backend.
func (r *DocumentRepo) Load(ctx context.Context, ref docstore.Ref) (*docstore.Document, error) {
	query, args, err := psql.Select(documentColumns...).
		From("documents").
		Where(refEq(ref)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var row documentRow
	if err := pgxscan.Get(ctx, QuerierFromCtx(ctx, r.db), &row, query, args...); err != nil {
		return nil, mapError(err, ref.String())
	}
	return row.document()
}

// Modify implements docstore.Backend. The row is locked with SELECT ... FOR
// UPDATE for the duration of fn. A missing document is inserted with
// ON CONFLICT DO NOTHING; losing that race re-runs fn against the winner.
func (r *DocumentRepo) Modify(ctx context.Context, ref docstore.Ref, fn docstore.ModifyFunc) (bool, error) {
	for attempt := 1; ; attempt++ {
		changed, err := r.modifyOnce(ctx, ref, fn)
		if errors.Is(err, errCreateRace) {
			if attempt < maxModifyAttempts {
				continue
			}
			return false, mapError(err, ref.String())
		}
		return changed, err
	}
}

func (r *DocumentRepo) modifyOnce(ctx context.Context, ref docstore.Ref, fn docstore.ModifyFunc) (bool, error) {
	var changed bool
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		q := QuerierFromCtx(ctx, r.db)

		query, args, err := psql.Select(documentColumns...).
			From("documents").
			Where(refEq(ref)).
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return fmt.Errorf("build select: %w", err)
		}

		var cur *docstore.Document
		var row documentRow
		err = pgxscan.Get(ctx, q, &row, query, args...)
		switch {
		case err == nil:
			if cur, err = row.document(); err != nil {
				return err
			}
		case errors.Is(err, pgx.ErrNoRows):
		default:
			return mapError(err, ref.String())
		}

		next, err := fn(cur)
		if err != nil || next == nil {
			return err
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode %s: %w", ref, err)
		}

		var write sq.Sqlizer
		if cur == nil {
			write = psql.Insert("documents").
				Columns("collection", "id", "data").
				Values(ref.Collection, ref.ID, string(payload)).
				Suffix("ON CONFLICT (collection, id) DO NOTHING")
		} else {
			write = psql.Update("documents").
				Set("data", string(payload)).
				Set("updated_at", sq.Expr("now()")).
				Where(refEq(ref))
		}
		query, args, err = write.ToSql()
		if err != nil {
			return fmt.Errorf("build write: %w", err)
		}

		tag, err := q.Exec(ctx, query, args...)
		if err != nil {
			return mapError(err, ref.String())
		}
		if tag.RowsAffected() == 0 {
			return errCreateRace
		}
		changed = true
		return nil
	})
	return changed, err
}

// Remove implements docstore.Backend.
func (r *DocumentRepo) Remove(ctx context.Context, ref docstore.Ref) error {
	query, args, err := psql.Delete("documents").Where(refEq(ref)).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := QuerierFromCtx(ctx, r.db).Exec(ctx, query, args...); err != nil {
		return mapError(err, ref.String())
	}
	return nil
}

// Find implements docstore.Backend. Scalar equality and array-contains use
// JSONB containment so the GIN index applies; equality on objects or arrays
// compares the whole value. Documents missing the order field sort last
// ascending and first descending.
func (r *DocumentRepo) Find(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	sb := psql.Select(documentColumns...).
		From("documents").
		Where(sq.Eq{"collection": q.Collection})

	for _, f := range q.Filters {
		pred, args, err := filterPredicate(f)
		if err != nil {
			return nil, err
		}
		sb = sb.Where(pred, args...)
	}
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		sb = sb.OrderByClause("data #> ?::text[] "+dir, pathArray(q.OrderBy))
	}
	sb = sb.OrderBy("id ASC")
	if q.Limit > 0 {
		sb = sb.Limit(uint64(q.Limit))
	}

	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []documentRow
	if err := pgxscan.Select(ctx, QuerierFromCtx(ctx, r.db), &rows, query, args...); err != nil {
		return nil, mapError(err, q.Collection)
	}

	docs := make([]docstore.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// Ping implements docstore.Backend.
func (r *DocumentRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Close implements docstore.Backend. The pool is closed by its owner.
func (r *DocumentRepo) Close() error { return nil }

func refEq(ref docstore.Ref) sq.Eq {
	return sq.Eq{"collection": ref.Collection, "id": ref.ID}
}

func filterPredicate(f docstore.Filter) (string, []any, error) {
	value, err := json.Marshal(f.Value)
	if err != nil {
		return "", nil, fmt.Errorf("encode filter %s: %w", f.Field, err)
	}

	switch f.Op {
	case docstore.OpArrayContains:
		doc, err := nestUnder(f.Field, []json.RawMessage{value})
		if err != nil {
			return "", nil, err
		}
		return "data @> ?::jsonb", []any{doc}, nil
	default:
		if len(value) > 0 && (value[0] == '{' || value[0] == '[') {
			return "data #> ?::text[] = ?::jsonb", []any{pathArray(f.Field), string(value)}, nil
		}
		doc, err := nestUnder(f.Field, json.RawMessage(value))
		if err != nil {
			return "", nil, err
		}
		return "data @> ?::jsonb", []any{doc}, nil
	}
}

// nestUnder wraps v in one object per path segment: "a.b" gives {"a":{"b":v}}.
func nestUnder(path string, v any) (string, error) {
	parts := strings.Split(path, ".")
	for i := len(parts) - 1; i >= 0; i-- {
		v = map[string]any{parts[i]: v}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode filter %s: %w", path, err)
	}
	return string(b), nil
}

// pathArray renders a dotted path as a Postgres text[] literal.
func pathArray(path string) string {
	return "{" + strings.Join(strings.Split(path, "."), ",") + "}"
}
