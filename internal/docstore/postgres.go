package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps documents in a single jsonb table keyed by (collection, id).
type PostgresStore struct {
	Pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore over an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Pool: pool}
}

func (s *PostgresStore) ready() error {
	if s == nil || s.Pool == nil {
		return errors.New("docstore: postgres pool not configured")
	}
	return nil
}

// Get loads a single document into dst.
func (s *PostgresStore) Get(ctx context.Context, collection, id string, dst any) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := checkPath(collection, id); err != nil {
		return err
	}
	var data []byte
	err := s.Pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return Document{ID: id, Data: data}.Decode(dst)
}

// Query returns every document in the collection matching all filters, ordered by id.
// Filters are pushed down as jsonb containment so the GIN index can serve them.
func (s *PostgresStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	sql := `SELECT id, data FROM documents WHERE collection = $1`
	args := []any{collection}
	if len(filters) > 0 {
		contains := make(map[string]any, len(filters))
		for _, f := range filters {
			contains[f.Field] = f.Value
		}
		encoded, err := json.Marshal(contains)
		if err != nil {
			return nil, fmt.Errorf("docstore: encode filters: %w", err)
		}
		sql += ` AND data @> $2::jsonb`
		args = append(args, string(encoded))
	}
	sql += ` ORDER BY id`
	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		// Re-check in Go so both stores share the same equality rules.
		if !matches(data, filters) {
			continue
		}
		docs = append(docs, Document{ID: id, Data: data})
	}
	return docs, rows.Err()
}

// Set writes doc under id, replacing it unless Merge is given.
func (s *PostgresStore) Set(ctx context.Context, collection, id string, doc any, opts ...SetOption) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := checkPath(collection, id); err != nil {
		return err
	}
	data, err := encode(doc)
	if err != nil {
		return err
	}
	conflict := `data = EXCLUDED.data`
	if applySetOptions(opts).merge {
		conflict = `data = documents.data || EXCLUDED.data`
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (collection, id) DO UPDATE SET `+conflict+`, updated_at = now()`,
		collection, id, string(data),
	)
	return err
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := checkPath(collection, id); err != nil {
		return err
	}
	_, err := s.Pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	return err
}

// Add stores doc under a fresh UUID and returns the id.
func (s *PostgresStore) Add(ctx context.Context, collection string, doc any) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	if strings.TrimSpace(collection) == "" {
		return "", ErrInvalidPath
	}
	data, err := encode(doc)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = s.Pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`,
		collection, id, string(data),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Update applies fn inside one transaction holding a per-document advisory
// lock, which also covers ids that do not exist yet and so cannot be locked
// with FOR UPDATE. A nil value from fn deletes the document.
func (s *PostgresStore) Update(ctx context.Context, collection, id string, fn UpdateFunc) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := checkPath(collection, id); err != nil {
		return err
	}
	if fn == nil {
		return errors.New("docstore: update func is required")
	}
	err := pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, collection+"/"+id); err != nil {
			return err
		}
		var current []byte
		exists := true
		err := tx.QueryRow(ctx,
			`SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
			collection, id,
		).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			exists = false
		} else if err != nil {
			return err
		}
		next, err := fn(Document{ID: id, Data: current}, exists)
		if err != nil {
			return err
		}
		if next == nil {
			_, err = tx.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
			return err
		}
		data, err := encode(next)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO documents (collection, id, data, updated_at)
			VALUES ($1, $2, $3::jsonb, now())
			ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
			collection, id, string(data),
		)
		return err
	})
	if errors.Is(err, ErrSkip) {
		return nil
	}
	return err
}

// Ping checks connectivity for readiness probes.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.Pool.Ping(ctx)
}
