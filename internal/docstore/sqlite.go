package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/model"
)

const defaultFindLimit = 100

// SQLiteStore implements Store using SQLite. Documents are stored as JSON
// bodies keyed by id; filters beyond the id are evaluated in Go, which is
// acceptable for the bounded collections this tier holds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id         TEXT PRIMARY KEY,
		body       TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Insert(ctx context.Context, doc model.Record) error {
	id := doc.ID()
	if id == "" {
		return fmt.Errorf("insert document: missing %s", model.FieldID)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", id, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, body, created_at) VALUES (?, ?, ?)`,
		id, string(body), model.Now())
	if err != nil {
		return fmt.Errorf("insert document %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) FindOne(ctx context.Context, filter model.Record) (model.Record, bool, error) {
	docs, err := s.match(ctx, filter, 1)
	if err != nil {
		return nil, false, err
	}
	if len(docs) == 0 {
		return nil, false, nil
	}
	return docs[0], true, nil
}

func (s *SQLiteStore) UpdateOne(ctx context.Context, filter, patch model.Record) (int, error) {
	doc, ok, err := s.FindOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	doc.Merge(patch)
	body, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("encode document %s: %w", doc.ID(), err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET body = ? WHERE id = ?`, string(body), doc.ID())
	if err != nil {
		return 0, fmt.Errorf("update document %s: %w", doc.ID(), err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) DeleteOne(ctx context.Context, filter model.Record) (int, error) {
	doc, ok, err := s.FindOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, doc.ID())
	if err != nil {
		return 0, fmt.Errorf("delete document %s: %w", doc.ID(), err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) Find(ctx context.Context, filter model.Record, limit int) ([]model.Record, error) {
	if limit <= 0 {
		limit = defaultFindLimit
	}
	return s.match(ctx, filter, limit)
}

// match runs the filter. An id filter hits the primary key; anything else
// walks the collection in insertion order and matches decoded bodies.
func (s *SQLiteStore) match(ctx context.Context, filter model.Record, limit int) ([]model.Record, error) {
	if id := filter.ID(); id != "" && len(filter) == 1 {
		var body string
		err := s.db.QueryRowContext(ctx,
			`SELECT body FROM documents WHERE id = ?`, id).Scan(&body)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("query document %s: %w", id, err)
		}
		doc, err := decodeBody(body)
		if err != nil {
			return nil, err
		}
		return []model.Record{doc}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM documents ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []model.Record
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		doc, err := decodeBody(body)
		if err != nil {
			return nil, err
		}
		if doc.Matches(filter) {
			docs = append(docs, doc)
			if len(docs) >= limit {
				break
			}
		}
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeBody(body string) (model.Record, error) {
	var doc model.Record
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
