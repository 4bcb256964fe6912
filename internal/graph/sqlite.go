package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore emulates a property graph on two tables: nodes keyed by
// (label, key) with JSON properties, and edges keyed by both endpoints.
type SQLiteStore struct {
	db *sql.DB
}

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.ensureTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureTables(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS constraints (
  label TEXT NOT NULL PRIMARY KEY,
  key_field TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS nodes (
  label TEXT NOT NULL,
  key TEXT NOT NULL,
  props TEXT NOT NULL DEFAULT '{}',
  PRIMARY KEY (label, key)
);
CREATE TABLE IF NOT EXISTS edges (
  label TEXT NOT NULL,
  from_label TEXT NOT NULL,
  from_key TEXT NOT NULL,
  to_label TEXT NOT NULL,
  to_key TEXT NOT NULL,
  PRIMARY KEY (label, from_label, from_key, to_label, to_key)
);
CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_label, to_key, label);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create graph tables: %w", err)
	}
	return nil
}

func (s *SQLiteStore) EnsureUniqueConstraint(ctx context.Context, label, keyField string) error {
	if err := checkIdentifiers(label, keyField); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO constraints (label, key_field) VALUES (?, ?)
ON CONFLICT(label) DO NOTHING;
`, label, keyField); err != nil {
		return fmt.Errorf("create constraint %s.%s: %w", label, keyField, err)
	}

	var existing string
	if err := s.db.QueryRowContext(ctx, `SELECT key_field FROM constraints WHERE label = ?`, label).Scan(&existing); err != nil {
		return fmt.Errorf("read constraint %s: %w", label, err)
	}
	if existing != keyField {
		return fmt.Errorf("label %s already keyed by %s", label, existing)
	}
	return nil
}

func (s *SQLiteStore) UpsertNode(ctx context.Context, label, keyField, keyValue string, attrs map[string]any) error {
	return upsertNode(ctx, s.db, label, keyField, keyValue, attrs)
}

func (s *SQLiteStore) UpsertEdge(ctx context.Context, edgeLabel, fromLabel, fromKey, toLabel, toKey string) error {
	return upsertEdge(ctx, s.db, edgeLabel, fromLabel, fromKey, toLabel, toKey)
}

func (s *SQLiteStore) UpsertNodes(ctx context.Context, label, keyField string, rows []NodeRow) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, row := range rows {
			if err := upsertNode(ctx, tx, label, keyField, row.Key, row.Attrs); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) UpsertEdges(ctx context.Context, edgeLabel, fromLabel, toLabel string, rows []EdgeRow) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, row := range rows {
			if err := upsertEdge(ctx, tx, edgeLabel, fromLabel, row.From, toLabel, row.To); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func upsertNode(ctx context.Context, q sqlQuerier, label, keyField, keyValue string, attrs map[string]any) error {
	var registered string
	err := q.QueryRowContext(ctx, `SELECT key_field FROM constraints WHERE label = ?`, label).Scan(&registered)
	if err == sql.ErrNoRows || (err == nil && registered != keyField) {
		return fmt.Errorf("%w: %s.%s", ErrUnknownLabel, label, keyField)
	}
	if err != nil {
		return fmt.Errorf("read constraint %s: %w", label, err)
	}

	props, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", label, keyValue, err)
	}
	if _, err := q.ExecContext(ctx, `
INSERT INTO nodes (label, key, props) VALUES (?, ?, json(?))
ON CONFLICT(label, key) DO UPDATE SET props = json_patch(nodes.props, excluded.props);
`, label, keyValue, string(props)); err != nil {
		return fmt.Errorf("upsert %s %s: %w", label, keyValue, err)
	}
	return nil
}

func upsertEdge(ctx context.Context, q sqlQuerier, edgeLabel, fromLabel, fromKey, toLabel, toKey string) error {
	var endpoints int
	if err := q.QueryRowContext(ctx, `
SELECT (SELECT COUNT(*) FROM nodes WHERE label = ? AND key = ?)
     + (SELECT COUNT(*) FROM nodes WHERE label = ? AND key = ?);
`, fromLabel, fromKey, toLabel, toKey).Scan(&endpoints); err != nil {
		return fmt.Errorf("check endpoints: %w", err)
	}
	if endpoints < 2 {
		return fmt.Errorf("%w: %s %s -> %s %s", ErrMissingEndpoint, fromLabel, fromKey, toLabel, toKey)
	}

	if _, err := q.ExecContext(ctx, `
INSERT INTO edges (label, from_label, from_key, to_label, to_key)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(label, from_label, from_key, to_label, to_key) DO NOTHING;
`, edgeLabel, fromLabel, fromKey, toLabel, toKey); err != nil {
		return fmt.Errorf("upsert edge %s -> %s: %w", fromKey, toKey, err)
	}
	return nil
}

func (s *SQLiteStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	rows, err := s.db.QueryContext(ctx, `SELECT label, key, props FROM nodes ORDER BY label, key`)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var n Node
		var props string
		if err := rows.Scan(&n.Label, &n.Key, &props); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		if err := json.Unmarshal([]byte(props), &n.Props); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", n.Label, n.Key, err)
		}
		snap.Nodes = append(snap.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}

	edgeRows, err := s.db.QueryContext(ctx, `
SELECT label, from_label, from_key, to_label, to_key FROM edges
ORDER BY from_key, to_key`)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var e Edge
		if err := edgeRows.Scan(&e.Label, &e.FromLabel, &e.FromKey, &e.ToLabel, &e.ToKey); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		snap.Edges = append(snap.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}

	snap.sort()
	return snap, nil
}

func (s *SQLiteStore) Close(ctx context.Context) error {
	return s.db.Close()
}
