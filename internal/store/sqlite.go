package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go driver, no cgo

	"proxylog/internal/model"
	"proxylog/internal/util/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
    pos INTEGER PRIMARY KEY,
    uuid TEXT NOT NULL UNIQUE,
    seq INTEGER NOT NULL,
    data TEXT NOT NULL
);
`

// SQLiteStore keeps records in a single SQLite table. pos is the 1-based
// insertion position.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path in WAL mode.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	logx.Infof("store: sqlite at %s", path)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, recs ...model.Record) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(pos), 0) + 1 FROM records`).Scan(&next); err != nil {
		return 0, fmt.Errorf("next position: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO records (pos, uuid, seq, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, r := range recs {
		if r.Sequence == 0 {
			r.Sequence = next
		}
		data, err := json.Marshal(r)
		if err != nil {
			return 0, fmt.Errorf("encode %s: %w", r.UUID, err)
		}
		res, err := stmt.ExecContext(ctx, next, r.UUID, r.Sequence, string(data))
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", r.UUID, err)
		}
		if k, _ := res.RowsAffected(); k > 0 {
			next++
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Scan(ctx context.Context, from int, fn func(model.Record) bool) error {
	if from < 0 {
		from = 0
	}
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM records WHERE pos > ? ORDER BY pos`, from)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		var r model.Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return fmt.Errorf("decode row: %w", err)
		}
		if !fn(r) {
			return nil
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, uuid string) (model.Record, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM records WHERE uuid = ?`, uuid).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, false, nil
	}
	if err != nil {
		return model.Record{}, false, fmt.Errorf("get %s: %w", uuid, err)
	}
	var r model.Record
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return model.Record{}, false, fmt.Errorf("decode %s: %w", uuid, err)
	}
	return r, true, nil
}

func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
