package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	kindBool   = "bool"
	kindString = "string"
	kindInt    = "int"
)

// SqliteStore stores all keys in a single SQLite database.
//
// Tables:
//
//	kv(key, kind, value)  PRIMARY KEY (key)
//
// kind is one of "bool", "string", "int"; value is the text form.
type SqliteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// read returns the raw text stored under key, checking its kind.
func (s *SqliteStore) read(ctx context.Context, key, kind string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var gotKind, raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT kind, value FROM kv WHERE key = ?", key,
	).Scan(&gotKind, &raw)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if gotKind != kind {
		return "", true, ErrWrongType
	}
	return raw, true, nil
}

func (s *SqliteStore) write(ctx context.Context, key, kind, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, kind, value) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET kind = excluded.kind, value = excluded.value`,
		key, kind, value,
	)
	return err
}

func (s *SqliteStore) GetBool(ctx context.Context, key string) (bool, bool, error) {
	raw, ok, err := s.read(ctx, key, kindBool)
	if err != nil || !ok {
		return false, ok, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, true, ErrWrongType
	}
	return v, true, nil
}

func (s *SqliteStore) SetBool(ctx context.Context, key string, v bool) error {
	return s.write(ctx, key, kindBool, strconv.FormatBool(v))
}

func (s *SqliteStore) GetString(ctx context.Context, key string) (string, bool, error) {
	return s.read(ctx, key, kindString)
}

func (s *SqliteStore) SetString(ctx context.Context, key string, v string) error {
	return s.write(ctx, key, kindString, v)
}

func (s *SqliteStore) GetInt(ctx context.Context, key string) (int64, bool, error) {
	raw, ok, err := s.read(ctx, key, kindInt)
	if err != nil || !ok {
		return 0, ok, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, true, ErrWrongType
	}
	return v, true, nil
}

func (s *SqliteStore) SetInt(ctx context.Context, key string, v int64) error {
	return s.write(ctx, key, kindInt, strconv.FormatInt(v, 10))
}

func (s *SqliteStore) Remove(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SqliteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM kv ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, rows.Err()
}

var _ Store = (*SqliteStore)(nil)
