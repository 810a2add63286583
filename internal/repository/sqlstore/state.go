// Package sqlstore persists the session collection through database/sql,
// using SQLite for single-node installs and MySQL for shared ones.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Rrens/swift-assistant/internal/domain"
	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Dialect holds the statements that differ between engines
type Dialect struct {
	Name   string
	Schema string
	Upsert string
	Select string
}

var (
	SQLite = Dialect{
		Name: "sqlite",
		Schema: `CREATE TABLE IF NOT EXISTS chat_state (
			namespace  TEXT PRIMARY KEY,
			payload    BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		Upsert: `INSERT INTO chat_state (namespace, payload, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(namespace) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		Select: `SELECT payload FROM chat_state WHERE namespace = ?`,
	}

	MySQL = Dialect{
		Name: "mysql",
		Schema: `CREATE TABLE IF NOT EXISTS chat_state (
			namespace  VARCHAR(255) NOT NULL PRIMARY KEY,
			payload    LONGBLOB NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		Upsert: `INSERT INTO chat_state (namespace, payload, updated_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE payload = VALUES(payload), updated_at = VALUES(updated_at)`,
		Select: `SELECT payload FROM chat_state WHERE namespace = ?`,
	}
)

// StateStorage keeps the session collection in a single-row-per-key table
type StateStorage struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLite opens (creating if needed) a SQLite database at path
func OpenSQLite(ctx context.Context, path string) (*StateStorage, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	return New(ctx, db, SQLite)
}

// OpenMySQL connects to MySQL using a go-sql-driver DSN
func OpenMySQL(ctx context.Context, dsn string) (*StateStorage, error) {
	if dsn == "" {
		return nil, errors.New("mysql dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(5)

	return New(ctx, db, MySQL)
}

// New verifies db and creates the state table when missing
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*StateStorage, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect.Name, err)
	}
	if _, err := db.ExecContext(ctx, dialect.Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create %s schema: %w", dialect.Name, err)
	}
	return &StateStorage{db: db, dialect: dialect}, nil
}

// Load retrieves the payload stored under key
func (s *StateStorage) Load(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, s.dialect.Select, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return payload, nil
}

// Save replaces the payload stored under key
func (s *StateStorage) Save(ctx context.Context, key string, payload []byte) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.Upsert, key, payload, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Ping verifies database connectivity
func (s *StateStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle
func (s *StateStorage) Close() error {
	return s.db.Close()
}
