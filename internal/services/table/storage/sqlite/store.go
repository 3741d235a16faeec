package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/tablesync/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/tablesync/internal/services/table/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

const defaultProfile = "default"

// Store persists credentials in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens a SQLite credential store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Token returns the stored bearer token, or "" when none is stored.
func (s *Store) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.sqlDB == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	var token string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT token FROM credentials WHERE profile = ?`, defaultProfile,
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	return token, nil
}

// PutToken stores token, replacing any previous one.
func (s *Store) PutToken(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO credentials (profile, token, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(profile) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		defaultProfile, token, s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put token: %w", err)
	}
	return nil
}

// ClearToken removes the stored token.
func (s *Store) ClearToken(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM credentials WHERE profile = ?`, defaultProfile); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}
