package session

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteBackend SQLiteファイルに保存するBackend
// modernc.org/sqlite（CGo不要）を使用します。
type SQLiteBackend struct {
	db       *sql.DB
	dbPath   string
	logger   *zap.Logger
	mu       sync.Mutex
	initOnce sync.Once
	initErr  error
}

// NewSQLiteBackend 新しいSQLiteBackendを作成。Init を呼ぶまでファイルは開かない
func NewSQLiteBackend(dbPath string, logger *zap.Logger) *SQLiteBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteBackend{dbPath: dbPath, logger: logger}
}

// Init ディレクトリ作成、DBオープン、マイグレーションを行う
func (s *SQLiteBackend) Init() error {
	s.initOnce.Do(func() {
		if err := os.MkdirAll(filepath.Dir(s.dbPath), 0o700); err != nil {
			s.initErr = fmt.Errorf("failed to create session db directory: %w", err)
			return
		}

		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			s.initErr = fmt.Errorf("failed to open session database: %w", err)
			return
		}
		// 単一ファイルへの書き込み競合を避ける
		db.SetMaxOpenConns(1)

		if err := db.Ping(); err != nil {
			db.Close()
			s.initErr = fmt.Errorf("failed to ping session database: %w", err)
			return
		}
		s.db = db

		if err := s.runMigrations(); err != nil {
			s.initErr = fmt.Errorf("failed to run session migrations: %w", err)
			return
		}
		s.logger.Debug("session database ready", zap.String("path", s.dbPath))
	})
	return s.initErr
}

// migration 単一のスキーマ変更
type migration struct {
	version int
	name    string
	stmt    string
}

var migrations = []migration{
	{
		version: 1,
		name:    "client_state",
		stmt: `CREATE TABLE IF NOT EXISTS client_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	},
}

func (s *SQLiteBackend) runMigrations() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return err
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return err
	}

	for _, m := range migrations {
		if current >= m.version {
			continue
		}
		s.logger.Info("running session migration", zap.Int("version", m.version), zap.String("name", m.name))
		if _, err := s.db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteBackend) ready() error {
	if err := s.Init(); err != nil {
		return err
	}
	if s.db == nil {
		return errors.New("session database is closed")
	}
	return nil
}

func (s *SQLiteBackend) Get(key string) (string, bool, error) {
	if err := s.ready(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM client_state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteBackend) Set(key, value string) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO client_state (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteBackend) Delete(key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM client_state WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close DB接続を閉じる
func (s *SQLiteBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
