package store

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"index-backtest/internal/config"
)

// Store 封装运行记录所用的 SQLite 连接。
type Store struct {
	db *sql.DB
}

// NewSQLite 打开运行记录库。文件库启用 WAL，内存库固定为单连接。
func NewSQLite(cfg config.DatabaseConfig) (*Store, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: 打开 SQLite 数据库失败: %w", err)
	}

	// 内存库每个连接都是独立的数据库
	if cfg.InMemory {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
	} else {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("store: 连接 SQLite 数据库失败: %w", err)
	}

	return &Store{db: conn}, nil
}

// buildDSN 组装连接串；窗口结果依赖外键级联删除。
func buildDSN(cfg config.DatabaseConfig) (string, error) {
	params := url.Values{}
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "on")

	if cfg.InMemory {
		return ":memory:?" + params.Encode(), nil
	}
	if cfg.Path == "" {
		return "", errors.New("store: 未配置数据库路径")
	}
	if err := ensureDir(filepath.Dir(cfg.Path)); err != nil {
		return "", err
	}
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	return cfg.Path + "?" + params.Encode(), nil
}

// DB 返回底层 *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("store: 创建目录 %q 失败: %w", path, err)
	}
	return nil
}
