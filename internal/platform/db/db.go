package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"access-bot-backend/internal/common/logger"
)

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Debug           bool
}

// Client owns the GORM handle and its underlying pool.
type Client struct {
	gorm    *gorm.DB
	sql     *sql.DB
	dialect string
}

// Open connects to the store named by dsn. postgres:// and postgresql://
// go through lib/pq; sqlite://<path> and file: DSNs use the pure-Go SQLite driver.
func Open(ctx context.Context, dsn string, opts Options) (*Client, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty database DSN")
	}

	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	if opts.Debug {
		gcfg.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	var (
		gdb     *gorm.DB
		sqlDB   *sql.DB
		dialect string
		err     error
	)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		dialect = "postgres"
		sqlDB, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// Настройка пула соединений
		if opts.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
		}
		if opts.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
		}
		gdb, err = gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gcfg)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to init gorm: %w", err)
		}
	case strings.HasPrefix(dsn, "sqlite://"), strings.HasPrefix(dsn, "file:"):
		dialect = "sqlite"
		gdb, err = gorm.Open(sqlite.Open(sqliteDSN(dsn)), gcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		sqlDB, err = gdb.DB()
		if err != nil {
			return nil, err
		}
		// SQLite has a single writer; one connection serialises statements
		// instead of surfacing SQLITE_BUSY to callers.
		sqlDB.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("unsupported database DSN scheme")
	}

	// Проверяем соединение
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().Str("dialect", dialect).Msg("Database client initialized")
	return &Client{gorm: gdb, sql: sqlDB, dialect: dialect}, nil
}

func sqliteDSN(dsn string) string {
	path := strings.TrimPrefix(dsn, "sqlite://")
	if strings.Contains(path, "busy_timeout") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)"
}

// Gorm returns the GORM handle used by repositories.
func (c *Client) Gorm() *gorm.DB {
	return c.gorm
}

// Dialect is "postgres" or "sqlite".
func (c *Client) Dialect() string {
	return c.dialect
}

// HealthCheck проверяет здоровье базы данных
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.sql.PingContext(ctx)
}

// Close закрывает соединение с базой данных
func (c *Client) Close() error {
	return c.sql.Close()
}
