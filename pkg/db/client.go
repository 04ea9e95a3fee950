package db

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/acaifrutal/storefront-backend/pkg/config"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const sqliteDialect = "sqlite"

// sqlitePragmas are appended to sqlite DSNs that do not set them already.
var sqlitePragmas = []string{"_busy_timeout=5000", "_foreign_keys=on", "_journal_mode=WAL"}

// Client wraps the shared GORM connection.
type Client struct {
	conn *gorm.DB
}

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New opens and pings the database. When useSQLite is set the DSN is a sqlite
// file path (or file: URI), which keeps local runs free of a postgres server.
func New(ctx context.Context, cfg config.DBConfig, useSQLite bool, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	var dialector gorm.Dialector
	if useSQLite {
		dialector = sqlite.Open(SQLiteDSN(cfg.DSN))
		// One writer at a time; extra connections only produce SQLITE_BUSY.
		cfg.MaxOpenConns, cfg.MaxIdleConns = 1, 1
	} else {
		dialector = postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		})
	}

	conn, err := gorm.Open(dialector, gormConfig())
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	applyPoolSettings(sqlDB, cfg)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logg.Info(logg.WithField(ctx, "dialect", conn.Dialector.Name()), "database connection established")
	return &Client{conn: conn}, nil
}

// Wrap adapts an already opened connection.
func Wrap(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

// SQLiteDSN adds busy timeout, foreign keys and WAL to a sqlite DSN unless the
// caller already set them. In-memory databases skip WAL.
func SQLiteDSN(dsn string) string {
	var add []string
	for _, pragma := range sqlitePragmas {
		key := pragma[:strings.Index(pragma, "=")+1]
		if strings.Contains(dsn, key) {
			continue
		}
		if key == "_journal_mode=" && strings.Contains(dsn, "mode=memory") {
			continue
		}
		add = append(add, pragma)
	}
	if len(add) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	return dsn + sep + strings.Join(add, "&")
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.New(
			log.New(io.Discard, "", log.LstdFlags),
			gormlogger.Config{LogLevel: gormlogger.Silent},
		),
		SkipDefaultTransaction: true,
	}
}

func applyPoolSettings(sqlDB *sql.DB, cfg config.DBConfig) {
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

// DB returns the underlying GORM connection.
func (c *Client) DB() *gorm.DB {
	return c.conn
}

// IsSQLite reports whether the connection runs on the sqlite driver.
func (c *Client) IsSQLite() bool {
	return c.conn != nil && c.conn.Dialector.Name() == sqliteDialect
}

// Ping verifies the datasource is reachable.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close shuts down the pooled connections.
func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in a transaction on the client's connection. See Transact.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return Transact(ctx, c.conn, fn)
}

// txAttempts bounds retries of a transaction aborted by IsTransient errors.
const txAttempts = 3

// Transact runs fn in a transaction, rolling back on error or panic. A
// transaction aborted by a deadlock, a serialization failure or a busy sqlite
// file is retried with a short backoff.
func Transact(ctx context.Context, conn *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err = conn.WithContext(ctx).Transaction(fn)
		if err == nil || !IsTransient(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt) * 25 * time.Millisecond):
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", txAttempts, err)
}
