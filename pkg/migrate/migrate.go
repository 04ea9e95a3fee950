package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"
	"sync"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are written and validated from the repo root.
const DefaultDir = "pkg/migrate/migrations"

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Source tells goose where to read migrations from. A nil FS reads Dir from disk.
type Source struct {
	FS  fs.FS
	Dir string
}

// Embedded returns the migrations compiled into the binary.
func Embedded() Source {
	return Source{FS: embedded, Dir: "migrations"}
}

// Disk reads migrations from dir on the local filesystem.
func Disk(dir string) Source {
	return Source{Dir: dir}
}

// goose keeps its dialect and base FS in package state.
var gooseMu sync.Mutex

func withGoose(dialect string, src Source, fn func() error) error {
	if src.Dir == "" {
		return fmt.Errorf("dir is required")
	}
	if dialect == "" {
		dialect = DialectPostgres
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetBaseFS(src.FS)
	defer goose.SetBaseFS(nil)
	return fn()
}

// Run executes a standard goose command (up, down, status, redo...).
func Run(ctx context.Context, db *sql.DB, dialect string, src Source, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	return withGoose(dialect, src, func() error {
		// RunContext prints status output to stdout (goose internal)
		if err := goose.RunContext(ctx, command, db, src.Dir, args...); err != nil {
			return fmt.Errorf("goose %s: %w", command, err)
		}
		return nil
	})
}

// MigrateToVersion migrates up or down to the requested version.
func MigrateToVersion(ctx context.Context, db *sql.DB, dialect string, src Source, targetVersion string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	return withGoose(dialect, src, func() error {
		current, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		switch {
		case current == target:
			return nil
		case current < target:
			if err := goose.UpToContext(ctx, db, src.Dir, target); err != nil {
				return fmt.Errorf("goose up-to %d: %w", target, err)
			}
		default:
			if err := goose.DownToContext(ctx, db, src.Dir, target); err != nil {
				return fmt.Errorf("goose down-to %d: %w", target, err)
			}
		}
		return nil
	})
}

// CurrentVersion reports the latest applied migration version.
func CurrentVersion(ctx context.Context, db *sql.DB, dialect string) (int64, error) {
	if db == nil {
		return 0, fmt.Errorf("db is required")
	}
	var version int64
	err := withGoose(dialect, Embedded(), func() error {
		v, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}
