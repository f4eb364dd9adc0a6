package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/mysql/*.sql
var migrationFS embed.FS

// goose keeps its base FS and dialect in package globals.
var migrateMu sync.Mutex

// Migrate applies the embedded migrations for driver to db.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	if driver != DriverPostgres && driver != DriverMySQL {
		return fmt.Errorf("unsupported database driver %q", driver)
	}

	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrationFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(driver); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, path.Join("migrations", driver)); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
