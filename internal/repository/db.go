package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Database bundles an open connection with the user store built on it.
type Database struct {
	Driver string
	Users  UserStore

	// sqlDB is a database/sql handle for migrations. For PostgreSQL it wraps the pgx pool.
	sqlDB *sql.DB
	pool  *pgxpool.Pool
}

// Open connects to the database selected by driver and builds its user store.
func Open(ctx context.Context, driver, dsn string) (*Database, error) {
	switch driver {
	case DriverPostgres:
		pool, err := NewPostgresPool(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return &Database{
			Driver: driver,
			Users:  NewPostgresUserRepository(pool),
			sqlDB:  stdlib.OpenDBFromPool(pool),
			pool:   pool,
		}, nil
	case DriverMySQL:
		db, err := NewMySQLDB(dsn)
		if err != nil {
			return nil, err
		}
		return &Database{
			Driver: driver,
			Users:  NewMySQLUserRepository(db),
			sqlDB:  db,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Migrate applies all pending schema migrations for the open driver.
func (d *Database) Migrate(ctx context.Context) error {
	return Migrate(ctx, d.sqlDB, d.Driver)
}

// Close releases the underlying connections.
func (d *Database) Close() error {
	err := d.sqlDB.Close()
	if d.pool != nil {
		d.pool.Close()
	}
	return err
}

// NewPostgresPool creates a new PostgreSQL connection pool with the given DSN.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = 25
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		slog.Warn("database ping failed, continuing without DB", "driver", DriverPostgres, "error", err)
	}

	return pool, nil
}

// NewMySQLDB creates a new MySQL database connection pool with the given DSN.
// parseTime and clientFoundRows are always enabled.
func NewMySQLDB(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("create mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		slog.Warn("database ping failed, continuing without DB", "driver", DriverMySQL, "error", err)
	}

	return db, nil
}
