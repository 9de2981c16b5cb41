package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
)

const (
	driverPostgres = "pgx"
	driverSQLite   = "sqlite"
)

// Queries are written with '?' placeholders and rebound per driver.
func init() {
	sqlx.BindDriver(driverSQLite, sqlx.QUESTION)
}

var ErrDuplicate = errors.New("duplicate record")

// Open connects to Postgres for postgres:// URLs and to SQLite for
// sqlite:// URLs ("sqlite://:memory:" for an in-process database).
func Open(ctx context.Context, databaseURL string) (*sqlx.DB, error) {
	driver, dsn := parseDatabaseURL(databaseURL)
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if driver == driverSQLite {
		// A single connection keeps :memory: databases alive and serialises writers.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys=ON`); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	} else {
		db.SetConnMaxIdleTime(5 * time.Minute)
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetMaxIdleConns(10)
		db.SetMaxOpenConns(20)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

func parseDatabaseURL(databaseURL string) (driver, dsn string) {
	trimmed := strings.TrimSpace(databaseURL)
	switch {
	case strings.HasPrefix(trimmed, "sqlite://"):
		return driverSQLite, strings.TrimPrefix(trimmed, "sqlite://")
	case strings.HasPrefix(trimmed, "sqlite:"):
		return driverSQLite, strings.TrimPrefix(trimmed, "sqlite:")
	default:
		return driverPostgres, trimmed
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		// SQLITE_CONSTRAINT_UNIQUE, SQLITE_CONSTRAINT_PRIMARYKEY
		return liteErr.Code() == 2067 || liteErr.Code() == 1555
	}
	return false
}
