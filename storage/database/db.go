package database

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/trezcool/roster/core"
)

// driverNames maps a storage driver to its database/sql driver name.
var driverNames = map[core.StorageDriver]string{
	core.StorageSQLite:   "sqlite",
	core.StoragePostgres: "postgres",
}

// sqliteDSN turns a file path into a DSN with foreign keys enforced.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Open connects to the configured SQL database, waits for it to answer and
// creates the roster tables when missing.
func Open(ctx context.Context, conf core.StorageConfig) (*sqlx.DB, error) {
	driverName, ok := driverNames[conf.Driver]
	if !ok {
		return nil, errors.Errorf("%q is not an SQL storage driver", conf.Driver)
	}

	dsn := conf.DSN
	if conf.Driver == core.StorageSQLite {
		dsn = sqliteDSN(conf.Path)
	}
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if conf.Driver == core.StorageSQLite {
		// one writer; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	}

	if err = ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = CreateSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.PingContext(ctx)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "DB ping canceled")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// schema is valid for both sqlite and postgres.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		pk    TEXT PRIMARY KEY,
		id    TEXT NOT NULL UNIQUE,
		name  TEXT NOT NULL,
		age   INTEGER NOT NULL,
		email TEXT NOT NULL,
		seq   INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS instructors (
		pk    TEXT PRIMARY KEY,
		id    TEXT NOT NULL UNIQUE,
		name  TEXT NOT NULL,
		age   INTEGER NOT NULL,
		email TEXT NOT NULL,
		seq   INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS courses (
		pk            TEXT PRIMARY KEY,
		id            TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL,
		instructor_id TEXT NULL REFERENCES instructors (id) ON DELETE SET NULL,
		seq           INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS enrollments (
		seq        INTEGER NOT NULL,
		student_id TEXT NOT NULL REFERENCES students (id) ON DELETE CASCADE,
		course_id  TEXT NOT NULL REFERENCES courses (id) ON DELETE CASCADE,
		UNIQUE (student_id, course_id)
	)`,
}

// CreateSchema creates the roster tables if they do not exist yet.
func CreateSchema(ctx context.Context, exec core.DBExecutor) error {
	for _, stmt := range schema {
		if _, err := exec.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "creating schema")
		}
	}
	return nil
}

// InTx runs fn in a transaction, committed when fn returns nil and rolled back otherwise.
func InTx(ctx context.Context, db core.DB, fn func(tx core.DBExecutor) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}
