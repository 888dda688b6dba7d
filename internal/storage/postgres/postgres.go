// Package postgres opens the Postgres-backed store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/mcoot/assassingame/internal/storage/postgres/migrations"
	"github.com/mcoot/assassingame/internal/storage/sqldb"
)

// Postgres error codes
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// Config holds Postgres connection settings
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultConfig returns sensible pool defaults
func DefaultConfig() Config {
	return Config{
		DSN:             "postgres://localhost:5432/assassin?sslmode=disable",
		MaxOpenConns:    25,
		MaxIdleConns:    25,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  5 * time.Second,
	}
}

// Open connects, verifies the connection, and applies migrations
func Open(ctx context.Context, cfg Config) (*sqldb.Store, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create database handle: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database within %v: %w", cfg.ConnectTimeout, err)
	}

	dialect := Dialect{}
	if err := sqldb.ApplyMigrations(ctx, db, dialect, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return sqldb.New(db, dialect), nil
}

// Dialect adapts shared queries to Postgres
type Dialect struct{}

var _ sqldb.Dialect = Dialect{}

func (Dialect) Name() string {
	return "postgres"
}

// Rebind numbers ? placeholders as $1, $2, ...
func (Dialect) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (Dialect) LockSuffix() string {
	return " FOR UPDATE"
}

// ShareLockSuffix takes KEY SHARE rather than SHARE so a holder can still
// run a plain UPDATE on the game while other kills hold the same lock
func (Dialect) ShareLockSuffix() string {
	return " FOR KEY SHARE"
}

func (Dialect) UniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != codeUniqueViolation {
		return "", false
	}
	return pqErr.Constraint, true
}

func (Dialect) Retryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	}
	return false
}
