// Package sqlite opens the SQLite-backed store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mcoot/assassingame/internal/storage/sqldb"
	"github.com/mcoot/assassingame/internal/storage/sqlite/migrations"
)

// constraintColumns maps SQLite's "table.column" violation text to canonical constraint names
var constraintColumns = map[string]string{
	"game.code":                                sqldb.ConstraintGameCode,
	"player.uid":                               sqldb.ConstraintPlayerUID,
	"playergame.player_id, playergame.game_id": sqldb.ConstraintPlayerGameUnique,
}

// Open opens a SQLite database file and applies embedded migrations.
// A single connection is used so transactions are fully serialized.
func Open(ctx context.Context, path string) (*sqldb.Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	dialect := Dialect{}
	if err := sqldb.ApplyMigrations(ctx, db, dialect, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return sqldb.New(db, dialect), nil
}

// Dialect adapts shared queries to SQLite
type Dialect struct{}

var _ sqldb.Dialect = Dialect{}

func (Dialect) Name() string {
	return "sqlite"
}

// Rebind is the identity; SQLite accepts ? placeholders
func (Dialect) Rebind(query string) string {
	return query
}

// LockSuffix is empty; the single connection already serializes transactions
func (Dialect) LockSuffix() string {
	return ""
}

func (Dialect) ShareLockSuffix() string {
	return ""
}

func (Dialect) UniqueViolation(err error) (string, bool) {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return "", false
	}
	code := sqliteErr.Code()
	if code != sqlite3.SQLITE_CONSTRAINT_UNIQUE && code != sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
		return "", false
	}
	return constraintFromMessage(sqliteErr.Error()), true
}

func (Dialect) Retryable(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code() & 0xff
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}

// constraintFromMessage extracts the violated columns from
// "... UNIQUE constraint failed: game.code (2067)"
func constraintFromMessage(msg string) string {
	const marker = "constraint failed: "
	idx := strings.LastIndex(msg, marker)
	if idx == -1 {
		return ""
	}
	cols := msg[idx+len(marker):]
	if paren := strings.LastIndex(cols, " ("); paren != -1 {
		cols = cols[:paren]
	}
	cols = strings.TrimSpace(cols)
	if name, ok := constraintColumns[cols]; ok {
		return name
	}
	return cols
}
