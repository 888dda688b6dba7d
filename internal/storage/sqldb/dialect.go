// Package sqldb implements the storage interface on database/sql.
// Queries are written once with ? placeholders; a Dialect adapts them to
// the target database and classifies driver errors.
package sqldb

// Canonical names for the unique constraints in both schemas
const (
	ConstraintGameCode         = "game_code_key"
	ConstraintPlayerUID        = "player_uid_key"
	ConstraintPlayerGameUnique = "playergame_player_game_key"
)

// Dialect captures the differences between supported databases
type Dialect interface {
	// Name identifies the dialect in logs
	Name() string

	// Rebind rewrites ? placeholders into the database's native form
	Rebind(query string) string

	// LockSuffix is appended to SELECTs that must lock the rows they return
	LockSuffix() string

	// ShareLockSuffix is appended to SELECTs that must keep a row from being
	// exclusively locked while still letting other sharers update non-key columns
	ShareLockSuffix() string

	// UniqueViolation reports the canonical constraint name if err is a unique violation
	UniqueViolation(err error) (string, bool)

	// Retryable reports whether err is a transient conflict (serialization failure, deadlock, busy)
	Retryable(err error) bool
}
