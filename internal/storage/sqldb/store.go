package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mcoot/assassingame/internal/model"
	"github.com/mcoot/assassingame/internal/storage"
)

// Store is a database/sql implementation of the storage interface
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an open database handle
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Ensure Store implements the interface
var _ storage.Storage = (*Store)(nil)

// DB returns the underlying handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the connection pool
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WithTx runs fn in a database transaction, rolling back on error or panic
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.WrapStoreError("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
			return
		}
		if cerr := sqlTx.Commit(); cerr != nil {
			err = model.WrapStoreError("commit transaction", cerr)
		}
	}()

	return fn(ctx, &tx{tx: sqlTx, dialect: s.dialect})
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullPlayerID(id *model.PlayerID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}

func fromNullPlayerID(v sql.NullInt64) *model.PlayerID {
	if !v.Valid {
		return nil
	}
	id := model.PlayerID(v.Int64)
	return &id
}

// placeholders returns "?, ?, ..." with n entries
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// uniqueErrors maps violated constraints to the domain error they represent
var uniqueErrors = map[string]error{
	ConstraintGameCode:         storage.ErrGameCodeTaken,
	ConstraintPlayerUID:        model.ErrAlreadyRegistered,
	ConstraintPlayerGameUnique: model.ErrAlreadyInRequestedGame,
}

type tx struct {
	tx      *sql.Tx
	dialect Dialect
}

var _ storage.Tx = (*tx)(nil)

func (t *tx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.Rebind(query), args...)
}

// classify converts a driver error into a domain error where one applies
func (t *tx) classify(op string, err error, notFound error) error {
	if err == nil {
		return nil
	}
	if notFound != nil && errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	if constraint, ok := t.dialect.UniqueViolation(err); ok {
		if mapped, ok := uniqueErrors[constraint]; ok {
			return mapped
		}
	}
	if t.dialect.Retryable(err) {
		return &model.StoreError{Op: op, Err: fmt.Errorf("%w: %v", model.ErrConcurrentUpdate, err)}
	}
	return model.WrapStoreError(op, err)
}

// Player operations

const playerColumns = "id, nickname, email, uid, role, picture, registered_at"

func scanPlayer(row interface{ Scan(...any) error }) (*model.Player, error) {
	var (
		p            model.Player
		picture      sql.NullString
		registeredAt int64
	)
	if err := row.Scan(&p.ID, &p.Nickname, &p.Email, &p.Subject, &p.Role, &picture, &registeredAt); err != nil {
		return nil, err
	}
	p.Picture = fromNullString(picture)
	p.RegisteredAt = fromMillis(registeredAt)
	return &p, nil
}

func (t *tx) CreatePlayer(ctx context.Context, player *model.Player) error {
	if player.Role == "" {
		player.Role = model.RoleUser
	}
	err := t.queryRow(ctx,
		`INSERT INTO player (nickname, email, uid, role, picture, registered_at)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		player.Nickname, player.Email, player.Subject, string(player.Role),
		nullString(player.Picture), toMillis(player.RegisteredAt),
	).Scan(&player.ID)
	return t.classify("create player", err, nil)
}

func (t *tx) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	p, err := scanPlayer(t.queryRow(ctx, "SELECT "+playerColumns+" FROM player WHERE id = ?", int64(id)))
	if err != nil {
		return nil, t.classify("get player", err, model.ErrNotRegistered)
	}
	return p, nil
}

func (t *tx) GetPlayerBySubject(ctx context.Context, subject string) (*model.Player, error) {
	p, err := scanPlayer(t.queryRow(ctx, "SELECT "+playerColumns+" FROM player WHERE uid = ?", subject))
	if err != nil {
		return nil, t.classify("get player by subject", err, model.ErrNotRegistered)
	}
	return p, nil
}

func (t *tx) LockPlayer(ctx context.Context, id model.PlayerID) error {
	var locked int64
	err := t.queryRow(ctx, "SELECT id FROM player WHERE id = ?"+t.dialect.LockSuffix(), int64(id)).Scan(&locked)
	return t.classify("lock player", err, model.ErrNotRegistered)
}

// Game operations

const gameColumns = "id, name, owner_id, code, status, created_at, started_at, ends_at, winner_id"

func scanGame(row interface{ Scan(...any) error }) (*model.Game, error) {
	var (
		g         model.Game
		name      sql.NullString
		createdAt int64
		startedAt sql.NullInt64
		endsAt    sql.NullInt64
		winner    sql.NullInt64
	)
	if err := row.Scan(&g.ID, &name, &g.Owner, &g.Code, &g.Status, &createdAt, &startedAt, &endsAt, &winner); err != nil {
		return nil, err
	}
	g.Name = name.String
	g.CreatedAt = fromMillis(createdAt)
	g.StartedAt = fromNullMillis(startedAt)
	g.EndsAt = fromNullMillis(endsAt)
	g.Winner = fromNullPlayerID(winner)
	return &g, nil
}

func (t *tx) CreateGame(ctx context.Context, game *model.Game) error {
	var name sql.NullString
	if game.Name != "" {
		name = sql.NullString{String: game.Name, Valid: true}
	}
	err := t.queryRow(ctx,
		`INSERT INTO game (name, owner_id, code, status, created_at, started_at, ends_at, winner_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		name, int64(game.Owner), string(game.Code), string(game.Status), toMillis(game.CreatedAt),
		nullMillis(game.StartedAt), nullMillis(game.EndsAt), nullPlayerID(game.Winner),
	).Scan(&game.ID)
	return t.classify("create game", err, nil)
}

func (t *tx) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	g, err := scanGame(t.queryRow(ctx, "SELECT "+gameColumns+" FROM game WHERE id = ?", int64(id)))
	if err != nil {
		return nil, t.classify("get game", err, model.ErrGameNotFound)
	}
	return g, nil
}

func (t *tx) GetGameByCode(ctx context.Context, code model.GameCode) (*model.Game, error) {
	g, err := scanGame(t.queryRow(ctx, "SELECT "+gameColumns+" FROM game WHERE code = ?", string(code)))
	if err != nil {
		return nil, t.classify("get game by code", err, model.ErrGameNotFound)
	}
	return g, nil
}

func (t *tx) LockGameByCode(ctx context.Context, code model.GameCode) (*model.Game, error) {
	g, err := scanGame(t.queryRow(ctx, "SELECT "+gameColumns+" FROM game WHERE code = ?"+t.dialect.LockSuffix(), string(code)))
	if err != nil {
		return nil, t.classify("lock game", err, model.ErrGameNotFound)
	}
	return g, nil
}

func (t *tx) ShareGameByCode(ctx context.Context, code model.GameCode) (*model.Game, error) {
	g, err := scanGame(t.queryRow(ctx, "SELECT "+gameColumns+" FROM game WHERE code = ?"+t.dialect.ShareLockSuffix(), string(code)))
	if err != nil {
		return nil, t.classify("share game", err, model.ErrGameNotFound)
	}
	return g, nil
}

func (t *tx) UpdateGame(ctx context.Context, game *model.Game) error {
	res, err := t.exec(ctx,
		`UPDATE game SET status = ?, started_at = ?, ends_at = ?, winner_id = ? WHERE id = ?`,
		string(game.Status), nullMillis(game.StartedAt), nullMillis(game.EndsAt), nullPlayerID(game.Winner), int64(game.ID),
	)
	if err != nil {
		return t.classify("update game", err, nil)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrGameNotFound
	}
	return nil
}

func (t *tx) ListExpiredGames(ctx context.Context, now time.Time) ([]model.Game, error) {
	rows, err := t.query(ctx,
		"SELECT "+gameColumns+" FROM game WHERE status = ? AND ends_at IS NOT NULL AND ends_at <= ? ORDER BY id",
		string(model.GameStatusActive), toMillis(now),
	)
	if err != nil {
		return nil, t.classify("list expired games", err, nil)
	}
	defer func() { _ = rows.Close() }()

	var games []model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, t.classify("scan game", err, nil)
		}
		games = append(games, *g)
	}
	return games, t.classify("list expired games", rows.Err(), nil)
}

// Membership operations

const membershipColumns = "player_id, game_id, codename, status, joined_at"

func scanMembership(row interface{ Scan(...any) error }) (*model.Membership, error) {
	var (
		m        model.Membership
		joinedAt int64
	)
	if err := row.Scan(&m.PlayerID, &m.GameID, &m.Codename, &m.Status, &joinedAt); err != nil {
		return nil, err
	}
	m.JoinedAt = fromMillis(joinedAt)
	return &m, nil
}

func (t *tx) CreateMembership(ctx context.Context, m *model.Membership) error {
	_, err := t.exec(ctx,
		`INSERT INTO playergame (player_id, game_id, codename, status, joined_at) VALUES (?, ?, ?, ?, ?)`,
		int64(m.PlayerID), int64(m.GameID), m.Codename, string(m.Status), toMillis(m.JoinedAt),
	)
	return t.classify("create membership", err, nil)
}

func (t *tx) GetMembership(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (*model.Membership, error) {
	m, err := scanMembership(t.queryRow(ctx,
		"SELECT "+membershipColumns+" FROM playergame WHERE game_id = ? AND player_id = ?",
		int64(gameID), int64(playerID),
	))
	if err != nil {
		return nil, t.classify("get membership", err, model.ErrNotInGame)
	}
	return m, nil
}

func (t *tx) ListMemberships(ctx context.Context, gameID model.GameID) ([]model.Membership, error) {
	rows, err := t.query(ctx,
		"SELECT "+membershipColumns+" FROM playergame WHERE game_id = ? ORDER BY joined_at, player_id",
		int64(gameID),
	)
	if err != nil {
		return nil, t.classify("list memberships", err, nil)
	}
	defer func() { _ = rows.Close() }()

	var members []model.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, t.classify("scan membership", err, nil)
		}
		members = append(members, *m)
	}
	return members, t.classify("list memberships", rows.Err(), nil)
}

func (t *tx) GetActiveMembership(ctx context.Context, playerID model.PlayerID) (*model.Membership, error) {
	m, err := scanMembership(t.queryRow(ctx,
		`SELECT pg.player_id, pg.game_id, pg.codename, pg.status, pg.joined_at
		 FROM playergame pg JOIN game g ON g.id = pg.game_id
		 WHERE pg.player_id = ? AND pg.status = ? AND g.status <> ?
		 ORDER BY pg.joined_at DESC LIMIT 1`,
		int64(playerID), string(model.MemberAlive), string(model.GameStatusFinished),
	))
	if err != nil {
		return nil, t.classify("get active membership", err, model.ErrNotInGame)
	}
	return m, nil
}

func (t *tx) UpdateMembershipStatus(ctx context.Context, gameID model.GameID, playerID model.PlayerID, status model.MemberStatus) error {
	res, err := t.exec(ctx,
		"UPDATE playergame SET status = ? WHERE game_id = ? AND player_id = ? AND status = ?",
		string(status), int64(gameID), int64(playerID), string(model.MemberAlive),
	)
	if err != nil {
		return t.classify("update membership", err, nil)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return t.classify("update membership", err, nil)
	}
	if n == 0 {
		return model.ErrNotInGame
	}
	return nil
}

// Assignment operations

const assignmentColumns = "id, game_id, assassin_id, target_id, status, started_at, ended_at"

func scanAssignment(row interface{ Scan(...any) error }) (*model.Assignment, error) {
	var (
		a         model.Assignment
		startedAt int64
		endedAt   sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.GameID, &a.Assassin, &a.Target, &a.Status, &startedAt, &endedAt); err != nil {
		return nil, err
	}
	a.StartedAt = fromMillis(startedAt)
	a.EndedAt = fromNullMillis(endedAt)
	return &a, nil
}

func (t *tx) scanAssignments(rows *sql.Rows, op string) ([]model.Assignment, error) {
	defer func() { _ = rows.Close() }()
	var result []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, t.classify(op, err, nil)
		}
		result = append(result, *a)
	}
	return result, t.classify(op, rows.Err(), nil)
}

func (t *tx) CreateAssignment(ctx context.Context, a *model.Assignment) error {
	err := t.queryRow(ctx,
		`INSERT INTO assignment (game_id, assassin_id, target_id, status, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		int64(a.GameID), int64(a.Assassin), int64(a.Target), string(a.Status), toMillis(a.StartedAt), nullMillis(a.EndedAt),
	).Scan(&a.ID)
	return t.classify("create assignment", err, nil)
}

func (t *tx) GetCurrentAssignment(ctx context.Context, gameID model.GameID, assassin model.PlayerID) (*model.Assignment, error) {
	a, err := scanAssignment(t.queryRow(ctx,
		"SELECT "+assignmentColumns+" FROM assignment WHERE game_id = ? AND assassin_id = ? AND status = ?",
		int64(gameID), int64(assassin), string(model.AssignmentCurrent),
	))
	if err != nil {
		return nil, t.classify("get current assignment", err, model.ErrNoCurrentTarget)
	}
	return a, nil
}

func (t *tx) GetIncomingAssignment(ctx context.Context, gameID model.GameID, target model.PlayerID) (*model.Assignment, error) {
	a, err := scanAssignment(t.queryRow(ctx,
		"SELECT "+assignmentColumns+" FROM assignment WHERE game_id = ? AND target_id = ? AND status = ?",
		int64(gameID), int64(target), string(model.AssignmentCurrent),
	))
	if err != nil {
		return nil, t.classify("get incoming assignment", err, model.ErrNoCurrentTarget)
	}
	return a, nil
}

func (t *tx) LockCurrentAssignments(ctx context.Context, gameID model.GameID, assassins []model.PlayerID) ([]model.Assignment, error) {
	if len(assassins) == 0 {
		return nil, nil
	}
	args := []any{int64(gameID), string(model.AssignmentCurrent)}
	for _, id := range assassins {
		args = append(args, int64(id))
	}
	rows, err := t.query(ctx,
		"SELECT "+assignmentColumns+" FROM assignment WHERE game_id = ? AND status = ? AND assassin_id IN ("+
			placeholders(len(assassins))+") ORDER BY assassin_id"+t.dialect.LockSuffix(),
		args...,
	)
	if err != nil {
		return nil, t.classify("lock assignments", err, nil)
	}
	return t.scanAssignments(rows, "lock assignments")
}

func (t *tx) ListCurrentAssignments(ctx context.Context, gameID model.GameID) ([]model.Assignment, error) {
	rows, err := t.query(ctx,
		"SELECT "+assignmentColumns+" FROM assignment WHERE game_id = ? AND status = ? ORDER BY id",
		int64(gameID), string(model.AssignmentCurrent),
	)
	if err != nil {
		return nil, t.classify("list assignments", err, nil)
	}
	return t.scanAssignments(rows, "list assignments")
}

func (t *tx) CloseAssignment(ctx context.Context, id model.AssignmentID, status model.AssignmentStatus, endedAt time.Time) error {
	res, err := t.exec(ctx,
		"UPDATE assignment SET status = ?, ended_at = ? WHERE id = ? AND status = ?",
		string(status), toMillis(endedAt), int64(id), string(model.AssignmentCurrent),
	)
	if err != nil {
		return t.classify("close assignment", err, nil)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return t.classify("close assignment", err, nil)
	}
	if n == 0 {
		return model.ErrConcurrentUpdate
	}
	return nil
}

func (t *tx) CountKills(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (int, error) {
	var count int
	err := t.queryRow(ctx,
		"SELECT COUNT(*) FROM assignment WHERE game_id = ? AND assassin_id = ? AND status = ?",
		int64(gameID), int64(playerID), string(model.AssignmentKillSuccess),
	).Scan(&count)
	return count, t.classify("count kills", err, nil)
}

func (t *tx) CountLifetimeKills(ctx context.Context, playerID model.PlayerID) (int, error) {
	var count int
	err := t.queryRow(ctx,
		`SELECT COUNT(*) FROM assignment a JOIN game g ON g.id = a.game_id
		 WHERE a.assassin_id = ? AND a.status = ? AND g.status = ?`,
		int64(playerID), string(model.AssignmentKillSuccess), string(model.GameStatusFinished),
	).Scan(&count)
	return count, t.classify("count lifetime kills", err, nil)
}
