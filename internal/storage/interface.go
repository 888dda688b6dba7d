package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mcoot/assassingame/internal/model"
)

// ErrGameCodeTaken is returned by CreateGame when the code collides with an existing game.
// Callers regenerate the code and retry in a fresh transaction.
var ErrGameCodeTaken = errors.New("game code already in use")

// Storage defines the interface for data persistence.
// All reads and writes go through a transaction.
type Storage interface {
	// WithTx runs fn in one transaction, committing if fn returns nil
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Close releases the underlying connection pool
	Close() error
}

// Tx is the set of operations available inside a transaction
type Tx interface {
	// Player operations
	CreatePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	GetPlayerBySubject(ctx context.Context, subject string) (*model.Player, error)
	// LockPlayer serializes membership changes for one player
	LockPlayer(ctx context.Context, id model.PlayerID) error

	// Game operations
	CreateGame(ctx context.Context, game *model.Game) error
	GetGame(ctx context.Context, id model.GameID) (*model.Game, error)
	GetGameByCode(ctx context.Context, code model.GameCode) (*model.Game, error)
	// LockGameByCode fetches a game and holds its row until commit
	LockGameByCode(ctx context.Context, code model.GameCode) (*model.Game, error)
	// ShareGameByCode fetches a game and blocks LockGameByCode on it until commit,
	// without blocking other sharers or their updates to the game
	ShareGameByCode(ctx context.Context, code model.GameCode) (*model.Game, error)
	UpdateGame(ctx context.Context, game *model.Game) error
	ListExpiredGames(ctx context.Context, now time.Time) ([]model.Game, error)

	// Membership operations
	CreateMembership(ctx context.Context, m *model.Membership) error
	GetMembership(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (*model.Membership, error)
	ListMemberships(ctx context.Context, gameID model.GameID) ([]model.Membership, error)
	// GetActiveMembership returns the player's ALIVE membership in a non-finished game
	GetActiveMembership(ctx context.Context, playerID model.PlayerID) (*model.Membership, error)
	// UpdateMembershipStatus moves an ALIVE member to a terminal status
	UpdateMembershipStatus(ctx context.Context, gameID model.GameID, playerID model.PlayerID, status model.MemberStatus) error

	// Assignment operations
	CreateAssignment(ctx context.Context, a *model.Assignment) error
	GetCurrentAssignment(ctx context.Context, gameID model.GameID, assassin model.PlayerID) (*model.Assignment, error)
	GetIncomingAssignment(ctx context.Context, gameID model.GameID, target model.PlayerID) (*model.Assignment, error)
	// LockCurrentAssignments locks the CURRENT edges leaving the given assassins in ascending assassin order
	LockCurrentAssignments(ctx context.Context, gameID model.GameID, assassins []model.PlayerID) ([]model.Assignment, error)
	ListCurrentAssignments(ctx context.Context, gameID model.GameID) ([]model.Assignment, error)
	// CloseAssignment ends a CURRENT edge; ErrConcurrentUpdate if it was not CURRENT
	CloseAssignment(ctx context.Context, id model.AssignmentID, status model.AssignmentStatus, endedAt time.Time) error
	CountKills(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (int, error)
	CountLifetimeKills(ctx context.Context, playerID model.PlayerID) (int, error)
}
