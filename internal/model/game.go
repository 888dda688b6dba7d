package model

import "time"

// GameID uniquely identifies a game
type GameID int64

// GameCode is the human-shareable join code for a game
type GameCode string

// GameStatus represents the lifecycle phase of a game
type GameStatus string

const (
	GameStatusWaiting  GameStatus = "WAITING_FOR_PLAYERS"
	GameStatusActive   GameStatus = "ACTIVE"
	GameStatusFinished GameStatus = "FINISHED"
	GameStatusPaused   GameStatus = "PAUSED" // reserved, no transitions
)

// Game is a single round of the elimination game
type Game struct {
	ID        GameID
	Name      string // optional display name
	Owner     PlayerID
	Code      GameCode
	Status    GameStatus
	CreatedAt time.Time
	StartedAt *time.Time
	EndsAt    *time.Time // scheduled end while active, actual end once finished
	Winner    *PlayerID
}

// IsOwner reports whether the given player owns the game
func (g *Game) IsOwner(id PlayerID) bool {
	return g.Owner == id
}

// HasEnded reports whether the scheduled end time has elapsed
func (g *Game) HasEnded(now time.Time) bool {
	return g.EndsAt != nil && !now.Before(*g.EndsAt)
}
