package model

import "time"

// PlayerID uniquely identifies a player across the system
type PlayerID int64

// Role is a player's privilege level
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Player is a registered participant, keyed to an external auth subject
type Player struct {
	ID           PlayerID
	Nickname     string
	Email        string
	Subject      string // external auth subject (immutable)
	Role         Role
	Picture      *string
	RegisteredAt time.Time
}

// Identity is a verified caller produced by the auth layer.
// It is passed explicitly into every game operation.
type Identity struct {
	Subject string
	Email   string
}
