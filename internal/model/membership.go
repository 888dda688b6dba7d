package model

import "time"

// MemberStatus is a player's standing within a game.
// ALIVE may move to DEAD or LEFT_GAME; neither of those ever changes again.
type MemberStatus string

const (
	MemberAlive    MemberStatus = "ALIVE"
	MemberDead     MemberStatus = "DEAD"
	MemberLeftGame MemberStatus = "LEFT_GAME"
)

// Membership links a player to a game
type Membership struct {
	PlayerID PlayerID
	GameID   GameID
	Codename string
	Status   MemberStatus
	JoinedAt time.Time
}

// IsAlive reports whether the member is still in play
func (m *Membership) IsAlive() bool {
	return m.Status == MemberAlive
}
