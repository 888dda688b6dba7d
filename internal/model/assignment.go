package model

import "time"

// AssignmentID identifies one ring edge
type AssignmentID int64

// AssignmentStatus records whether an edge is live and, if not, how it closed
type AssignmentStatus string

const (
	AssignmentCurrent     AssignmentStatus = "CURRENT"
	AssignmentKillSuccess AssignmentStatus = "KILL_SUCCESS"
	AssignmentTargetLeft  AssignmentStatus = "TARGET_LEFT"
	AssignmentReassigned  AssignmentStatus = "REASSIGNED"
	AssignmentGameEnd     AssignmentStatus = "GAME_END"
)

// Assignment is a directed assassin -> target edge of a game's ring
type Assignment struct {
	ID        AssignmentID
	GameID    GameID
	Assassin  PlayerID
	Target    PlayerID
	Status    AssignmentStatus
	StartedAt time.Time
	EndedAt   *time.Time
}

// IsCurrent reports whether the edge is part of the live ring
func (a *Assignment) IsCurrent() bool {
	return a.Status == AssignmentCurrent
}
