package model

import "time"

// Read models returned by game queries. Nothing here exposes a player's
// target to anyone but that player.

// GameStatusInfo is the public status of a game
type GameStatusInfo struct {
	Code   GameCode
	Name   string
	Status GameStatus
}

// MemberInfo is a member as seen by other members of the game
type MemberInfo struct {
	Nickname string
	Picture  *string
	Status   MemberStatus
}

// GameInfo describes a game and its roster
type GameInfo struct {
	Code          GameCode
	Name          string
	Status        GameStatus
	OwnerNickname string
	Members       []MemberInfo
	StartedAt     *time.Time
	EndsAt        *time.Time
	Winner        *string // nickname
}

// CodenameInfo is one entry of a game's codename board
type CodenameInfo struct {
	Codename string
	Status   MemberStatus
}

// TargetInfo identifies an agent's current target
type TargetInfo struct {
	Nickname string
	Picture  *string
}

// AgentInfo is a member's private view of their own standing
type AgentInfo struct {
	Codename string
	Alive    bool
	Target   *TargetInfo // nil when no CURRENT edge exists
	Kills    int
}

// UserInfo summarises a player across games
type UserInfo struct {
	ActiveGame *GameCode
	Kills      int // lifetime kills across finished games
}

// KillResult is returned to an assassin after a confirmed kill
type KillResult struct {
	VictimCodename string
	Target         *TargetInfo // next target, nil once the game is over
	GameOver       bool
}
