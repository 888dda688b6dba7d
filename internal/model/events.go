package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	EventPlayerJoined     EventType = "player_joined"
	EventPlayerLeft       EventType = "player_left"
	EventGameStarted      EventType = "game_started"
	EventPlayerEliminated EventType = "player_eliminated"
	EventGameFinished     EventType = "game_finished"
)

// Event is published to game subscribers after a transaction commits.
// Payloads carry codenames only.
type Event struct {
	Type      EventType `json:"type"`
	GameCode  GameCode  `json:"game_code"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// PlayerJoinedPayload contains data for player joined events
type PlayerJoinedPayload struct {
	Codename string `json:"codename"`
}

// PlayerLeftPayload contains data for player left events
type PlayerLeftPayload struct {
	Codename string `json:"codename"`
}

// GameStartedPayload contains data for game started events
type GameStartedPayload struct {
	Players int       `json:"players"`
	EndsAt  time.Time `json:"ends_at"`
}

// PlayerEliminatedPayload contains data for elimination events
type PlayerEliminatedPayload struct {
	Codename string `json:"codename"`
	Alive    int    `json:"alive"`
}

// GameFinishedPayload contains data for game finished events
type GameFinishedPayload struct {
	Winner string `json:"winner,omitempty"` // codename, empty when nobody won
	Reason string `json:"reason"`
}

// Reasons a game finished
const (
	FinishReasonLastStanding = "last_standing"
	FinishReasonStopped      = "stopped"
	FinishReasonExpired      = "expired"
	FinishReasonCancelled    = "cancelled"
)
