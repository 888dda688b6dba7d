package model

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable identifier surfaced to API callers
type ErrorCode string

const (
	CodeAlreadyInAnotherGame   ErrorCode = "ALREADY_IN_ANOTHER_GAME"
	CodeAlreadyInRequestedGame ErrorCode = "ALREADY_IN_REQUESTED_GAME"
	CodeNotInGame              ErrorCode = "NOT_IN_GAME"
	CodeGameNotStarted         ErrorCode = "GAME_NOT_STARTED"
	CodeGameNotFound           ErrorCode = "GAME_NOT_FOUND"
	CodeNoCurrentTarget        ErrorCode = "NO_CURRENT_TARGET"
	CodeAlreadyRegistered      ErrorCode = "ALREADY_REGISTERED"
	CodeNotRegistered          ErrorCode = "NOT_REGISTERED"
	CodeNotGameOwner           ErrorCode = "NOT_GAME_OWNER"
	CodeGameAlreadyStarted     ErrorCode = "GAME_ALREADY_STARTED"
	CodeNotEnoughPlayers       ErrorCode = "NOT_ENOUGH_PLAYERS"
	CodeGameNotOver            ErrorCode = "GAME_NOT_OVER"
	CodeGameFinished           ErrorCode = "GAME_FINISHED"
	CodeDatabaseError          ErrorCode = "DATABASE_ERROR"
	CodeUnknown                ErrorCode = "UNKNOWN"
)

// DomainError is a rule violation with a stable code.
// Domain errors are never retried automatically.
type DomainError struct {
	Code    ErrorCode
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func newDomainError(code ErrorCode, msg string) *DomainError {
	return &DomainError{Code: code, Message: msg}
}

// Domain errors
var (
	// Player errors
	ErrAlreadyRegistered = newDomainError(CodeAlreadyRegistered, "player is already registered")
	ErrNotRegistered     = newDomainError(CodeNotRegistered, "player is not registered")

	// Membership errors
	ErrAlreadyInAnotherGame   = newDomainError(CodeAlreadyInAnotherGame, "player is already in an active game")
	ErrAlreadyInRequestedGame = newDomainError(CodeAlreadyInRequestedGame, "player has already joined this game")
	ErrNotInGame              = newDomainError(CodeNotInGame, "player is not in the requested game")

	// Game errors
	ErrGameNotFound       = newDomainError(CodeGameNotFound, "game not found")
	ErrGameNotStarted     = newDomainError(CodeGameNotStarted, "game has not started yet")
	ErrGameAlreadyStarted = newDomainError(CodeGameAlreadyStarted, "game has already started")
	ErrGameFinished       = newDomainError(CodeGameFinished, "game is finished")
	ErrGameNotOver        = newDomainError(CodeGameNotOver, "game end time has not been reached")
	ErrNotGameOwner       = newDomainError(CodeNotGameOwner, "player is not the game owner")
	ErrNotEnoughPlayers   = newDomainError(CodeNotEnoughPlayers, "at least two players are needed to start")

	// Ring errors
	ErrNoCurrentTarget = newDomainError(CodeNoCurrentTarget, "player doesn't currently have a target")
)

// Infrastructure errors
var (
	// ErrConcurrentUpdate means a locked ring edge no longer matched what was read before locking.
	// Safe to retry.
	ErrConcurrentUpdate = errors.New("ring was modified concurrently")

	// ErrRingCorrupted means the CURRENT edges no longer form a valid cycle. This is a bug.
	ErrRingCorrupted = errors.New("assignment ring is inconsistent")
)

// StoreError wraps a failure from the persistent store
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// WrapStoreError wraps err as a StoreError unless it is nil or already a domain error
func WrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) || errors.Is(err, ErrConcurrentUpdate) || errors.Is(err, ErrRingCorrupted) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// Code converts an error to its stable code. nil maps to the empty code.
func Code(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	if errors.Is(err, ErrConcurrentUpdate) {
		return CodeDatabaseError
	}
	var se *StoreError
	if errors.As(err, &se) {
		return CodeDatabaseError
	}
	return CodeUnknown
}
