package membership

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/assassingame/internal/dependencies/clock"
	"github.com/mcoot/assassingame/internal/model"
	"github.com/mcoot/assassingame/internal/services/idgen"
	"github.com/mcoot/assassingame/internal/storage"
)

// Ledger manages player×game membership rows.
// Every method runs inside the caller's transaction.
type Ledger struct {
	generator *idgen.Generator
	clock     clock.Clock
	logger    *slog.Logger
}

// New creates a new Ledger
func New(generator *idgen.Generator, clock clock.Clock, logger *slog.Logger) *Ledger {
	return &Ledger{
		generator: generator,
		clock:     clock,
		logger:    logger.With(slog.String("component", "membership")),
	}
}

// EnsureAvailable fails with ErrAlreadyInAnotherGame if the player is ALIVE in
// another unfinished game, or ErrAlreadyInRequestedGame if that game is gameID.
// The player row is locked so concurrent joins by one player serialize here.
func (l *Ledger) EnsureAvailable(ctx context.Context, tx storage.Tx, playerID model.PlayerID, gameID model.GameID) error {
	if err := tx.LockPlayer(ctx, playerID); err != nil {
		return err
	}
	active, err := tx.GetActiveMembership(ctx, playerID)
	switch {
	case errors.Is(err, model.ErrNotInGame):
		return nil
	case err != nil:
		return err
	case active.GameID == gameID:
		return model.ErrAlreadyInRequestedGame
	default:
		return model.ErrAlreadyInAnotherGame
	}
}

// Join adds the player to a game that is still waiting for players
func (l *Ledger) Join(ctx context.Context, tx storage.Tx, game *model.Game, playerID model.PlayerID) (*model.Membership, error) {
	if err := l.EnsureAvailable(ctx, tx, playerID, game.ID); err != nil {
		return nil, err
	}

	switch game.Status {
	case model.GameStatusWaiting:
	case model.GameStatusFinished:
		return nil, model.ErrGameFinished
	default:
		return nil, model.ErrGameAlreadyStarted
	}

	members, err := tx.ListMemberships(ctx, game.ID)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(members))
	for _, m := range members {
		if m.PlayerID == playerID {
			// Rows are never duplicated, even after leaving
			return nil, model.ErrAlreadyInRequestedGame
		}
		taken[m.Codename] = true
	}

	m := &model.Membership{
		PlayerID: playerID,
		GameID:   game.ID,
		Codename: l.generator.UniqueCodename(taken),
		Status:   model.MemberAlive,
		JoinedAt: l.clock.Now(),
	}
	if err := tx.CreateMembership(ctx, m); err != nil {
		return nil, err
	}

	l.logger.Debug("player joined game",
		slog.Int64("game_id", int64(game.ID)),
		slog.Int64("player_id", int64(playerID)),
	)
	return m, nil
}

// Leave flips an ALIVE membership to LEFT_GAME. Ring repair is the caller's job.
func (l *Ledger) Leave(ctx context.Context, tx storage.Tx, game *model.Game, playerID model.PlayerID) (*model.Membership, error) {
	m, err := tx.GetMembership(ctx, game.ID, playerID)
	if err != nil {
		return nil, err
	}
	if game.Status == model.GameStatusFinished {
		return nil, model.ErrGameFinished
	}
	if !m.IsAlive() {
		return nil, model.ErrNotInGame
	}
	if err := tx.UpdateMembershipStatus(ctx, game.ID, playerID, model.MemberLeftGame); err != nil {
		return nil, err
	}
	m.Status = model.MemberLeftGame
	return m, nil
}

// MarkDead flips an ALIVE membership to DEAD
func (l *Ledger) MarkDead(ctx context.Context, tx storage.Tx, gameID model.GameID, playerID model.PlayerID) error {
	return tx.UpdateMembershipStatus(ctx, gameID, playerID, model.MemberDead)
}

// Get returns the player's membership row in any status
func (l *Ledger) Get(ctx context.Context, tx storage.Tx, gameID model.GameID, playerID model.PlayerID) (*model.Membership, error) {
	return tx.GetMembership(ctx, gameID, playerID)
}

// IsMember reports whether the player has ever joined the game
func (l *Ledger) IsMember(ctx context.Context, tx storage.Tx, gameID model.GameID, playerID model.PlayerID) (bool, error) {
	_, err := tx.GetMembership(ctx, gameID, playerID)
	if errors.Is(err, model.ErrNotInGame) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AliveMembers returns ALIVE members in join order
func (l *Ledger) AliveMembers(ctx context.Context, tx storage.Tx, gameID model.GameID) ([]model.Membership, error) {
	members, err := tx.ListMemberships(ctx, gameID)
	if err != nil {
		return nil, err
	}
	alive := members[:0]
	for _, m := range members {
		if m.IsAlive() {
			alive = append(alive, m)
		}
	}
	return alive, nil
}

// AliveCount returns the number of ALIVE members
func (l *Ledger) AliveCount(ctx context.Context, tx storage.Tx, gameID model.GameID) (int, error) {
	alive, err := l.AliveMembers(ctx, tx, gameID)
	if err != nil {
		return 0, err
	}
	return len(alive), nil
}
