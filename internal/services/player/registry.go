package player

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mcoot/assassingame/internal/dependencies/clock"
	"github.com/mcoot/assassingame/internal/model"
	"github.com/mcoot/assassingame/internal/storage"
)

// MaxNicknameLength bounds stored nicknames
const MaxNicknameLength = 64

// Registry maps verified identities to players
type Registry struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates a new Registry
func New(storage storage.Storage, clock clock.Clock, logger *slog.Logger) *Registry {
	return &Registry{
		storage: storage,
		clock:   clock,
		logger:  logger.With(slog.String("component", "player")),
	}
}

// Register creates the player for an identity.
// An empty nickname falls back to the local part of the email.
func (r *Registry) Register(ctx context.Context, identity model.Identity, nickname string) (*model.Player, error) {
	player := &model.Player{
		Nickname:     normalizeNickname(nickname, identity.Email),
		Email:        identity.Email,
		Subject:      identity.Subject,
		Role:         model.RoleUser,
		RegisteredAt: r.clock.Now(),
	}

	err := r.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.CreatePlayer(ctx, player)
	})
	if err != nil {
		if model.Code(err) == model.CodeDatabaseError {
			r.logger.Error("failed to register player",
				slog.String("subject", identity.Subject),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	r.logger.Info("player registered",
		slog.Int64("player_id", int64(player.ID)),
		slog.String("nickname", player.Nickname),
	)
	return player, nil
}

// Me returns the player registered for an identity
func (r *Registry) Me(ctx context.Context, identity model.Identity) (*model.Player, error) {
	var player *model.Player
	err := r.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		player, err = r.Resolve(ctx, tx, identity)
		return err
	})
	return player, err
}

// Resolve maps an identity to its player inside an existing transaction
func (r *Registry) Resolve(ctx context.Context, tx storage.Tx, identity model.Identity) (*model.Player, error) {
	if identity.Subject == "" {
		return nil, model.ErrNotRegistered
	}
	return r.FindBySubject(ctx, tx, identity.Subject)
}

// FindByID looks up a player by id
func (r *Registry) FindByID(ctx context.Context, tx storage.Tx, id model.PlayerID) (*model.Player, error) {
	return tx.GetPlayer(ctx, id)
}

// FindBySubject looks up a player by identity subject
func (r *Registry) FindBySubject(ctx context.Context, tx storage.Tx, subject string) (*model.Player, error) {
	return tx.GetPlayerBySubject(ctx, subject)
}

func normalizeNickname(nickname, email string) string {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		nickname, _, _ = strings.Cut(email, "@")
	}
	if runes := []rune(nickname); len(runes) > MaxNicknameLength {
		nickname = string(runes[:MaxNicknameLength])
	}
	return nickname
}
