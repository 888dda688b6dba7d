package game

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mcoot/assassingame/internal/model"
	"github.com/mcoot/assassingame/internal/storage"
)

// Read-only queries. Each runs in one transaction for a consistent snapshot.

// Status returns a game's public status. No membership is required.
func (c *Controller) Status(ctx context.Context, code model.GameCode) (_ *model.GameStatusInfo, err error) {
	ctx, span := c.start(ctx, "Status", attribute.String("game.code", string(code)))
	defer func() { err = c.done(span, "status", err, slog.String("game_code", string(code))) }()

	var info *model.GameStatusInfo
	err = c.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		game, err := tx.GetGameByCode(ctx, code)
		if err != nil {
			return err
		}
		info = &model.GameStatusInfo{Code: game.Code, Name: game.Name, Status: game.Status}
		return nil
	})
	return info, err
}

// memberView resolves the caller and the game, requiring a membership row in any status
func (c *Controller) memberView(ctx context.Context, tx storage.Tx, identity model.Identity, code model.GameCode) (*model.Game, *model.Membership, error) {
	p, err := c.players.Resolve(ctx, tx, identity)
	if err != nil {
		return nil, nil, err
	}
	game, err := tx.GetGameByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	m, err := c.ledger.Get(ctx, tx, game.ID, p.ID)
	if err != nil {
		return nil, nil, err
	}
	return game, m, nil
}

// GameInfo returns the roster with nicknames. Members only.
func (c *Controller) GameInfo(ctx context.Context, identity model.Identity, code model.GameCode) (_ *model.GameInfo, err error) {
	ctx, span := c.start(ctx, "GameInfo", attribute.String("game.code", string(code)))
	defer func() { err = c.done(span, "game_info", err, slog.String("game_code", string(code))) }()

	var info *model.GameInfo
	err = c.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		game, _, err := c.memberView(ctx, tx, identity, code)
		if err != nil {
			return err
		}
		owner, err := c.players.FindByID(ctx, tx, game.Owner)
		if err != nil {
			return err
		}
		members, err := tx.ListMemberships(ctx, game.ID)
		if err != nil {
			return err
		}

		info = &model.GameInfo{
			Code:          game.Code,
			Name:          game.Name,
			Status:        game.Status,
			OwnerNickname: owner.Nickname,
			Members:       make([]model.MemberInfo, 0, len(members)),
			StartedAt:     game.StartedAt,
			EndsAt:        game.EndsAt,
		}
		for _, m := range members {
			p, err := c.players.FindByID(ctx, tx, m.PlayerID)
			if err != nil {
				return err
			}
			info.Members = append(info.Members, model.MemberInfo{Nickname: p.Nickname, Picture: p.Picture, Status: m.Status})
			if game.Winner != nil && *game.Winner == m.PlayerID {
				info.Winner = &p.Nickname
			}
		}
		return nil
	})
	return info, err
}

// Codenames returns every member's codename and status. Members only.
func (c *Controller) Codenames(ctx context.Context, identity model.Identity, code model.GameCode) (_ []model.CodenameInfo, err error) {
	ctx, span := c.start(ctx, "Codenames", attribute.String("game.code", string(code)))
	defer func() { err = c.done(span, "codenames", err, slog.String("game_code", string(code))) }()

	var result []model.CodenameInfo
	err = c.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		game, _, err := c.memberView(ctx, tx, identity, code)
		if err != nil {
			return err
		}
		members, err := tx.ListMemberships(ctx, game.ID)
		if err != nil {
			return err
		}
		result = make([]model.CodenameInfo, 0, len(members))
		for _, m := range members {
			result = append(result, model.CodenameInfo{Codename: m.Codename, Status: m.Status})
		}
		return nil
	})
	return result, err
}

// AgentInfo returns the caller's codename, standing, current target and kills
func (c *Controller) AgentInfo(ctx context.Context, identity model.Identity, code model.GameCode) (_ *model.AgentInfo, err error) {
	ctx, span := c.start(ctx, "AgentInfo", attribute.String("game.code", string(code)))
	defer func() { err = c.done(span, "agent_info", err, slog.String("game_code", string(code))) }()

	var info *model.AgentInfo
	err = c.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		game, m, err := c.memberView(ctx, tx, identity, code)
		if err != nil {
			return err
		}
		kills, err := tx.CountKills(ctx, game.ID, m.PlayerID)
		if err != nil {
			return err
		}
		info = &model.AgentInfo{Codename: m.Codename, Alive: m.IsAlive(), Kills: kills}

		if !m.IsAlive() || game.Status != model.GameStatusActive {
			return nil
		}
		target, err := c.ring.CurrentTargetOf(ctx, tx, game.ID, m.PlayerID)
		if errors.Is(err, model.ErrNoCurrentTarget) {
			return nil
		}
		if err != nil {
			return err
		}
		info.Target, err = c.targetInfo(ctx, tx, target)
		return err
	})
	return info, err
}

// UserInfo returns the caller's active game, if any, and lifetime kills
func (c *Controller) UserInfo(ctx context.Context, identity model.Identity) (_ *model.UserInfo, err error) {
	ctx, span := c.start(ctx, "UserInfo")
	defer func() { err = c.done(span, "user_info", err) }()

	var info *model.UserInfo
	err = c.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := c.players.Resolve(ctx, tx, identity)
		if err != nil {
			return err
		}
		kills, err := tx.CountLifetimeKills(ctx, p.ID)
		if err != nil {
			return err
		}
		info = &model.UserInfo{Kills: kills}

		active, err := tx.GetActiveMembership(ctx, p.ID)
		if errors.Is(err, model.ErrNotInGame) {
			return nil
		}
		if err != nil {
			return err
		}
		game, err := tx.GetGame(ctx, active.GameID)
		if err != nil {
			return err
		}
		info.ActiveGame = &game.Code
		return nil
	})
	return info, err
}

// EndTime returns the game's scheduled or actual end, nil before it starts. Members only.
func (c *Controller) EndTime(ctx context.Context, identity model.Identity, code model.GameCode) (_ *time.Time, err error) {
	ctx, span := c.start(ctx, "EndTime", attribute.String("game.code", string(code)))
	defer func() { err = c.done(span, "end_time", err, slog.String("game_code", string(code))) }()

	var end *time.Time
	err = c.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		game, _, err := c.memberView(ctx, tx, identity, code)
		if err != nil {
			return err
		}
		end = game.EndsAt
		return nil
	})
	return end, err
}

// Validate checks the ring of an active game, for diagnostics.
// Games that are not active have no ring and report their status error.
func (c *Controller) Validate(ctx context.Context, code model.GameCode) error {
	return c.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		game, err := tx.GetGameByCode(ctx, code)
		if err != nil {
			return err
		}
		if err := requireActive(game); err != nil {
			return err
		}
		return c.ring.Validate(ctx, tx, game.ID)
	})
}

// RequireMember returns the caller's player id if they have ever joined the game
func (c *Controller) RequireMember(ctx context.Context, identity model.Identity, code model.GameCode) (model.PlayerID, error) {
	var id model.PlayerID
	err := c.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		_, m, err := c.memberView(ctx, tx, identity, code)
		if err != nil {
			return err
		}
		id = m.PlayerID
		return nil
	})
	return id, err
}
