package membership

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/assassingame/internal/dependencies/mocks"
	"github.com/mcoot/assassingame/internal/model"
	"github.com/mcoot/assassingame/internal/services/idgen"
	"github.com/mcoot/assassingame/internal/storage"
	"github.com/mcoot/assassingame/internal/storage/memory"
	"github.com/mcoot/assassingame/internal/testutil"
)

type LedgerSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	random  *mocks.MockRandom
	ledger  *Ledger
	ctx     context.Context
	players []model.PlayerID
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.ledger = New(idgen.New(s.random), s.clock, testutil.NopLogger())
	s.ctx = context.Background()

	s.players = nil
	s.inTx(func(tx storage.Tx) error {
		for _, subject := range []string{"alice", "bob", "carol"} {
			p := &model.Player{Nickname: subject, Subject: subject, RegisteredAt: s.clock.Now()}
			if err := tx.CreatePlayer(s.ctx, p); err != nil {
				return err
			}
			s.players = append(s.players, p.ID)
		}
		return nil
	})
}

func (s *LedgerSuite) inTx(fn func(tx storage.Tx) error) {
	s.Require().NoError(s.storage.WithTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		return fn(tx)
	}))
}

func (s *LedgerSuite) tryTx(fn func(tx storage.Tx) error) error {
	return s.storage.WithTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		return fn(tx)
	})
}

func (s *LedgerSuite) createGame(code string, status model.GameStatus) *model.Game {
	game := &model.Game{Code: model.GameCode(code), Owner: s.players[0], Status: status, CreatedAt: s.clock.Now()}
	s.inTx(func(tx storage.Tx) error {
		return tx.CreateGame(s.ctx, game)
	})
	return game
}

func (s *LedgerSuite) join(game *model.Game, playerID model.PlayerID) (*model.Membership, error) {
	var m *model.Membership
	err := s.tryTx(func(tx storage.Tx) error {
		var err error
		m, err = s.ledger.Join(s.ctx, tx, game, playerID)
		return err
	})
	return m, err
}

func (s *LedgerSuite) TestJoinCreatesAliveMembership() {
	game := s.createGame("GAME0001", model.GameStatusWaiting)
	s.random.QueueIntn(0, 0)

	m, err := s.join(game, s.players[0])
	s.Require().NoError(err)

	s.Equal(model.MemberAlive, m.Status)
	s.Equal("Silent Falcon", m.Codename)
	s.Equal(game.ID, m.GameID)
	s.Equal(s.clock.Now(), m.JoinedAt)
}

func (s *LedgerSuite) TestJoinRegeneratesCollidingCodename() {
	game := s.createGame("GAME0001", model.GameStatusWaiting)
	s.random.QueueIntn(0, 0, 0, 0, 1, 2)

	_, err := s.join(game, s.players[0])
	s.Require().NoError(err)
	m, err := s.join(game, s.players[1])
	s.Require().NoError(err)

	s.Equal("Crimson Jackal", m.Codename)
}

func (s *LedgerSuite) TestJoinTwiceFails() {
	game := s.createGame("GAME0001", model.GameStatusWaiting)
	_, err := s.join(game, s.players[0])
	s.Require().NoError(err)

	_, err = s.join(game, s.players[0])
	s.ErrorIs(err, model.ErrAlreadyInRequestedGame)
}

func (s *LedgerSuite) TestJoinWhileInAnotherGameFails() {
	first := s.createGame("GAME0001", model.GameStatusWaiting)
	second := s.createGame("GAME0002", model.GameStatusWaiting)
	_, err := s.join(first, s.players[0])
	s.Require().NoError(err)

	_, err = s.join(second, s.players[0])
	s.ErrorIs(err, model.ErrAlreadyInAnotherGame)
}

func (s *LedgerSuite) TestJoinAfterPreviousGameFinished() {
	first := s.createGame("GAME0001", model.GameStatusWaiting)
	_, err := s.join(first, s.players[0])
	s.Require().NoError(err)

	first.Status = model.GameStatusFinished
	s.inTx(func(tx storage.Tx) error {
		return tx.UpdateGame(s.ctx, first)
	})

	second := s.createGame("GAME0002", model.GameStatusWaiting)
	_, err = s.join(second, s.players[0])
	s.NoError(err)
}

func (s *LedgerSuite) TestRejoinAfterLeavingFails() {
	game := s.createGame("GAME0001", model.GameStatusWaiting)
	_, err := s.join(game, s.players[1])
	s.Require().NoError(err)

	s.inTx(func(tx storage.Tx) error {
		_, err := s.ledger.Leave(s.ctx, tx, game, s.players[1])
		return err
	})

	_, err = s.join(game, s.players[1])
	s.ErrorIs(err, model.ErrAlreadyInRequestedGame)
}

func (s *LedgerSuite) TestJoinRejectsStartedAndFinishedGames() {
	active := s.createGame("GAME0001", model.GameStatusActive)
	_, err := s.join(active, s.players[1])
	s.ErrorIs(err, model.ErrGameAlreadyStarted)

	finished := s.createGame("GAME0002", model.GameStatusFinished)
	_, err = s.join(finished, s.players[1])
	s.ErrorIs(err, model.ErrGameFinished)
}

func (s *LedgerSuite) TestLeaveFlipsStatus() {
	game := s.createGame("GAME0001", model.GameStatusWaiting)
	_, err := s.join(game, s.players[1])
	s.Require().NoError(err)

	s.inTx(func(tx storage.Tx) error {
		m, err := s.ledger.Leave(s.ctx, tx, game, s.players[1])
		s.Require().NoError(err)
		s.Equal(model.MemberLeftGame, m.Status)

		count, err := s.ledger.AliveCount(s.ctx, tx, game.ID)
		s.Require().NoError(err)
		s.Equal(0, count)

		member, err := s.ledger.IsMember(s.ctx, tx, game.ID, s.players[1])
		s.Require().NoError(err)
		s.True(member)
		return nil
	})
}

func (s *LedgerSuite) TestLeaveErrors() {
	game := s.createGame("GAME0001", model.GameStatusWaiting)

	err := s.tryTx(func(tx storage.Tx) error {
		_, err := s.ledger.Leave(s.ctx, tx, game, s.players[2])
		return err
	})
	s.ErrorIs(err, model.ErrNotInGame)

	_, err = s.join(game, s.players[2])
	s.Require().NoError(err)
	s.inTx(func(tx storage.Tx) error {
		return s.ledger.MarkDead(s.ctx, tx, game.ID, s.players[2])
	})
	err = s.tryTx(func(tx storage.Tx) error {
		_, err := s.ledger.Leave(s.ctx, tx, game, s.players[2])
		return err
	})
	s.ErrorIs(err, model.ErrNotInGame)

	game.Status = model.GameStatusFinished
	err = s.tryTx(func(tx storage.Tx) error {
		_, err := s.ledger.Leave(s.ctx, tx, game, s.players[2])
		return err
	})
	s.ErrorIs(err, model.ErrGameFinished)
}

func (s *LedgerSuite) TestMarkDeadIsMonotonic() {
	game := s.createGame("GAME0001", model.GameStatusWaiting)
	_, err := s.join(game, s.players[0])
	s.Require().NoError(err)

	s.inTx(func(tx storage.Tx) error {
		return s.ledger.MarkDead(s.ctx, tx, game.ID, s.players[0])
	})
	err = s.tryTx(func(tx storage.Tx) error {
		return s.ledger.MarkDead(s.ctx, tx, game.ID, s.players[0])
	})
	s.ErrorIs(err, model.ErrNotInGame)
}

func (s *LedgerSuite) TestAliveMembersInJoinOrder() {
	game := s.createGame("GAME0001", model.GameStatusWaiting)
	s.random.QueueIntn(0, 0, 1, 1, 2, 2)
	for _, id := range s.players {
		_, err := s.join(game, id)
		s.Require().NoError(err)
		s.clock.Advance(time.Second)
	}

	s.inTx(func(tx storage.Tx) error {
		s.Require().NoError(s.ledger.MarkDead(s.ctx, tx, game.ID, s.players[1]))

		alive, err := s.ledger.AliveMembers(s.ctx, tx, game.ID)
		s.Require().NoError(err)
		s.Require().Len(alive, 2)
		s.Equal(s.players[0], alive[0].PlayerID)
		s.Equal(s.players[2], alive[1].PlayerID)

		member, err := s.ledger.IsMember(s.ctx, tx, game.ID, 999)
		s.Require().NoError(err)
		s.False(member)
		return nil
	})
}
