package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/assassingame/internal/model"
	"github.com/mcoot/assassingame/internal/storage"
)

type StorageSuite struct {
	suite.Suite
	storage *Storage
	ctx     context.Context
	now     time.Time
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.storage = New()
	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *StorageSuite) inTx(fn func(tx storage.Tx) error) error {
	return s.storage.WithTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		return fn(tx)
	})
}

func (s *StorageSuite) createPlayer(subject string) model.PlayerID {
	player := &model.Player{Nickname: subject, Subject: subject, Role: model.RoleUser, RegisteredAt: s.now}
	s.Require().NoError(s.inTx(func(tx storage.Tx) error {
		return tx.CreatePlayer(s.ctx, player)
	}))
	return player.ID
}

func (s *StorageSuite) createGame(code string, owner model.PlayerID) *model.Game {
	game := &model.Game{Code: model.GameCode(code), Owner: owner, Status: model.GameStatusWaiting, CreatedAt: s.now}
	s.Require().NoError(s.inTx(func(tx storage.Tx) error {
		return tx.CreateGame(s.ctx, game)
	}))
	return game
}

// Transaction tests

func (s *StorageSuite) TestWithTxCommitsOnSuccess() {
	id := s.createPlayer("alice")

	err := s.inTx(func(tx storage.Tx) error {
		p, err := tx.GetPlayer(s.ctx, id)
		s.Require().NoError(err)
		s.Equal("alice", p.Subject)
		return nil
	})
	s.NoError(err)
}

func (s *StorageSuite) TestWithTxRollsBackOnError() {
	boom := errors.New("boom")

	err := s.inTx(func(tx storage.Tx) error {
		_ = tx.CreatePlayer(s.ctx, &model.Player{Subject: "ghost"})
		return boom
	})
	s.ErrorIs(err, boom)

	err = s.inTx(func(tx storage.Tx) error {
		_, err := tx.GetPlayerBySubject(s.ctx, "ghost")
		return err
	})
	s.ErrorIs(err, model.ErrNotRegistered)
}

func (s *StorageSuite) TestWithTxHonoursCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	err := s.storage.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error { return nil })
	s.ErrorIs(err, context.Canceled)
}

// Player tests

func (s *StorageSuite) TestCreatePlayerAssignsSequentialIDs() {
	s.Equal(model.PlayerID(1), s.createPlayer("alice"))
	s.Equal(model.PlayerID(2), s.createPlayer("bob"))
}

func (s *StorageSuite) TestCreatePlayerDuplicateSubject() {
	s.createPlayer("alice")

	err := s.inTx(func(tx storage.Tx) error {
		return tx.CreatePlayer(s.ctx, &model.Player{Subject: "alice"})
	})
	s.ErrorIs(err, model.ErrAlreadyRegistered)
}

// Game tests

func (s *StorageSuite) TestCreateGameDuplicateCode() {
	owner := s.createPlayer("alice")
	s.createGame("ABCD1234", owner)

	err := s.inTx(func(tx storage.Tx) error {
		return tx.CreateGame(s.ctx, &model.Game{Code: "ABCD1234", Owner: owner})
	})
	s.ErrorIs(err, storage.ErrGameCodeTaken)
}

func (s *StorageSuite) TestGetGameByCodeNotFound() {
	err := s.inTx(func(tx storage.Tx) error {
		_, err := tx.GetGameByCode(s.ctx, "NOPE0000")
		return err
	})
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *StorageSuite) TestListExpiredGames() {
	owner := s.createPlayer("alice")
	expired := s.createGame("EXPIRED1", owner)
	running := s.createGame("RUNNING1", owner)

	past := s.now.Add(-time.Minute)
	future := s.now.Add(time.Hour)
	s.Require().NoError(s.inTx(func(tx storage.Tx) error {
		expired.Status = model.GameStatusActive
		expired.EndsAt = &past
		running.Status = model.GameStatusActive
		running.EndsAt = &future
		if err := tx.UpdateGame(s.ctx, expired); err != nil {
			return err
		}
		return tx.UpdateGame(s.ctx, running)
	}))

	var games []model.Game
	s.Require().NoError(s.inTx(func(tx storage.Tx) error {
		var err error
		games, err = tx.ListExpiredGames(s.ctx, s.now)
		return err
	}))
	s.Require().Len(games, 1)
	s.Equal(model.GameCode("EXPIRED1"), games[0].Code)
}

// Membership tests

func (s *StorageSuite) TestMembershipLifecycle() {
	alice := s.createPlayer("alice")
	game := s.createGame("ABCD1234", alice)

	err := s.inTx(func(tx storage.Tx) error {
		return tx.CreateMembership(s.ctx, &model.Membership{
			PlayerID: alice, GameID: game.ID, Codename: "Silent Falcon", Status: model.MemberAlive, JoinedAt: s.now,
		})
	})
	s.Require().NoError(err)

	err = s.inTx(func(tx storage.Tx) error {
		active, err := tx.GetActiveMembership(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal(game.ID, active.GameID)

		s.Require().NoError(tx.UpdateMembershipStatus(s.ctx, game.ID, alice, model.MemberLeftGame))
		// Terminal statuses never change again
		return tx.UpdateMembershipStatus(s.ctx, game.ID, alice, model.MemberDead)
	})
	s.ErrorIs(err, model.ErrNotInGame)
}

func (s *StorageSuite) TestDuplicateMembership() {
	alice := s.createPlayer("alice")
	game := s.createGame("ABCD1234", alice)
	m := model.Membership{PlayerID: alice, GameID: game.ID, Status: model.MemberAlive}

	err := s.inTx(func(tx storage.Tx) error {
		first := m
		if err := tx.CreateMembership(s.ctx, &first); err != nil {
			return err
		}
		second := m
		return tx.CreateMembership(s.ctx, &second)
	})
	s.ErrorIs(err, model.ErrAlreadyInRequestedGame)
}

func (s *StorageSuite) TestActiveMembershipIgnoresFinishedGames() {
	alice := s.createPlayer("alice")
	game := s.createGame("ABCD1234", alice)

	err := s.inTx(func(tx storage.Tx) error {
		if err := tx.CreateMembership(s.ctx, &model.Membership{PlayerID: alice, GameID: game.ID, Status: model.MemberAlive}); err != nil {
			return err
		}
		game.Status = model.GameStatusFinished
		if err := tx.UpdateGame(s.ctx, game); err != nil {
			return err
		}
		_, err := tx.GetActiveMembership(s.ctx, alice)
		return err
	})
	s.ErrorIs(err, model.ErrNotInGame)
}

// Assignment tests

func (s *StorageSuite) TestAssignmentQueries() {
	alice := s.createPlayer("alice")
	bob := s.createPlayer("bob")
	game := s.createGame("ABCD1234", alice)

	err := s.inTx(func(tx storage.Tx) error {
		ab := &model.Assignment{GameID: game.ID, Assassin: alice, Target: bob, Status: model.AssignmentCurrent, StartedAt: s.now}
		ba := &model.Assignment{GameID: game.ID, Assassin: bob, Target: alice, Status: model.AssignmentCurrent, StartedAt: s.now}
		s.Require().NoError(tx.CreateAssignment(s.ctx, ab))
		s.Require().NoError(tx.CreateAssignment(s.ctx, ba))

		current, err := tx.GetCurrentAssignment(s.ctx, game.ID, alice)
		s.Require().NoError(err)
		s.Equal(bob, current.Target)

		incoming, err := tx.GetIncomingAssignment(s.ctx, game.ID, alice)
		s.Require().NoError(err)
		s.Equal(bob, incoming.Assassin)

		locked, err := tx.LockCurrentAssignments(s.ctx, game.ID, []model.PlayerID{bob, alice})
		s.Require().NoError(err)
		s.Require().Len(locked, 2)
		s.Equal(alice, locked[0].Assassin)

		s.Require().NoError(tx.CloseAssignment(s.ctx, ab.ID, model.AssignmentKillSuccess, s.now))
		s.ErrorIs(tx.CloseAssignment(s.ctx, ab.ID, model.AssignmentGameEnd, s.now), model.ErrConcurrentUpdate)

		kills, err := tx.CountKills(s.ctx, game.ID, alice)
		s.Require().NoError(err)
		s.Equal(1, kills)

		// Lifetime kills only count finished games
		lifetime, err := tx.CountLifetimeKills(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal(0, lifetime)

		_, err = tx.GetCurrentAssignment(s.ctx, game.ID, alice)
		s.ErrorIs(err, model.ErrNoCurrentTarget)

		current2, err := tx.ListCurrentAssignments(s.ctx, game.ID)
		s.Require().NoError(err)
		s.Len(current2, 1)
		return nil
	})
	s.Require().NoError(err)
}
