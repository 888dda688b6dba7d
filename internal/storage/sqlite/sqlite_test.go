package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/assassingame/internal/model"
	"github.com/mcoot/assassingame/internal/storage"
	"github.com/mcoot/assassingame/internal/storage/sqldb"
)

type StoreSuite struct {
	suite.Suite
	path  string
	store *sqldb.Store
	ctx   context.Context
	now   time.Time
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.path = filepath.Join(s.T().TempDir(), "assassin.db")

	store, err := Open(s.ctx, s.path)
	s.Require().NoError(err)
	s.store = store
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

func (s *StoreSuite) inTx(fn func(tx storage.Tx) error) error {
	return s.store.WithTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		return fn(tx)
	})
}

func (s *StoreSuite) createPlayer(subject string) model.PlayerID {
	player := &model.Player{Nickname: subject, Email: subject + "@example.com", Subject: subject, RegisteredAt: s.now}
	s.Require().NoError(s.inTx(func(tx storage.Tx) error {
		return tx.CreatePlayer(s.ctx, player)
	}))
	return player.ID
}

func (s *StoreSuite) createGame(code string, owner model.PlayerID) *model.Game {
	game := &model.Game{Name: "Alpha", Code: model.GameCode(code), Owner: owner, Status: model.GameStatusWaiting, CreatedAt: s.now}
	s.Require().NoError(s.inTx(func(tx storage.Tx) error {
		return tx.CreateGame(s.ctx, game)
	}))
	return game
}

func (s *StoreSuite) TestReopenSkipsAppliedMigrations() {
	s.createPlayer("alice")
	s.Require().NoError(s.store.Close())

	store, err := Open(s.ctx, s.path)
	s.Require().NoError(err)
	s.store = store

	err = s.inTx(func(tx storage.Tx) error {
		_, err := tx.GetPlayerBySubject(s.ctx, "alice")
		return err
	})
	s.NoError(err)
}

func (s *StoreSuite) TestOpenRequiresPath() {
	_, err := Open(s.ctx, "  ")
	s.Error(err)
}

func (s *StoreSuite) TestPlayerRoundTrip() {
	id := s.createPlayer("alice")

	var player *model.Player
	s.Require().NoError(s.inTx(func(tx storage.Tx) error {
		var err error
		player, err = tx.GetPlayer(s.ctx, id)
		return err
	}))
	s.Equal("alice@example.com", player.Email)
	s.Equal(model.RoleUser, player.Role)
	s.Nil(player.Picture)
	s.True(s.now.Equal(player.RegisteredAt))
}

func (s *StoreSuite) TestDuplicateSubjectMapsToAlreadyRegistered() {
	s.createPlayer("alice")

	err := s.inTx(func(tx storage.Tx) error {
		return tx.CreatePlayer(s.ctx, &model.Player{Subject: "alice", RegisteredAt: s.now})
	})
	s.ErrorIs(err, model.ErrAlreadyRegistered)
}

func (s *StoreSuite) TestDuplicateGameCodeMapsToCodeTaken() {
	owner := s.createPlayer("alice")
	s.createGame("ABCD1234", owner)

	err := s.inTx(func(tx storage.Tx) error {
		return tx.CreateGame(s.ctx, &model.Game{Code: "ABCD1234", Owner: owner, Status: model.GameStatusWaiting, CreatedAt: s.now})
	})
	s.ErrorIs(err, storage.ErrGameCodeTaken)
}

func (s *StoreSuite) TestDuplicateMembershipMapsToAlreadyInRequestedGame() {
	alice := s.createPlayer("alice")
	game := s.createGame("ABCD1234", alice)

	err := s.inTx(func(tx storage.Tx) error {
		m := &model.Membership{PlayerID: alice, GameID: game.ID, Codename: "Silent Falcon", Status: model.MemberAlive, JoinedAt: s.now}
		if err := tx.CreateMembership(s.ctx, m); err != nil {
			return err
		}
		return tx.CreateMembership(s.ctx, m)
	})
	s.ErrorIs(err, model.ErrAlreadyInRequestedGame)
}

func (s *StoreSuite) TestFailedTransactionRollsBack() {
	alice := s.createPlayer("alice")

	err := s.inTx(func(tx storage.Tx) error {
		if err := tx.CreateGame(s.ctx, &model.Game{Code: "ROLLBACK", Owner: alice, Status: model.GameStatusWaiting, CreatedAt: s.now}); err != nil {
			return err
		}
		return model.ErrNotEnoughPlayers
	})
	s.ErrorIs(err, model.ErrNotEnoughPlayers)

	err = s.inTx(func(tx storage.Tx) error {
		_, err := tx.GetGameByCode(s.ctx, "ROLLBACK")
		return err
	})
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *StoreSuite) TestGameUpdateRoundTrip() {
	alice := s.createPlayer("alice")
	game := s.createGame("ABCD1234", alice)

	started := s.now
	ends := s.now.Add(72 * time.Hour)
	s.Require().NoError(s.inTx(func(tx storage.Tx) error {
		locked, err := tx.LockGameByCode(s.ctx, game.Code)
		if err != nil {
			return err
		}
		locked.Status = model.GameStatusActive
		locked.StartedAt = &started
		locked.EndsAt = &ends
		locked.Winner = &alice
		return tx.UpdateGame(s.ctx, locked)
	}))

	var got *model.Game
	s.Require().NoError(s.inTx(func(tx storage.Tx) error {
		var err error
		got, err = tx.GetGame(s.ctx, game.ID)
		return err
	}))
	s.Equal(model.GameStatusActive, got.Status)
	s.Equal("Alpha", got.Name)
	s.Require().NotNil(got.EndsAt)
	s.True(ends.Equal(*got.EndsAt))
	s.Require().NotNil(got.Winner)
	s.Equal(alice, *got.Winner)

	var expired []model.Game
	s.Require().NoError(s.inTx(func(tx storage.Tx) error {
		var err error
		expired, err = tx.ListExpiredGames(s.ctx, ends)
		return err
	}))
	s.Len(expired, 1)
}

func (s *StoreSuite) TestShareGameByCode() {
	alice := s.createPlayer("alice")
	game := s.createGame("ABCD1234", alice)

	s.Require().NoError(s.inTx(func(tx storage.Tx) error {
		shared, err := tx.ShareGameByCode(s.ctx, game.Code)
		s.Require().NoError(err)
		s.Equal(game.ID, shared.ID)

		// A sharer may still update the game
		shared.Status = model.GameStatusActive
		s.Require().NoError(tx.UpdateGame(s.ctx, shared))

		_, err = tx.ShareGameByCode(s.ctx, "MISSING0")
		s.ErrorIs(err, model.ErrGameNotFound)
		return nil
	}))
}

func (s *StoreSuite) TestMembershipQueries() {
	alice := s.createPlayer("alice")
	bob := s.createPlayer("bob")
	game := s.createGame("ABCD1234", alice)

	s.Require().NoError(s.inTx(func(tx storage.Tx) error {
		for i, id := range []model.PlayerID{alice, bob} {
			m := &model.Membership{PlayerID: id, GameID: game.ID, Codename: []string{"A", "B"}[i], Status: model.MemberAlive, JoinedAt: s.now.Add(time.Duration(i) * time.Second)}
			if err := tx.CreateMembership(s.ctx, m); err != nil {
				return err
			}
		}
		return nil
	}))

	err := s.inTx(func(tx storage.Tx) error {
		members, err := tx.ListMemberships(s.ctx, game.ID)
		s.Require().NoError(err)
		s.Require().Len(members, 2)
		s.Equal(alice, members[0].PlayerID)

		active, err := tx.GetActiveMembership(s.ctx, bob)
		s.Require().NoError(err)
		s.Equal("B", active.Codename)

		s.Require().NoError(tx.UpdateMembershipStatus(s.ctx, game.ID, bob, model.MemberDead))
		s.ErrorIs(tx.UpdateMembershipStatus(s.ctx, game.ID, bob, model.MemberLeftGame), model.ErrNotInGame)

		_, err = tx.GetActiveMembership(s.ctx, bob)
		s.ErrorIs(err, model.ErrNotInGame)
		return nil
	})
	s.Require().NoError(err)
}

func (s *StoreSuite) TestAssignmentQueries() {
	alice := s.createPlayer("alice")
	bob := s.createPlayer("bob")
	game := s.createGame("ABCD1234", alice)

	err := s.inTx(func(tx storage.Tx) error {
		ab := &model.Assignment{GameID: game.ID, Assassin: alice, Target: bob, Status: model.AssignmentCurrent, StartedAt: s.now}
		ba := &model.Assignment{GameID: game.ID, Assassin: bob, Target: alice, Status: model.AssignmentCurrent, StartedAt: s.now}
		s.Require().NoError(tx.CreateAssignment(s.ctx, ab))
		s.Require().NoError(tx.CreateAssignment(s.ctx, ba))
		s.NotZero(ab.ID)

		locked, err := tx.LockCurrentAssignments(s.ctx, game.ID, []model.PlayerID{bob, alice})
		s.Require().NoError(err)
		s.Require().Len(locked, 2)
		s.Equal(alice, locked[0].Assassin)
		s.Equal(bob, locked[1].Assassin)

		incoming, err := tx.GetIncomingAssignment(s.ctx, game.ID, bob)
		s.Require().NoError(err)
		s.Equal(ab.ID, incoming.ID)

		s.Require().NoError(tx.CloseAssignment(s.ctx, ab.ID, model.AssignmentKillSuccess, s.now))
		s.ErrorIs(tx.CloseAssignment(s.ctx, ab.ID, model.AssignmentGameEnd, s.now), model.ErrConcurrentUpdate)

		_, err = tx.GetCurrentAssignment(s.ctx, game.ID, alice)
		s.ErrorIs(err, model.ErrNoCurrentTarget)

		kills, err := tx.CountKills(s.ctx, game.ID, alice)
		s.Require().NoError(err)
		s.Equal(1, kills)

		game.Status = model.GameStatusFinished
		s.Require().NoError(tx.UpdateGame(s.ctx, game))
		lifetime, err := tx.CountLifetimeKills(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal(1, lifetime)
		return nil
	})
	s.Require().NoError(err)
}

func (s *StoreSuite) TestSecondCurrentEdgeForAssassinRejected() {
	alice := s.createPlayer("alice")
	bob := s.createPlayer("bob")
	carol := s.createPlayer("carol")
	game := s.createGame("ABCD1234", alice)

	err := s.inTx(func(tx storage.Tx) error {
		if err := tx.CreateAssignment(s.ctx, &model.Assignment{GameID: game.ID, Assassin: alice, Target: bob, Status: model.AssignmentCurrent, StartedAt: s.now}); err != nil {
			return err
		}
		return tx.CreateAssignment(s.ctx, &model.Assignment{GameID: game.ID, Assassin: alice, Target: carol, Status: model.AssignmentCurrent, StartedAt: s.now})
	})
	s.Require().Error(err)
	s.Equal(model.CodeDatabaseError, model.Code(err))
}

func (s *StoreSuite) TestConstraintFromMessage() {
	s.Equal(sqldb.ConstraintGameCode, constraintFromMessage("constraint failed: UNIQUE constraint failed: game.code (2067)"))
	s.Equal(sqldb.ConstraintPlayerGameUnique, constraintFromMessage("UNIQUE constraint failed: playergame.player_id, playergame.game_id"))
	s.Equal("", constraintFromMessage("no such table"))
}
