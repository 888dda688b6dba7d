package player

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/assassingame/internal/dependencies/mocks"
	"github.com/mcoot/assassingame/internal/model"
	"github.com/mcoot/assassingame/internal/storage"
	"github.com/mcoot/assassingame/internal/storage/memory"
	"github.com/mcoot/assassingame/internal/testutil"
)

type RegistrySuite struct {
	suite.Suite
	storage  *memory.Storage
	clock    *mocks.MockClock
	registry *Registry
	ctx      context.Context
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.registry = New(s.storage, s.clock, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *RegistrySuite) TestRegisterCreatesPlayer() {
	identity := model.Identity{Subject: "auth0|alice", Email: "alice@example.com"}

	player, err := s.registry.Register(s.ctx, identity, "  Alice  ")
	s.Require().NoError(err)

	s.NotZero(player.ID)
	s.Equal("Alice", player.Nickname)
	s.Equal("auth0|alice", player.Subject)
	s.Equal(model.RoleUser, player.Role)
	s.Equal(s.clock.Now(), player.RegisteredAt)
}

func (s *RegistrySuite) TestRegisterFallsBackToEmailLocalPart() {
	player, err := s.registry.Register(s.ctx, model.Identity{Subject: "bob", Email: "bob.smith@example.com"}, "")
	s.Require().NoError(err)
	s.Equal("bob.smith", player.Nickname)
}

func (s *RegistrySuite) TestRegisterTruncatesLongNickname() {
	player, err := s.registry.Register(s.ctx, model.Identity{Subject: "carol"}, strings.Repeat("x", 100))
	s.Require().NoError(err)
	s.Len(player.Nickname, MaxNicknameLength)
}

func (s *RegistrySuite) TestRegisterTwiceFails() {
	identity := model.Identity{Subject: "auth0|alice", Email: "alice@example.com"}
	_, err := s.registry.Register(s.ctx, identity, "Alice")
	s.Require().NoError(err)

	_, err = s.registry.Register(s.ctx, identity, "Alice Again")
	s.ErrorIs(err, model.ErrAlreadyRegistered)
	s.Equal(model.CodeAlreadyRegistered, model.Code(err))
}

func (s *RegistrySuite) TestMeReturnsRegisteredPlayer() {
	identity := model.Identity{Subject: "auth0|alice", Email: "alice@example.com"}
	registered, err := s.registry.Register(s.ctx, identity, "Alice")
	s.Require().NoError(err)

	player, err := s.registry.Me(s.ctx, identity)
	s.Require().NoError(err)
	s.Equal(registered.ID, player.ID)
}

func (s *RegistrySuite) TestMeFailsForUnknownIdentity() {
	_, err := s.registry.Me(s.ctx, model.Identity{Subject: "nobody"})
	s.ErrorIs(err, model.ErrNotRegistered)
}

func (s *RegistrySuite) TestResolveRejectsEmptySubject() {
	err := s.storage.WithTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		_, err := s.registry.Resolve(ctx, tx, model.Identity{})
		return err
	})
	s.ErrorIs(err, model.ErrNotRegistered)
}

func (s *RegistrySuite) TestFindByID() {
	registered, err := s.registry.Register(s.ctx, model.Identity{Subject: "alice"}, "Alice")
	s.Require().NoError(err)

	err = s.storage.WithTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		found, err := s.registry.FindByID(ctx, tx, registered.ID)
		s.Require().NoError(err)
		s.Equal("Alice", found.Nickname)

		_, err = s.registry.FindByID(ctx, tx, registered.ID+100)
		s.ErrorIs(err, model.ErrNotRegistered)
		return nil
	})
	s.Require().NoError(err)
}
