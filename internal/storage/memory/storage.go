package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/assassingame/internal/model"
	"github.com/mcoot/assassingame/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// Transactions are serialized by a single mutex and run against a copy of
// the state that replaces the original only on commit.
type Storage struct {
	mu    sync.Mutex
	state *state
}

type memberKey struct {
	gameID   model.GameID
	playerID model.PlayerID
}

type state struct {
	players      map[model.PlayerID]model.Player
	subjectIndex map[string]model.PlayerID
	games        map[model.GameID]model.Game
	codeIndex    map[model.GameCode]model.GameID
	memberships  map[memberKey]model.Membership
	assignments  map[model.AssignmentID]model.Assignment

	nextPlayerID     model.PlayerID
	nextGameID       model.GameID
	nextAssignmentID model.AssignmentID
}

func newState() *state {
	return &state{
		players:          make(map[model.PlayerID]model.Player),
		subjectIndex:     make(map[string]model.PlayerID),
		games:            make(map[model.GameID]model.Game),
		codeIndex:        make(map[model.GameCode]model.GameID),
		memberships:      make(map[memberKey]model.Membership),
		assignments:      make(map[model.AssignmentID]model.Assignment),
		nextPlayerID:     1,
		nextGameID:       1,
		nextAssignmentID: 1,
	}
}

// clone copies every map. Stored values hold pointers only to immutable data.
func (s *state) clone() *state {
	return &state{
		players:          maps.Clone(s.players),
		subjectIndex:     maps.Clone(s.subjectIndex),
		games:            maps.Clone(s.games),
		codeIndex:        maps.Clone(s.codeIndex),
		memberships:      maps.Clone(s.memberships),
		assignments:      maps.Clone(s.assignments),
		nextPlayerID:     s.nextPlayerID,
		nextGameID:       s.nextGameID,
		nextAssignmentID: s.nextAssignmentID,
	}
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{state: newState()}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// WithTx runs fn against a working copy and commits it if fn succeeds
func (s *Storage) WithTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(ctx, &tx{state: working}); err != nil {
		return err
	}
	s.state = working
	return nil
}

// Close is a no-op for memory storage
func (s *Storage) Close() error {
	return nil
}

type tx struct {
	state *state
}

var _ storage.Tx = (*tx)(nil)

// Player operations

func (t *tx) CreatePlayer(ctx context.Context, player *model.Player) error {
	if _, ok := t.state.subjectIndex[player.Subject]; ok {
		return model.ErrAlreadyRegistered
	}
	player.ID = t.state.nextPlayerID
	t.state.nextPlayerID++
	t.state.players[player.ID] = *player
	t.state.subjectIndex[player.Subject] = player.ID
	return nil
}

func (t *tx) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	player, ok := t.state.players[id]
	if !ok {
		return nil, model.ErrNotRegistered
	}
	return &player, nil
}

func (t *tx) GetPlayerBySubject(ctx context.Context, subject string) (*model.Player, error) {
	id, ok := t.state.subjectIndex[subject]
	if !ok {
		return nil, model.ErrNotRegistered
	}
	return t.GetPlayer(ctx, id)
}

func (t *tx) LockPlayer(ctx context.Context, id model.PlayerID) error {
	if _, ok := t.state.players[id]; !ok {
		return model.ErrNotRegistered
	}
	return nil
}

// Game operations

func (t *tx) CreateGame(ctx context.Context, game *model.Game) error {
	if _, ok := t.state.codeIndex[game.Code]; ok {
		return storage.ErrGameCodeTaken
	}
	game.ID = t.state.nextGameID
	t.state.nextGameID++
	t.state.games[game.ID] = *game
	t.state.codeIndex[game.Code] = game.ID
	return nil
}

func (t *tx) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	game, ok := t.state.games[id]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	return &game, nil
}

func (t *tx) GetGameByCode(ctx context.Context, code model.GameCode) (*model.Game, error) {
	id, ok := t.state.codeIndex[code]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	return t.GetGame(ctx, id)
}

func (t *tx) LockGameByCode(ctx context.Context, code model.GameCode) (*model.Game, error) {
	return t.GetGameByCode(ctx, code)
}

func (t *tx) ShareGameByCode(ctx context.Context, code model.GameCode) (*model.Game, error) {
	return t.GetGameByCode(ctx, code)
}

func (t *tx) UpdateGame(ctx context.Context, game *model.Game) error {
	if _, ok := t.state.games[game.ID]; !ok {
		return model.ErrGameNotFound
	}
	t.state.games[game.ID] = *game
	return nil
}

func (t *tx) ListExpiredGames(ctx context.Context, now time.Time) ([]model.Game, error) {
	var games []model.Game
	for _, g := range t.state.games {
		if g.Status == model.GameStatusActive && g.HasEnded(now) {
			games = append(games, g)
		}
	}
	slices.SortFunc(games, func(a, b model.Game) int { return cmp.Compare(a.ID, b.ID) })
	return games, nil
}

// Membership operations

func (t *tx) CreateMembership(ctx context.Context, m *model.Membership) error {
	key := memberKey{gameID: m.GameID, playerID: m.PlayerID}
	if _, ok := t.state.memberships[key]; ok {
		return model.ErrAlreadyInRequestedGame
	}
	if _, ok := t.state.games[m.GameID]; !ok {
		return model.ErrGameNotFound
	}
	if _, ok := t.state.players[m.PlayerID]; !ok {
		return model.ErrNotRegistered
	}
	t.state.memberships[key] = *m
	return nil
}

func (t *tx) GetMembership(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (*model.Membership, error) {
	m, ok := t.state.memberships[memberKey{gameID: gameID, playerID: playerID}]
	if !ok {
		return nil, model.ErrNotInGame
	}
	return &m, nil
}

func (t *tx) ListMemberships(ctx context.Context, gameID model.GameID) ([]model.Membership, error) {
	var members []model.Membership
	for key, m := range t.state.memberships {
		if key.gameID == gameID {
			members = append(members, m)
		}
	}
	slices.SortFunc(members, func(a, b model.Membership) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.PlayerID, b.PlayerID)
	})
	return members, nil
}

func (t *tx) GetActiveMembership(ctx context.Context, playerID model.PlayerID) (*model.Membership, error) {
	for key, m := range t.state.memberships {
		if key.playerID != playerID || m.Status != model.MemberAlive {
			continue
		}
		if g, ok := t.state.games[key.gameID]; ok && g.Status != model.GameStatusFinished {
			return &m, nil
		}
	}
	return nil, model.ErrNotInGame
}

func (t *tx) UpdateMembershipStatus(ctx context.Context, gameID model.GameID, playerID model.PlayerID, status model.MemberStatus) error {
	key := memberKey{gameID: gameID, playerID: playerID}
	m, ok := t.state.memberships[key]
	if !ok || m.Status != model.MemberAlive {
		return model.ErrNotInGame
	}
	m.Status = status
	t.state.memberships[key] = m
	return nil
}

// Assignment operations

func (t *tx) CreateAssignment(ctx context.Context, a *model.Assignment) error {
	if _, ok := t.state.games[a.GameID]; !ok {
		return model.ErrGameNotFound
	}
	a.ID = t.state.nextAssignmentID
	t.state.nextAssignmentID++
	t.state.assignments[a.ID] = *a
	return nil
}

func (t *tx) GetCurrentAssignment(ctx context.Context, gameID model.GameID, assassin model.PlayerID) (*model.Assignment, error) {
	for _, a := range t.state.assignments {
		if a.GameID == gameID && a.Assassin == assassin && a.IsCurrent() {
			return &a, nil
		}
	}
	return nil, model.ErrNoCurrentTarget
}

func (t *tx) GetIncomingAssignment(ctx context.Context, gameID model.GameID, target model.PlayerID) (*model.Assignment, error) {
	for _, a := range t.state.assignments {
		if a.GameID == gameID && a.Target == target && a.IsCurrent() {
			return &a, nil
		}
	}
	return nil, model.ErrNoCurrentTarget
}

func (t *tx) LockCurrentAssignments(ctx context.Context, gameID model.GameID, assassins []model.PlayerID) ([]model.Assignment, error) {
	wanted := make(map[model.PlayerID]bool, len(assassins))
	for _, id := range assassins {
		wanted[id] = true
	}
	var result []model.Assignment
	for _, a := range t.state.assignments {
		if a.GameID == gameID && a.IsCurrent() && wanted[a.Assassin] {
			result = append(result, a)
		}
	}
	slices.SortFunc(result, func(a, b model.Assignment) int { return cmp.Compare(a.Assassin, b.Assassin) })
	return result, nil
}

func (t *tx) ListCurrentAssignments(ctx context.Context, gameID model.GameID) ([]model.Assignment, error) {
	return t.listAssignments(gameID, func(a model.Assignment) bool { return a.IsCurrent() }), nil
}

func (t *tx) CloseAssignment(ctx context.Context, id model.AssignmentID, status model.AssignmentStatus, endedAt time.Time) error {
	a, ok := t.state.assignments[id]
	if !ok || !a.IsCurrent() {
		return model.ErrConcurrentUpdate
	}
	a.Status = status
	a.EndedAt = &endedAt
	t.state.assignments[id] = a
	return nil
}

func (t *tx) CountKills(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (int, error) {
	kills := t.listAssignments(gameID, func(a model.Assignment) bool {
		return a.Assassin == playerID && a.Status == model.AssignmentKillSuccess
	})
	return len(kills), nil
}

func (t *tx) CountLifetimeKills(ctx context.Context, playerID model.PlayerID) (int, error) {
	count := 0
	for _, a := range t.state.assignments {
		if a.Assassin != playerID || a.Status != model.AssignmentKillSuccess {
			continue
		}
		if g, ok := t.state.games[a.GameID]; ok && g.Status == model.GameStatusFinished {
			count++
		}
	}
	return count, nil
}

func (t *tx) listAssignments(gameID model.GameID, keep func(model.Assignment) bool) []model.Assignment {
	var result []model.Assignment
	for _, a := range t.state.assignments {
		if a.GameID == gameID && keep(a) {
			result = append(result, a)
		}
	}
	slices.SortFunc(result, func(a, b model.Assignment) int { return cmp.Compare(a.ID, b.ID) })
	return result
}
