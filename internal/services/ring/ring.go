// Package ring maintains the directed cycle of CURRENT assignment edges over
// the alive members of an active game.
//
// Kill and leave repairs lock the CURRENT edges leaving the two affected
// players in ascending player id order, so overlapping repairs serialize and
// never deadlock while disjoint repairs in the same game proceed in parallel.
package ring

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mcoot/assassingame/internal/dependencies/clock"
	"github.com/mcoot/assassingame/internal/dependencies/random"
	"github.com/mcoot/assassingame/internal/model"
	"github.com/mcoot/assassingame/internal/services/membership"
	"github.com/mcoot/assassingame/internal/storage"
)

// Outcome describes a completed ring repair
type Outcome struct {
	// Removed is the player taken out of the ring (victim or leaver)
	Removed model.PlayerID
	// Assassin is the player who was hunting Removed
	Assassin model.PlayerID
	// NextTarget is Assassin's new target; zero when the ring collapsed
	NextTarget model.PlayerID
	// Collapsed is set when one member remains; Assassin is then the winner
	Collapsed bool
}

// Ring builds and repairs the assignment ring
type Ring struct {
	ledger *membership.Ledger
	clock  clock.Clock
	random random.Random
	logger *slog.Logger
}

// New creates a new Ring
func New(ledger *membership.Ledger, clock clock.Clock, random random.Random, logger *slog.Logger) *Ring {
	return &Ring{
		ledger: ledger,
		clock:  clock,
		random: random,
		logger: logger.With(slog.String("component", "ring")),
	}
}

// Build shuffles the members and links each to the next, wrapping around
func (r *Ring) Build(ctx context.Context, tx storage.Tx, gameID model.GameID, members []model.Membership) ([]model.Assignment, error) {
	n := len(members)
	if n < 2 {
		return nil, model.ErrNotEnoughPlayers
	}

	order := make([]model.PlayerID, n)
	for i, m := range members {
		order[i] = m.PlayerID
	}
	for i := n - 1; i > 0; i-- {
		j := r.random.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}

	now := r.clock.Now()
	edges := make([]model.Assignment, 0, n)
	for i, assassin := range order {
		edge := model.Assignment{
			GameID:    gameID,
			Assassin:  assassin,
			Target:    order[(i+1)%n],
			Status:    model.AssignmentCurrent,
			StartedAt: now,
		}
		if err := tx.CreateAssignment(ctx, &edge); err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// CurrentTargetOf returns the target of the assassin's CURRENT edge
func (r *Ring) CurrentTargetOf(ctx context.Context, tx storage.Tx, gameID model.GameID, assassin model.PlayerID) (model.PlayerID, error) {
	edge, err := tx.GetCurrentAssignment(ctx, gameID, assassin)
	if err != nil {
		return 0, err
	}
	return edge.Target, nil
}

// ResolveKill credits the assassin with their current target, marks the
// target DEAD, and hands the assassin the target's former target.
func (r *Ring) ResolveKill(ctx context.Context, tx storage.Tx, gameID model.GameID, assassin model.PlayerID) (*Outcome, error) {
	edge, err := tx.GetCurrentAssignment(ctx, gameID, assassin)
	if err != nil {
		return nil, err
	}
	target := edge.Target

	locked, err := r.lockEdges(ctx, tx, gameID, assassin, target)
	if err != nil {
		return nil, err
	}
	hunting, ok := locked[assassin]
	if !ok || hunting.Target != target {
		return nil, model.ErrConcurrentUpdate
	}
	victimEdge, ok := locked[target]
	if !ok {
		return nil, r.corrupted(gameID, "victim has no outgoing edge", slog.Int64("player_id", int64(target)))
	}

	now := r.clock.Now()
	next := victimEdge.Target
	collapsed := next == assassin

	if err := tx.CloseAssignment(ctx, hunting.ID, model.AssignmentKillSuccess, now); err != nil {
		return nil, err
	}
	victimStatus := model.AssignmentReassigned
	if collapsed {
		victimStatus = model.AssignmentGameEnd
	}
	if err := tx.CloseAssignment(ctx, victimEdge.ID, victimStatus, now); err != nil {
		return nil, err
	}
	if err := r.ledger.MarkDead(ctx, tx, gameID, target); err != nil {
		return nil, err
	}

	outcome := &Outcome{Removed: target, Assassin: assassin, Collapsed: collapsed}
	if !collapsed {
		if err := r.open(ctx, tx, gameID, assassin, next); err != nil {
			return nil, err
		}
		outcome.NextTarget = next
	}
	return outcome, nil
}

// ResolveLeave splices the leaver out of the ring: their assassin inherits
// their target and nobody is credited. The membership flip is the caller's job.
func (r *Ring) ResolveLeave(ctx context.Context, tx storage.Tx, gameID model.GameID, leaver model.PlayerID) (*Outcome, error) {
	incoming, err := tx.GetIncomingAssignment(ctx, gameID, leaver)
	if err != nil {
		if errors.Is(err, model.ErrNoCurrentTarget) {
			return nil, r.corrupted(gameID, "alive member has no assassin", slog.Int64("player_id", int64(leaver)))
		}
		return nil, err
	}
	assassin := incoming.Assassin

	locked, err := r.lockEdges(ctx, tx, gameID, assassin, leaver)
	if err != nil {
		return nil, err
	}
	hunting, ok := locked[assassin]
	if !ok || hunting.Target != leaver {
		return nil, model.ErrConcurrentUpdate
	}
	leaverEdge, ok := locked[leaver]
	if !ok {
		return nil, r.corrupted(gameID, "leaver has no outgoing edge", slog.Int64("player_id", int64(leaver)))
	}

	now := r.clock.Now()
	next := leaverEdge.Target
	collapsed := next == assassin

	if err := tx.CloseAssignment(ctx, hunting.ID, model.AssignmentTargetLeft, now); err != nil {
		return nil, err
	}
	leaverStatus := model.AssignmentTargetLeft
	if collapsed {
		leaverStatus = model.AssignmentGameEnd
	}
	if err := tx.CloseAssignment(ctx, leaverEdge.ID, leaverStatus, now); err != nil {
		return nil, err
	}

	outcome := &Outcome{Removed: leaver, Assassin: assassin, Collapsed: collapsed}
	if !collapsed {
		if err := r.open(ctx, tx, gameID, assassin, next); err != nil {
			return nil, err
		}
		outcome.NextTarget = next
	}
	return outcome, nil
}

// CloseAll ends every remaining CURRENT edge with GAME_END.
// Listing repeats until empty so edges opened by a repair that committed
// mid-way are not left behind.
func (r *Ring) CloseAll(ctx context.Context, tx storage.Tx, gameID model.GameID) (int, error) {
	now := r.clock.Now()
	closed := 0
	for {
		edges, err := tx.ListCurrentAssignments(ctx, gameID)
		if err != nil {
			return closed, err
		}
		if len(edges) == 0 {
			return closed, nil
		}
		for _, edge := range edges {
			if err := tx.CloseAssignment(ctx, edge.ID, model.AssignmentGameEnd, now); err != nil {
				return closed, err
			}
			closed++
		}
	}
}

// Validate checks that the CURRENT edges form exactly one cycle over the
// ALIVE members. Fewer than two alive members must leave no CURRENT edges.
func (r *Ring) Validate(ctx context.Context, tx storage.Tx, gameID model.GameID) error {
	alive, err := r.ledger.AliveMembers(ctx, tx, gameID)
	if err != nil {
		return err
	}
	edges, err := tx.ListCurrentAssignments(ctx, gameID)
	if err != nil {
		return err
	}

	if len(alive) < 2 {
		if len(edges) != 0 {
			return fmt.Errorf("%w: %d current edges with %d alive members", model.ErrRingCorrupted, len(edges), len(alive))
		}
		return nil
	}
	if len(edges) != len(alive) {
		return fmt.Errorf("%w: %d current edges for %d alive members", model.ErrRingCorrupted, len(edges), len(alive))
	}

	isAlive := make(map[model.PlayerID]bool, len(alive))
	for _, m := range alive {
		isAlive[m.PlayerID] = true
	}
	next := make(map[model.PlayerID]model.PlayerID, len(edges))
	hunted := make(map[model.PlayerID]bool, len(edges))
	for _, e := range edges {
		if !isAlive[e.Assassin] || !isAlive[e.Target] {
			return fmt.Errorf("%w: edge %d touches a non-alive player", model.ErrRingCorrupted, e.ID)
		}
		if e.Assassin == e.Target {
			return fmt.Errorf("%w: player %d targets themselves", model.ErrRingCorrupted, e.Assassin)
		}
		if _, dup := next[e.Assassin]; dup {
			return fmt.Errorf("%w: player %d has two targets", model.ErrRingCorrupted, e.Assassin)
		}
		if hunted[e.Target] {
			return fmt.Errorf("%w: player %d has two assassins", model.ErrRingCorrupted, e.Target)
		}
		next[e.Assassin] = e.Target
		hunted[e.Target] = true
	}

	start := alive[0].PlayerID
	visited := 1
	for cur := next[start]; cur != start; cur = next[cur] {
		visited++
		if visited > len(alive) {
			break
		}
	}
	if visited != len(alive) {
		return fmt.Errorf("%w: cycle through player %d covers %d of %d members", model.ErrRingCorrupted, start, visited, len(alive))
	}
	return nil
}

// Order walks the ring from its lowest player id. Empty when no ring exists.
func (r *Ring) Order(ctx context.Context, tx storage.Tx, gameID model.GameID) ([]model.PlayerID, error) {
	edges, err := tx.ListCurrentAssignments(ctx, gameID)
	if err != nil || len(edges) == 0 {
		return nil, err
	}
	next := make(map[model.PlayerID]model.PlayerID, len(edges))
	for _, e := range edges {
		next[e.Assassin] = e.Target
	}
	start := slices.MinFunc(edges, func(a, b model.Assignment) int { return cmp.Compare(a.Assassin, b.Assassin) }).Assassin

	order := []model.PlayerID{start}
	for cur := next[start]; cur != start && len(order) <= len(edges); cur = next[cur] {
		order = append(order, cur)
	}
	return order, nil
}

// lockEdges locks the CURRENT edges leaving a and b, keyed by assassin.
// If either is missing the whole sorted set is locked again with a fresh
// statement: an edge inserted by a repair that committed while we waited
// is invisible to the first one, and re-locking both keeps the order.
func (r *Ring) lockEdges(ctx context.Context, tx storage.Tx, gameID model.GameID, a, b model.PlayerID) (map[model.PlayerID]model.Assignment, error) {
	ids := []model.PlayerID{a, b}
	slices.Sort(ids)

	edges, err := tx.LockCurrentAssignments(ctx, gameID, ids)
	if err != nil {
		return nil, err
	}
	if len(edges) < len(ids) {
		if edges, err = tx.LockCurrentAssignments(ctx, gameID, ids); err != nil {
			return nil, err
		}
	}
	locked := make(map[model.PlayerID]model.Assignment, len(ids))
	for _, e := range edges {
		locked[e.Assassin] = e
	}
	return locked, nil
}

func (r *Ring) open(ctx context.Context, tx storage.Tx, gameID model.GameID, assassin, target model.PlayerID) error {
	return tx.CreateAssignment(ctx, &model.Assignment{
		GameID:    gameID,
		Assassin:  assassin,
		Target:    target,
		Status:    model.AssignmentCurrent,
		StartedAt: r.clock.Now(),
	})
}

func (r *Ring) corrupted(gameID model.GameID, msg string, attrs ...any) error {
	attrs = append(attrs, slog.Int64("game_id", int64(gameID)))
	r.logger.Error("assignment ring corrupted: "+msg, attrs...)
	return fmt.Errorf("%w: %s", model.ErrRingCorrupted, msg)
}
