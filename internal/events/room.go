package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/assassingame/internal/model"
)

// Frames buffered per subscriber before new ones are dropped
const subscriberBuffer = 64

// Subscriber is one listener on a game's room
type Subscriber struct {
	playerID model.PlayerID
	frames   chan []byte
	joinedAt time.Time
}

// Frames yields SSE frames until the subscriber leaves or the room closes
func (s *Subscriber) Frames() <-chan []byte {
	return s.frames
}

// Room holds the live subscribers of one game. Delivery happens inline on
// the publishing goroutine and never blocks on a slow reader.
type Room struct {
	code   model.GameCode
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	closed bool
}

func newRoom(code model.GameCode, logger *slog.Logger) *Room {
	return &Room{
		code:   code,
		logger: logger.With(slog.String("game_code", string(code))),
		subs:   make(map[*Subscriber]struct{}),
	}
}

// Join adds a subscriber for the player. ok is false once the room is closed.
func (r *Room) Join(playerID model.PlayerID) (sub *Subscriber, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false
	}
	sub = &Subscriber{playerID: playerID, frames: make(chan []byte, subscriberBuffer), joinedAt: time.Now()}
	r.subs[sub] = struct{}{}
	r.logger.Info("event subscriber joined",
		slog.Int64("player_id", int64(playerID)),
		slog.Int("subscribers", len(r.subs)))
	return sub, true
}

// Leave removes the subscriber and closes its frame channel. Safe to call twice.
func (r *Room) Leave(sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[sub]; !ok {
		return
	}
	delete(r.subs, sub)
	close(sub.frames)
	r.logger.Info("event subscriber left",
		slog.Int64("player_id", int64(sub.playerID)),
		slog.Duration("connection_duration", time.Since(sub.joinedAt)),
		slog.Int("subscribers", len(r.subs)))
}

// Deliver hands a frame to every subscriber with room in its buffer
func (r *Room) Deliver(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for sub := range r.subs {
		select {
		case sub.frames <- frame:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		r.logger.Warn("event dropped for slow subscribers", slog.Int("dropped", dropped))
	}
}

// Subscribers returns the number of joined subscribers
func (r *Room) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// close disconnects everyone; later joins fail
func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for sub := range r.subs {
		close(sub.frames)
	}
	if n := len(r.subs); n > 0 {
		r.logger.Debug("event room closed", slog.Int("disconnected", n))
	}
	clear(r.subs)
}

// idle reports whether nobody is subscribed
func (r *Room) idle() bool {
	return r.Subscribers() == 0
}

// FormatFrame renders one SSE frame. Each data line gets its own "data: " prefix.
func FormatFrame(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: " + eventName + "\n")
	data = strings.ReplaceAll(data, "\r", "")
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// Rooms is the in-process Publisher: one room per game that has listeners
type Rooms struct {
	mu     sync.Mutex
	rooms  map[model.GameCode]*Room
	logger *slog.Logger
}

var _ Publisher = (*Rooms)(nil)

// NewRooms creates an empty room registry
func NewRooms(logger *slog.Logger) *Rooms {
	return &Rooms{
		rooms:  make(map[model.GameCode]*Room),
		logger: logger.With(slog.String("component", "events")),
	}
}

// Open returns the game's room, creating it on first use
func (rs *Rooms) Open(code model.GameCode) *Room {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	room, ok := rs.rooms[code]
	if !ok {
		room = newRoom(code, rs.logger)
		rs.rooms[code] = room
	}
	return room
}

// Lookup returns the game's room, or nil if none is open
func (rs *Rooms) Lookup(code model.GameCode) *Room {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.rooms[code]
}

// Publish encodes the event once and delivers it to its game's room
func (rs *Rooms) Publish(_ context.Context, event model.Event) {
	room := rs.Lookup(event.GameCode)
	if room == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		rs.logger.Error("failed to encode event",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()))
		return
	}
	room.Deliver(FormatFrame(string(event.Type), string(data)))
}

// Drop closes a game's room
func (rs *Rooms) Drop(code model.GameCode) {
	rs.mu.Lock()
	room, ok := rs.rooms[code]
	delete(rs.rooms, code)
	rs.mu.Unlock()
	if ok {
		room.close()
	}
}

// SweepIdle closes rooms nobody is listening in and returns how many went
func (rs *Rooms) SweepIdle() int {
	rs.mu.Lock()
	var idle []*Room
	for code, room := range rs.rooms {
		if room.idle() {
			idle = append(idle, room)
			delete(rs.rooms, code)
		}
	}
	rs.mu.Unlock()

	for _, room := range idle {
		room.close()
	}
	if len(idle) > 0 {
		rs.logger.Debug("idle event rooms swept", slog.Int("removed", len(idle)))
	}
	return len(idle)
}

// Close closes every room
func (rs *Rooms) Close() {
	rs.mu.Lock()
	rooms := rs.rooms
	rs.rooms = make(map[model.GameCode]*Room)
	rs.mu.Unlock()
	for _, room := range rooms {
		room.close()
	}
}
