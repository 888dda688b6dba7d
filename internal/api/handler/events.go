package handler

import (
	"net/http"

	"github.com/mcoot/assassingame/internal/api/apierr"
	"github.com/mcoot/assassingame/internal/api/middleware"
	"github.com/mcoot/assassingame/internal/events"
	"github.com/mcoot/assassingame/internal/services/game"
)

// EventsHandler streams game events to members over SSE
type EventsHandler struct {
	games *game.Controller
	rooms *events.Rooms
}

// NewEventsHandler creates a new events handler. rooms may be nil when events are disabled.
func NewEventsHandler(games *game.Controller, rooms *events.Rooms) *EventsHandler {
	return &EventsHandler{games: games, rooms: rooms}
}

// Stream handles GET /api/v1/games/{code}/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.rooms == nil {
		WriteError(w, apierr.NewEventsUnavailableError())
		return
	}
	identity := middleware.MustGetIdentity(r.Context())
	code := gameCode(r)

	playerID, err := h.games.RequireMember(r.Context(), identity, code)
	if err != nil {
		WriteError(w, err)
		return
	}

	events.ServeSSE(w, r, h.rooms.Open(code), playerID)
}
