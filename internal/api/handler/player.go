package handler

import (
	"net/http"

	"github.com/mcoot/assassingame/internal/api/middleware"
	"github.com/mcoot/assassingame/internal/api/request"
	"github.com/mcoot/assassingame/internal/api/response"
	"github.com/mcoot/assassingame/internal/services/game"
	"github.com/mcoot/assassingame/internal/services/player"
)

// PlayerHandler handles player-related endpoints
type PlayerHandler struct {
	players *player.Registry
	games   *game.Controller
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(players *player.Registry, games *game.Controller) *PlayerHandler {
	return &PlayerHandler{
		players: players,
		games:   games,
	}
}

// Register handles POST /api/v1/players/register
func (h *PlayerHandler) Register(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	var req request.RegisterRequest
	if err := decodeOptional(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	p, err := h.players.Register(r.Context(), identity, req.Nickname)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.PlayerFromModel(p))
}

// GetMe handles GET /api/v1/players/me
func (h *PlayerHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	p, err := h.players.Me(r.Context(), identity)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PlayerFromModel(p))
}

// GetInfo handles GET /api/v1/players/me/info
func (h *PlayerHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	info, err := h.games.UserInfo(r.Context(), identity)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.UserInfoFromModel(info))
}
