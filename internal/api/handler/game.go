package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/assassingame/internal/api/middleware"
	"github.com/mcoot/assassingame/internal/api/request"
	"github.com/mcoot/assassingame/internal/api/response"
	"github.com/mcoot/assassingame/internal/model"
	"github.com/mcoot/assassingame/internal/services/game"
)

// GameHandler handles game-related endpoints
type GameHandler struct {
	games *game.Controller
}

// NewGameHandler creates a new game handler
func NewGameHandler(games *game.Controller) *GameHandler {
	return &GameHandler{games: games}
}

// gameCode reads the {code} path variable. Codes are case-insensitive on input.
func gameCode(r *http.Request) model.GameCode {
	return model.GameCode(strings.ToUpper(mux.Vars(r)["code"]))
}

// Create handles POST /api/v1/games
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	var req request.CreateGameRequest
	if err := decodeOptional(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	g, err := h.games.CreateGame(r.Context(), identity, req.Name)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.GameFromModel(g))
}

// Join handles POST /api/v1/games/{code}/join
func (h *GameHandler) Join(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())
	code := gameCode(r)

	m, err := h.games.JoinGame(r.Context(), identity, code)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.MembershipFromModel(code, m))
}

// Start handles POST /api/v1/games/{code}/start
func (h *GameHandler) Start(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	g, err := h.games.StartGame(r.Context(), identity, gameCode(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameFromModel(g))
}

// Kill handles POST /api/v1/games/{code}/kill
func (h *GameHandler) Kill(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	result, err := h.games.KillPlayer(r.Context(), identity, gameCode(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.KillResultFromModel(result))
}

// Leave handles POST /api/v1/games/{code}/leave
func (h *GameHandler) Leave(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	if err := h.games.LeaveGame(r.Context(), identity, gameCode(r)); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// Stop handles POST /api/v1/games/{code}/stop
func (h *GameHandler) Stop(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	g, err := h.games.StopGame(r.Context(), identity, gameCode(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameFromModel(g))
}

// Status handles GET /api/v1/games/{code}/status
func (h *GameHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.games.Status(r.Context(), gameCode(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameStatusFromModel(status))
}

// Info handles GET /api/v1/games/{code}/info
func (h *GameHandler) Info(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	info, err := h.games.GameInfo(r.Context(), identity, gameCode(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameInfoFromModel(info))
}

// Codenames handles GET /api/v1/games/{code}/codenames
func (h *GameHandler) Codenames(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	names, err := h.games.Codenames(r.Context(), identity, gameCode(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.CodenamesFromModel(names))
}

// Agent handles GET /api/v1/games/{code}/agent
func (h *GameHandler) Agent(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	info, err := h.games.AgentInfo(r.Context(), identity, gameCode(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AgentInfoFromModel(info))
}

// End handles GET /api/v1/games/{code}/end
func (h *GameHandler) End(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	end, err := h.games.EndTime(r.Context(), identity, gameCode(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.EndTime{EndsAt: end})
}
