package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/assassingame/internal/api"
	"github.com/mcoot/assassingame/internal/api/response"
	"github.com/mcoot/assassingame/internal/factory"
	"github.com/mcoot/assassingame/internal/testutil"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	t.Cleanup(func() { _ = app.Close() })

	router := api.NewRouter(api.RouterConfig{
		Logger:         testutil.NopLogger(),
		Verifier:       app.AuthService,
		Players:        app.Players,
		GameController: app.GameController,
		Rooms:          app.Rooms,
	})

	return &testServer{
		handler: router,
		app:     app,
	}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error.Code
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

// registerPlayer registers subject under nickname and returns its token
func registerPlayer(t *testing.T, ts *testServer, subject, nickname string) string {
	t.Helper()
	token := ts.app.Token(subject)
	rr := ts.request(http.MethodPost, "/api/v1/players/register", map[string]string{"nickname": nickname}, token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return token
}

// createGame creates a game with the given code and returns it
func createGame(t *testing.T, ts *testServer, token, code string) response.Game {
	t.Helper()
	ts.app.MockRandom.QueueString(code)
	rr := ts.request(http.MethodPost, "/api/v1/games", map[string]string{"name": "Office Party"}, token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[response.Game](t, rr)
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestRegisterAndGetMe(t *testing.T) {
	ts := newTestServer(t)

	token := ts.app.Token("alice")
	rr := ts.request(http.MethodPost, "/api/v1/players/register", map[string]string{"nickname": "  Alice  "}, token)
	require.Equal(t, http.StatusCreated, rr.Code)
	player := decode[response.Player](t, rr)
	assert.Equal(t, "Alice", player.Nickname)
	assert.Equal(t, "alice@example.com", player.Email)

	// Registering twice is rejected
	rr = ts.request(http.MethodPost, "/api/v1/players/register", map[string]string{"nickname": "Alice"}, token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "ALREADY_REGISTERED", errorCode(t, rr))

	rr = ts.request(http.MethodGet, "/api/v1/players/me", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	me := decode[response.Player](t, rr)
	assert.Equal(t, player.ID, me.ID)
}

func TestRegisterWithoutBodyFallsBackToEmail(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/players/register", nil, ts.app.Token("bob"))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.NotEmpty(t, decode[response.Player](t, rr).Nickname)
}

func TestMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/players/register", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+ts.app.Token("alice"))
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, rr))
}

func TestUnregisteredCaller(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/players/me", nil, ts.app.Token("nobody"))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "NOT_REGISTERED", errorCode(t, rr))
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/players/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/games", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/players/me", nil)
	req.Header.Set("Authorization", "Basic "+ts.app.Token("alice"))
	rr = httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestBearerSchemeIsCaseInsensitive(t *testing.T) {
	ts := newTestServer(t)
	registerPlayer(t, ts, "alice", "Alice")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/players/me", nil)
	req.Header.Set("Authorization", "bearer "+ts.app.Token("alice"))
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestExpiredToken(t *testing.T) {
	ts := newTestServer(t)

	token := registerPlayer(t, ts, "alice", "Alice")
	ts.app.MockClock.Advance(2 * time.Hour)

	rr := ts.request(http.MethodGet, "/api/v1/players/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestStatusIsPublic(t *testing.T) {
	ts := newTestServer(t)

	alice := registerPlayer(t, ts, "alice", "Alice")
	createGame(t, ts, alice, "GAME0001")

	// Codes are accepted in any case
	rr := ts.request(http.MethodGet, "/api/v1/games/game0001/status", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	status := decode[response.GameStatus](t, rr)
	assert.Equal(t, "GAME0001", status.Code)
	assert.Equal(t, "Office Party", status.Name)
	assert.Equal(t, "WAITING_FOR_PLAYERS", status.Status)

	rr = ts.request(http.MethodGet, "/api/v1/games/NOPE0000/status", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "GAME_NOT_FOUND", errorCode(t, rr))
}

func TestFullGameFlow(t *testing.T) {
	ts := newTestServer(t)

	alice := registerPlayer(t, ts, "alice", "Alice")
	bob := registerPlayer(t, ts, "bob", "Bob")
	carol := registerPlayer(t, ts, "carol", "Carol")

	game := createGame(t, ts, alice, "GAME0001")
	base := "/api/v1/games/" + game.Code

	// Only the owner can start, and not alone
	rr := ts.request(http.MethodPost, base+"/start", nil, alice)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "NOT_ENOUGH_PLAYERS", errorCode(t, rr))

	rr = ts.request(http.MethodPost, base+"/join", nil, bob)
	require.Equal(t, http.StatusOK, rr.Code)
	membership := decode[response.Membership](t, rr)
	assert.Equal(t, "ALIVE", membership.Status)
	assert.NotEmpty(t, membership.Codename)

	rr = ts.request(http.MethodPost, base+"/join", nil, carol)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPost, base+"/start", nil, bob)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "NOT_GAME_OWNER", errorCode(t, rr))

	// Kill before start
	rr = ts.request(http.MethodPost, base+"/kill", nil, alice)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "GAME_NOT_STARTED", errorCode(t, rr))

	rr = ts.request(http.MethodGet, base+"/end", nil, alice)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, decode[response.EndTime](t, rr).EndsAt)

	// Unshuffled ring: Alice -> Bob -> Carol -> Alice
	ts.app.MockRandom.QueueIdentityShuffle(3)
	rr = ts.request(http.MethodPost, base+"/start", nil, alice)
	require.Equal(t, http.StatusOK, rr.Code)
	started := decode[response.Game](t, rr)
	assert.Equal(t, "ACTIVE", started.Status)
	require.NotNil(t, started.EndsAt)

	rr = ts.request(http.MethodGet, base+"/end", nil, bob)
	require.Equal(t, http.StatusOK, rr.Code)
	end := decode[response.EndTime](t, rr)
	require.NotNil(t, end.EndsAt)
	assert.True(t, started.EndsAt.Equal(*end.EndsAt))

	rr = ts.request(http.MethodGet, base+"/agent", nil, alice)
	require.Equal(t, http.StatusOK, rr.Code)
	agent := decode[response.AgentInfo](t, rr)
	assert.True(t, agent.Alive)
	require.NotNil(t, agent.Target)
	assert.Equal(t, "Bob", agent.Target.Nickname)

	// Alice kills Bob
	rr = ts.request(http.MethodPost, base+"/kill", nil, alice)
	require.Equal(t, http.StatusOK, rr.Code)
	kill := decode[response.KillResult](t, rr)
	assert.Equal(t, membership.Codename, kill.Victim)
	assert.False(t, kill.GameOver)
	require.NotNil(t, kill.Target)
	assert.Equal(t, "Carol", kill.Target.Nickname)

	// Bob is dead and has no target
	rr = ts.request(http.MethodPost, base+"/kill", nil, bob)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "NO_CURRENT_TARGET", errorCode(t, rr))

	rr = ts.request(http.MethodGet, base+"/codenames", nil, bob)
	require.Equal(t, http.StatusOK, rr.Code)
	codenames := decode[[]response.Codename](t, rr)
	assert.Len(t, codenames, 3)

	// Carol kills Alice and wins
	rr = ts.request(http.MethodPost, base+"/kill", nil, carol)
	require.Equal(t, http.StatusOK, rr.Code)
	kill = decode[response.KillResult](t, rr)
	assert.True(t, kill.GameOver)
	assert.Nil(t, kill.Target)

	rr = ts.request(http.MethodGet, base+"/info", nil, bob)
	require.Equal(t, http.StatusOK, rr.Code)
	info := decode[response.GameInfo](t, rr)
	assert.Equal(t, "FINISHED", info.Status)
	assert.Equal(t, "Alice", info.Owner)
	assert.Len(t, info.Members, 3)
	require.NotNil(t, info.Winner)
	assert.Equal(t, "Carol", *info.Winner)

	rr = ts.request(http.MethodPost, base+"/kill", nil, carol)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "NO_CURRENT_TARGET", errorCode(t, rr))

	rr = ts.request(http.MethodGet, "/api/v1/players/me/info", nil, carol)
	require.Equal(t, http.StatusOK, rr.Code)
	user := decode[response.UserInfo](t, rr)
	assert.Equal(t, 1, user.Kills)
	assert.Nil(t, user.ActiveGame)
}

func TestMemberOnlyQueries(t *testing.T) {
	ts := newTestServer(t)

	alice := registerPlayer(t, ts, "alice", "Alice")
	mallory := registerPlayer(t, ts, "mallory", "Mallory")
	game := createGame(t, ts, alice, "GAME0001")
	base := "/api/v1/games/" + game.Code

	for _, path := range []string{"/info", "/codenames", "/agent", "/end"} {
		rr := ts.request(http.MethodGet, base+path, nil, mallory)
		assert.Equal(t, http.StatusForbidden, rr.Code, path)
		assert.Equal(t, "NOT_IN_GAME", errorCode(t, rr), path)
	}

	rr := ts.request(http.MethodGet, "/api/v1/players/me/info", nil, alice)
	require.Equal(t, http.StatusOK, rr.Code)
	user := decode[response.UserInfo](t, rr)
	require.NotNil(t, user.ActiveGame)
	assert.Equal(t, game.Code, *user.ActiveGame)
}

func TestLeaveAndStop(t *testing.T) {
	ts := newTestServer(t)

	alice := registerPlayer(t, ts, "alice", "Alice")
	bob := registerPlayer(t, ts, "bob", "Bob")
	carol := registerPlayer(t, ts, "carol", "Carol")
	game := createGame(t, ts, alice, "GAME0001")
	base := "/api/v1/games/" + game.Code

	for _, token := range []string{bob, carol} {
		rr := ts.request(http.MethodPost, base+"/join", nil, token)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := ts.request(http.MethodPost, base+"/start", nil, alice)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPost, base+"/leave", nil, carol)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodPost, base+"/leave", nil, carol)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "NOT_IN_GAME", errorCode(t, rr))

	// Stopping before the end time is refused
	rr = ts.request(http.MethodPost, base+"/stop", nil, alice)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "GAME_NOT_OVER", errorCode(t, rr))

	ts.app.MockClock.Advance(73 * time.Hour)
	rr = ts.request(http.MethodPost, base+"/stop", nil, ts.app.Token("alice"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "FINISHED", decode[response.Game](t, rr).Status)
}

func TestSecondGameRejected(t *testing.T) {
	ts := newTestServer(t)

	alice := registerPlayer(t, ts, "alice", "Alice")
	bob := registerPlayer(t, ts, "bob", "Bob")
	createGame(t, ts, alice, "GAME0001")
	other := createGame(t, ts, bob, "GAME0002")

	rr := ts.request(http.MethodPost, "/api/v1/games/"+other.Code+"/join", nil, alice)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "ALREADY_IN_ANOTHER_GAME", errorCode(t, rr))
}

func TestEventsDisabled(t *testing.T) {
	app := factory.NewTestApp()
	t.Cleanup(func() { _ = app.Close() })

	router := api.NewRouter(api.RouterConfig{
		Logger:         testutil.NopLogger(),
		Verifier:       app.AuthService,
		Players:        app.Players,
		GameController: app.GameController,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/games/GAME0001/events?access_token="+app.Token("alice"), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotImplemented, rr.Code)
	assert.Equal(t, "EVENTS_UNAVAILABLE", errorCode(t, rr))
}

func TestEventsRequireMembership(t *testing.T) {
	ts := newTestServer(t)

	alice := registerPlayer(t, ts, "alice", "Alice")
	mallory := registerPlayer(t, ts, "mallory", "Mallory")
	createGame(t, ts, alice, "GAME0001")

	rr := ts.request(http.MethodGet, "/api/v1/games/GAME0001/events", nil, mallory)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestEventsStream(t *testing.T) {
	ts := newTestServer(t)
	server := httptest.NewServer(ts.handler)
	t.Cleanup(server.Close)

	alice := registerPlayer(t, ts, "alice", "Alice")
	bob := registerPlayer(t, ts, "bob", "Bob")
	game := createGame(t, ts, alice, "GAME0001")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// EventSource cannot set headers, so the token travels as a query parameter
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		server.URL+"/api/v1/games/"+game.Code+"/events?access_token="+alice, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	waitFor := func(event string) {
		t.Helper()
		for lines.Scan() {
			if lines.Text() == "event: "+event {
				return
			}
		}
		t.Fatalf("stream ended before %q", event)
	}

	waitFor("connected")

	rr := ts.request(http.MethodPost, "/api/v1/games/"+game.Code+"/join", nil, bob)
	require.Equal(t, http.StatusOK, rr.Code)

	waitFor("player_joined")
	require.True(t, lines.Scan())
	assert.Contains(t, lines.Text(), `"type":"player_joined"`)
}
