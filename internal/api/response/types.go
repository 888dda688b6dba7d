package response

import (
	"time"

	"github.com/mcoot/assassingame/internal/model"
)

// Player represents a player in API responses
type Player struct {
	ID           int64     `json:"id"`
	Nickname     string    `json:"nickname"`
	Email        string    `json:"email,omitempty"`
	Role         string    `json:"role"`
	Picture      *string   `json:"picture,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	return Player{
		ID:           int64(p.ID),
		Nickname:     p.Nickname,
		Email:        p.Email,
		Role:         string(p.Role),
		Picture:      p.Picture,
		RegisteredAt: p.RegisteredAt,
	}
}

// Game is a game's public shape
type Game struct {
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
}

// GameFromModel converts a model.Game
func GameFromModel(g *model.Game) Game {
	return Game{
		Code:      string(g.Code),
		Name:      g.Name,
		Status:    string(g.Status),
		CreatedAt: g.CreatedAt,
		StartedAt: g.StartedAt,
		EndsAt:    g.EndsAt,
	}
}

// Membership is returned on join
type Membership struct {
	Code     string `json:"code"`
	Codename string `json:"codename"`
	Status   string `json:"status"`
}

// MembershipFromModel converts a model.Membership
func MembershipFromModel(code model.GameCode, m *model.Membership) Membership {
	return Membership{Code: string(code), Codename: m.Codename, Status: string(m.Status)}
}

// Target identifies an agent's target
type Target struct {
	Nickname string  `json:"nickname"`
	Picture  *string `json:"picture,omitempty"`
}

func targetFromModel(t *model.TargetInfo) *Target {
	if t == nil {
		return nil
	}
	return &Target{Nickname: t.Nickname, Picture: t.Picture}
}

// KillResult is returned to the assassin after a kill
type KillResult struct {
	Victim   string  `json:"victim"`
	Target   *Target `json:"target,omitempty"`
	GameOver bool    `json:"game_over"`
}

// KillResultFromModel converts a model.KillResult
func KillResultFromModel(k *model.KillResult) KillResult {
	return KillResult{Victim: k.VictimCodename, Target: targetFromModel(k.Target), GameOver: k.GameOver}
}

// GameStatus is the public status of a game
type GameStatus struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// GameStatusFromModel converts a model.GameStatusInfo
func GameStatusFromModel(s *model.GameStatusInfo) GameStatus {
	return GameStatus{Code: string(s.Code), Name: s.Name, Status: string(s.Status)}
}

// Member is a roster entry
type Member struct {
	Nickname string  `json:"nickname"`
	Picture  *string `json:"picture,omitempty"`
	Status   string  `json:"status"`
}

// GameInfo is the member view of a game
type GameInfo struct {
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	Owner     string     `json:"owner"`
	Members   []Member   `json:"members"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	Winner    *string    `json:"winner,omitempty"`
}

// GameInfoFromModel converts a model.GameInfo
func GameInfoFromModel(g *model.GameInfo) GameInfo {
	members := make([]Member, len(g.Members))
	for i, m := range g.Members {
		members[i] = Member{Nickname: m.Nickname, Picture: m.Picture, Status: string(m.Status)}
	}
	return GameInfo{
		Code:      string(g.Code),
		Name:      g.Name,
		Status:    string(g.Status),
		Owner:     g.OwnerNickname,
		Members:   members,
		StartedAt: g.StartedAt,
		EndsAt:    g.EndsAt,
		Winner:    g.Winner,
	}
}

// Codename is one entry of the codename board
type Codename struct {
	Codename string `json:"codename"`
	Status   string `json:"status"`
}

// CodenamesFromModel converts a codename board
func CodenamesFromModel(names []model.CodenameInfo) []Codename {
	out := make([]Codename, len(names))
	for i, n := range names {
		out[i] = Codename{Codename: n.Codename, Status: string(n.Status)}
	}
	return out
}

// AgentInfo is a member's private view
type AgentInfo struct {
	Codename string  `json:"codename"`
	Alive    bool    `json:"alive"`
	Target   *Target `json:"target,omitempty"`
	Kills    int     `json:"kills"`
}

// AgentInfoFromModel converts a model.AgentInfo
func AgentInfoFromModel(a *model.AgentInfo) AgentInfo {
	return AgentInfo{Codename: a.Codename, Alive: a.Alive, Target: targetFromModel(a.Target), Kills: a.Kills}
}

// UserInfo summarises a player across games
type UserInfo struct {
	ActiveGame *string `json:"active_game,omitempty"`
	Kills      int     `json:"kills"`
}

// UserInfoFromModel converts a model.UserInfo
func UserInfoFromModel(u *model.UserInfo) UserInfo {
	info := UserInfo{Kills: u.Kills}
	if u.ActiveGame != nil {
		code := string(*u.ActiveGame)
		info.ActiveGame = &code
	}
	return info
}

// EndTime is a game's end, null before it starts
type EndTime struct {
	EndsAt *time.Time `json:"ends_at"`
}
