package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/mcoot/assassingame/internal/api/response"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Player:
		o.printPlayer(v)
	case response.UserInfo:
		o.printUserInfo(v)
	case response.Game:
		o.printGame(v)
	case response.Membership:
		o.printf("Joined %s as %s\n", v.Code, v.Codename)
	case response.GameStatus:
		o.printf("Game: %s\n", v.Code)
		if v.Name != "" {
			o.printf("Name: %s\n", v.Name)
		}
		o.printf("Status: %s\n", v.Status)
	case response.GameInfo:
		o.printGameInfo(v)
	case []response.Codename:
		for _, c := range v {
			o.printf("  - %s (%s)\n", c.Codename, c.Status)
		}
	case response.AgentInfo:
		o.printAgentInfo(v)
	case response.KillResult:
		o.printKillResult(v)
	case response.EndTime:
		if v.EndsAt == nil {
			o.printf("Game has not started\n")
		} else {
			o.printf("Ends at: %s\n", formatTime(*v.EndsAt))
		}
	case HealthResult:
		o.printf("Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, format, args...)
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04 MST")
}

func (o *Output) printPlayer(p response.Player) {
	o.printf("Player: %s (%d)\n", p.Nickname, p.ID)
	if p.Email != "" {
		o.printf("Email: %s\n", p.Email)
	}
	o.printf("Role: %s\n", p.Role)
}

func (o *Output) printUserInfo(u response.UserInfo) {
	if u.ActiveGame != nil {
		o.printf("Active game: %s\n", *u.ActiveGame)
	} else {
		o.printf("Active game: none\n")
	}
	o.printf("Lifetime kills: %d\n", u.Kills)
}

func (o *Output) printGame(g response.Game) {
	o.printf("Game: %s\n", g.Code)
	if g.Name != "" {
		o.printf("Name: %s\n", g.Name)
	}
	o.printf("Status: %s\n", g.Status)
	if g.EndsAt != nil {
		o.printf("Ends at: %s\n", formatTime(*g.EndsAt))
	}
}

func (o *Output) printGameInfo(g response.GameInfo) {
	o.printf("Game: %s\n", g.Code)
	if g.Name != "" {
		o.printf("Name: %s\n", g.Name)
	}
	o.printf("Status: %s\n", g.Status)
	o.printf("Owner: %s\n", g.Owner)
	if g.EndsAt != nil {
		o.printf("Ends at: %s\n", formatTime(*g.EndsAt))
	}
	o.printf("Members (%d):\n", len(g.Members))
	for _, m := range g.Members {
		o.printf("  - %s (%s)\n", m.Nickname, m.Status)
	}
	if g.Winner != nil {
		o.printf("\nWinner: %s\n", *g.Winner)
	}
}

func (o *Output) printAgentInfo(a response.AgentInfo) {
	o.printf("Codename: %s\n", a.Codename)
	if a.Alive {
		o.printf("Status: alive\n")
	} else {
		o.printf("Status: eliminated\n")
	}
	if a.Target != nil {
		o.printf("Target: %s\n", a.Target.Nickname)
	}
	o.printf("Kills: %d\n", a.Kills)
}

func (o *Output) printKillResult(k response.KillResult) {
	o.printf("Eliminated: %s\n", k.Victim)
	if k.GameOver {
		o.printf("Game over - you are the last agent standing!\n")
		return
	}
	if k.Target != nil {
		o.printf("Next target: %s\n", k.Target.Nickname)
	}
}
