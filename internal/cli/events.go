package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	var (
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "events <code>",
		Short: "Stream live events from a game",
		Long: `Connect to the game's event stream and print events as they happen.
Only members of the game may subscribe.

Events include:
  - player_joined: A player joined while the game was waiting
  - player_left: A player left the game
  - game_started: Targets have been assigned
  - player_eliminated: An agent was eliminated
  - game_finished: The game is over

Press Ctrl+C to disconnect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return streamEvents(cmd.Context(), cmd.OutOrStdout(), args[0], jsonOutput, limit)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")
	cmd.Flags().IntVar(&limit, "limit", 0, "Disconnect after this many game events (0 streams until interrupted)")

	return cmd
}

// SSEEvent represents a parsed SSE event
type SSEEvent struct {
	Time  time.Time `json:"time"`
	Event string    `json:"event"`
	Data  string    `json:"data"`
}

func streamEvents(ctx context.Context, w io.Writer, code string, jsonOutput bool, limit int) error {
	body, err := client.Stream(ctx, gamePath(code, "events"))
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	if !jsonOutput {
		_, _ = fmt.Fprintf(w, "Connected to game %s\n", strings.ToUpper(code))
	}

	// Parse SSE stream
	scanner := bufio.NewScanner(body)
	var currentEvent string
	var dataLines []string
	seen := 0

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			// End of event
			if currentEvent != "" {
				printEvent(w, currentEvent, strings.Join(dataLines, "\n"), jsonOutput)
				if currentEvent != "connected" {
					seen++
				}
			}
			currentEvent = ""
			dataLines = nil
			if limit > 0 && seen >= limit {
				return nil
			}
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream error: %w", err)
	}

	if !jsonOutput {
		_, _ = fmt.Fprintln(w, "Disconnected")
	}
	return nil
}

func printEvent(w io.Writer, event, data string, jsonOutput bool) {
	now := time.Now()

	if jsonOutput {
		evt := SSEEvent{
			Time:  now,
			Event: event,
			Data:  data,
		}
		jsonData, _ := json.Marshal(evt)
		_, _ = fmt.Fprintln(w, string(jsonData))
		return
	}

	timestamp := now.Format("2006-01-02 15:04:05")
	// Truncate data if it's too long for display
	displayData := data
	if len(displayData) > 160 {
		displayData = displayData[:160] + "..."
	}
	displayData = strings.ReplaceAll(displayData, "\n", " ")
	_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", timestamp, event, displayData)
}

