package cli

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/assassingame/internal/api/request"
	"github.com/mcoot/assassingame/internal/api/response"
)

func newGameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Create, play and inspect games",
	}

	cmd.AddCommand(newGameCreateCmd())

	cmd.AddCommand(newGameActionCmd[response.Membership]("join", "Join a game that is waiting for players"))
	cmd.AddCommand(newGameActionCmd[response.Game]("start", "Start the game and assign targets (owner only)"))
	cmd.AddCommand(newGameActionCmd[response.KillResult]("kill", "Confirm the elimination of your current target"))
	cmd.AddCommand(newGameActionCmd[response.Game]("stop", "Finish a game whose end time has passed (owner only)"))
	cmd.AddCommand(newGameLeaveCmd())

	cmd.AddCommand(newGameQueryCmd[response.GameStatus]("status", "Show a game's public status"))
	cmd.AddCommand(newGameQueryCmd[response.GameInfo]("info", "Show the game roster (members only)"))
	cmd.AddCommand(newGameQueryCmd[[]response.Codename]("codenames", "List codenames and their status (members only)"))
	cmd.AddCommand(newGameQueryCmd[response.AgentInfo]("agent", "Show your codename, target and kills (members only)"))
	cmd.AddCommand(newGameQueryCmd[response.EndTime]("end", "Show when the game ends (members only)"))

	return cmd
}

// gamePath builds /api/v1/games/{code}/{action}. Codes are case-insensitive.
func gamePath(code, action string) string {
	return fmt.Sprintf("/api/v1/games/%s/%s", url.PathEscape(strings.ToUpper(code)), action)
}

func newGameCreateCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new game and join it as owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var result response.Game
			if err := client.Post(cmd.Context(), "/api/v1/games", request.CreateGameRequest{Name: name}, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Game name")
	return cmd
}

func newGameLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave <code>",
		Short: "Leave a game; your assassin inherits your target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Post(cmd.Context(), gamePath(args[0], "leave"), nil, nil); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).PrintMessage("Left game " + strings.ToUpper(args[0]))
			return nil
		},
	}
}

// newGameActionCmd builds "<action> <code>", a body-less POST to the game's action endpoint
func newGameActionCmd[T any](action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <code>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result T
			if err := client.Post(cmd.Context(), gamePath(args[0], action), nil, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

// newGameQueryCmd builds "<action> <code>", a GET of the game's action endpoint
func newGameQueryCmd[T any](action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <code>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result T
			if err := client.Get(cmd.Context(), gamePath(args[0], action), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}
