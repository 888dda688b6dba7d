package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/assassingame/internal/api/request"
	"github.com/mcoot/assassingame/internal/api/response"
)

func newPlayerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Manage your token and player profile",
	}

	cmd.AddCommand(
		newPlayerLoginCmd(),
		newPlayerLogoutCmd(),
		newPlayerRegisterCmd(),
		newPlayerGetCmd[response.Player]("me", "Show your player profile", "/api/v1/players/me"),
		newPlayerGetCmd[response.UserInfo]("info", "Show your active game and lifetime kills", "/api/v1/players/me/info"),
	)
	return cmd
}

func newPlayerLoginCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a bearer token from your identity provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token = strings.TrimSpace(token)
			if token == "" {
				return errors.New("--token must not be empty")
			}
			if err := cfg.SaveToken(token); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).PrintMessage("Token saved to " + cfg.TokenFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Bearer token (required)")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newPlayerLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.ClearToken(); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).PrintMessage("Token removed")
			return nil
		},
	}
}

func newPlayerRegisterCmd() *cobra.Command {
	var nickname string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register the token's identity as a player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var result response.Player
			if err := client.Post(cmd.Context(), "/api/v1/players/register", request.RegisterRequest{Nickname: nickname}, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
	cmd.Flags().StringVar(&nickname, "nickname", "", "Nickname (defaults to the part of your email before @)")
	return cmd
}

func newPlayerGetCmd[T any](use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var result T
			if err := client.Get(cmd.Context(), path, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}
