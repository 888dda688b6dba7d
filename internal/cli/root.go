package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd builds the assassin command tree
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	root := &cobra.Command{
		Use:   "assassin",
		Short: "Client for the assassin game server",
		Long: `assassin talks to an assassin game server.

Register as a player, then create or join a game with its 8-character code.
Once the owner starts the game every agent is handed one target; confirm a
kill with "assassin game kill <code>" and you inherit your victim's target.
The last agent standing wins.

Tokens come from your identity provider. Store one with
"assassin player login --token <jwt>" or pass --token on each call.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.LoadToken(); err != nil {
				return err
			}
			client = NewClient(cfg.ServerURL, cfg.Token)
			return nil
		},
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: ASSASSIN_SERVER)")
	flags.StringVar(&cfg.Token, "token", cfg.Token, "Bearer token (env: ASSASSIN_TOKEN)")
	flags.StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "Token file path (env: ASSASSIN_TOKEN_FILE)")
	flags.StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json (env: ASSASSIN_OUTPUT)")

	root.AddCommand(
		newPlayerCmd(),
		newGameCmd(),
		newEventsCmd(),
		newHealthCmd(),
	)
	return root
}

// Execute runs the CLI until completion or SIGINT/SIGTERM
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
