package main

import (
	"os"
	"strings"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/aretw0/stategraph"
	"github.com/aretw0/stategraph/internal/cli"
	"github.com/aretw0/stategraph/internal/flows"
	"github.com/aretw0/stategraph/internal/presentation/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the model, optionally letting it call the stock price tool",
	Long: `Starts an interactive conversation. Every line is one run of the chat graph;
the conversation is kept in the session store between lines, so a session can
be resumed with --session (and shared across processes with a Redis store).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		plain, _ := cmd.Flags().GetBool("no-tools")

		app, err := loadApp(cmd, cli.AppOptions{})
		if err != nil {
			return err
		}
		defer app.Close(cmd.Context())

		name := flows.ToolChatGraph
		if plain {
			name = flows.ChatGraph
		}
		r, err := app.Runner(name)
		if err != nil {
			return err
		}

		interactive := tui.IsTerminal(os.Stdout)
		profile := termenv.Ascii
		if interactive {
			profile = termenv.EnvColorProfile()
			tui.PrintBanner(cmd.OutOrStdout(), profile)
			cmd.Printf("v%s\n\n", strings.TrimSpace(stategraph.Version))
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		err = cli.RunChat(ctx, app, r, cli.ChatOptions{
			SessionID: sessionID,
			In:        cmd.InOrStdin(),
			Out:       cmd.OutOrStdout(),
			Profile:   profile,
			Render:    tui.NewRenderer(interactive),
		})
		if ctx.Signal() != nil {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("session", "s", "", "Session ID to resume (a new one is generated when empty)")
	chatCmd.Flags().Bool("no-tools", false, "Use the plain chat graph without tools")
}
