package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/aretw0/stategraph/internal/cli"
	"github.com/aretw0/stategraph/internal/flows"
	"github.com/aretw0/stategraph/internal/presentation/tui"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <symbol>",
	Short: "Fetch a stock quote and print a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd, cli.AppOptions{})
		if err != nil {
			return err
		}
		defer app.Close(cmd.Context())

		r, err := app.Runner(flows.QuoteGraph)
		if err != nil {
			return err
		}
		res, err := r.Run(cmd.Context(), map[string]any{flows.FieldSymbol: args[0]})
		if err != nil {
			return err
		}

		report, _ := res.State.String(flows.FieldReport)
		if msg, _ := res.State.String(flows.FieldError); msg != "" {
			fmt.Fprintln(cmd.OutOrStdout(), report)
			return fmt.Errorf("quote %s failed", strings.ToUpper(args[0]))
		}
		profile := termenv.Ascii
		if tui.IsTerminal(os.Stdout) {
			profile = termenv.EnvColorProfile()
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.ColorChange(report, flows.QuoteFromState(res.State), profile))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}
