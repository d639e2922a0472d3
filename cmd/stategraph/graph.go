package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/stategraph/internal/cli"
	"github.com/aretw0/stategraph/internal/presentation/graph"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [name]",
	Short: "List graphs or export one as a Mermaid diagram",
	Long:  `Without arguments lists the available graphs. With a graph name prints a Mermaid diagram (graph TD) of its nodes and edges.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd, cli.AppOptions{})
		if err != nil {
			return err
		}
		defer app.Close(cmd.Context())

		if len(args) == 0 {
			for _, name := range app.Catalog.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		}

		r, err := app.Runner(args[0])
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(r.Graph().Describe())
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(r.Graph(), nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("json", false, "Print nodes and edges as JSON instead of Mermaid")
}
