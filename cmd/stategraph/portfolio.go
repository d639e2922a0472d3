package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/stategraph/internal/cli"
	"github.com/aretw0/stategraph/internal/flows"
	"github.com/aretw0/stategraph/pkg/domain"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio <amount-usd>",
	Short: "Compute total, tax and INR value of a USD amount",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAmount(cmd, flows.PortfolioGraph, args[0], nil,
			flows.FieldAmountUSD, flows.FieldTotalUSD, flows.FieldTaxUSD, flows.FieldTotalINR)
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert <amount-usd>",
	Short: "Apply the markup and convert to INR or EUR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("to")
		return runAmount(cmd, flows.CurrencyGraph, args[0],
			map[string]any{flows.FieldTargetCurrency: strings.ToUpper(target)},
			flows.FieldAmountUSD, flows.FieldTotalUSD, flows.FieldTargetCurrency, flows.FieldTotal)
	},
}

func init() {
	rootCmd.AddCommand(portfolioCmd)
	rootCmd.AddCommand(convertCmd)

	for _, c := range []*cobra.Command{portfolioCmd, convertCmd} {
		c.Flags().Bool("json", false, "Print the full run result as JSON")
	}
	convertCmd.Flags().String("to", "INR", "Target currency (INR or EUR)")
}

func runAmount(cmd *cobra.Command, graphName, amount string, extra map[string]any, fields ...string) error {
	var usd float64
	if _, err := fmt.Sscan(amount, &usd); err != nil {
		return fmt.Errorf("invalid amount %q", amount)
	}
	initial := map[string]any{flows.FieldAmountUSD: usd}
	for k, v := range extra {
		initial[k] = v
	}

	app, err := loadApp(cmd, cli.AppOptions{})
	if err != nil {
		return err
	}
	defer app.Close(cmd.Context())

	r, err := app.Runner(graphName)
	if err != nil {
		return err
	}
	res, err := r.Run(cmd.Context(), initial)
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if encErr := printResult(cmd.OutOrStdout(), res); encErr != nil {
			return encErr
		}
		return err
	}
	if err != nil {
		return err
	}
	printFields(cmd.OutOrStdout(), res.State, fields...)
	return nil
}

func printFields(w io.Writer, s domain.State, fields ...string) {
	width := 0
	for _, f := range fields {
		width = max(width, len(f))
	}
	for _, f := range fields {
		v, err := s.Get(f)
		if err != nil {
			continue
		}
		if n, ok := v.(float64); ok {
			fmt.Fprintf(w, "%-*s  %.2f\n", width, f, n)
			continue
		}
		fmt.Fprintf(w, "%-*s  %v\n", width, f, v)
	}
}

func printResult(w io.Writer, res *domain.Result) error {
	out := struct {
		*domain.Result
		Error string `json:"error,omitempty"`
	}{Result: res}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
