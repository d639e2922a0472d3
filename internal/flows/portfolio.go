package flows

import (
	"context"
	"fmt"

	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/graph"
)

// Graph names.
const (
	PortfolioGraph = "portfolio"
	CurrencyGraph  = "currency"
	QuoteGraph     = "stock-quote"
	ChatGraph      = "chat"
	ToolChatGraph  = "tool-chat"
)

// Portfolio and currency fields.
const (
	FieldAmountUSD      = "amount_usd"
	FieldTotalUSD       = "total_usd"
	FieldTaxUSD         = "tax_usd"
	FieldTotalINR       = "total_inr"
	FieldTotal          = "total"
	FieldTargetCurrency = "target_currency"
)

// Rates are the constants of the portfolio calculations.
type Rates struct {
	Markup  float64
	TaxRate float64
	USDINR  float64
	USDEUR  float64
}

// DefaultRates returns the reference rates.
func DefaultRates() Rates {
	return Rates{Markup: 1.08, TaxRate: 0.6, USDINR: 85, USDEUR: 0.89}
}

// scale returns a node that writes src*factor into dst.
func scale(src, dst string, factor float64) graph.NodeFunc {
	return func(_ context.Context, s domain.State) (domain.Partial, error) {
		v, err := s.Number(src)
		if err != nil {
			return nil, err
		}
		return domain.Partial{dst: v * factor}, nil
	}
}

// Portfolio builds the linear graph calc_total -> calculate_tax -> convert_to_inr.
func Portfolio(r Rates, opts ...graph.Option) (*graph.Graph, error) {
	schema, err := domain.NewSchema(
		domain.Number(FieldAmountUSD, 0),
		domain.Number(FieldTotalUSD, 0),
		domain.Number(FieldTaxUSD, 0),
		domain.Number(FieldTotalINR, 0),
	)
	if err != nil {
		return nil, err
	}

	b := graph.New(schema, append([]graph.Option{graph.WithName(PortfolioGraph)}, opts...)...)
	err = firstErr(
		b.AddNode("calc_total", scale(FieldAmountUSD, FieldTotalUSD, r.Markup),
			graph.WithDescription(fmt.Sprintf("total_usd = amount_usd * %g", r.Markup))),
		b.AddNode("calculate_tax", scale(FieldTotalUSD, FieldTaxUSD, r.TaxRate),
			graph.WithDescription(fmt.Sprintf("tax_usd = total_usd * %g", r.TaxRate))),
		b.AddNode("convert_to_inr", scale(FieldTotalUSD, FieldTotalINR, r.USDINR),
			graph.WithDescription(fmt.Sprintf("total_inr = total_usd * %g", r.USDINR))),
		b.AddEdge(domain.Start, "calc_total"),
		b.AddEdge("calc_total", "calculate_tax"),
		b.AddEdge("calculate_tax", "convert_to_inr"),
		b.AddEdge("convert_to_inr", domain.End),
	)
	if err != nil {
		return nil, fmt.Errorf("build portfolio: %w", err)
	}
	return b.Compile()
}

// Currency builds the conditional graph: calc_total, then convert_to_inr or
// convert_to_eur depending on target_currency.
func Currency(r Rates, opts ...graph.Option) (*graph.Graph, error) {
	schema, err := domain.NewSchema(
		domain.Number(FieldAmountUSD, 0),
		domain.Number(FieldTotalUSD, 0),
		domain.Number(FieldTotal, 0),
		domain.Enum(FieldTargetCurrency, "INR", "INR", "EUR"),
	)
	if err != nil {
		return nil, err
	}

	b := graph.New(schema, append([]graph.Option{graph.WithName(CurrencyGraph)}, opts...)...)
	err = firstErr(
		b.AddNode("calc_total", scale(FieldAmountUSD, FieldTotalUSD, r.Markup)),
		b.AddNode("convert_to_inr", scale(FieldTotalUSD, FieldTotal, r.USDINR)),
		b.AddNode("convert_to_eur", scale(FieldTotalUSD, FieldTotal, r.USDEUR)),
		b.AddEdge(domain.Start, "calc_total"),
		b.AddConditionalEdge("calc_total", graph.EnumBranch(FieldTargetCurrency), map[string]string{
			"INR": "convert_to_inr",
			"EUR": "convert_to_eur",
		}),
		b.AddEdge("convert_to_inr", domain.End),
		b.AddEdge("convert_to_eur", domain.End),
	)
	if err != nil {
		return nil, fmt.Errorf("build currency: %w", err)
	}
	return b.Compile()
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
