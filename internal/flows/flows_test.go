package flows_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stategraph"
	"github.com/aretw0/stategraph/internal/flows"
	"github.com/aretw0/stategraph/pkg/adapters/quotes"
	"github.com/aretw0/stategraph/pkg/agent"
	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/ports"
)

func run(t *testing.T, eng *stategraph.Engine, initial map[string]any) *domain.Result {
	t.Helper()
	res, err := eng.Run(context.Background(), initial)
	require.NoError(t, err)
	require.True(t, res.Done())
	return res
}

func number(t *testing.T, s domain.State, field string) float64 {
	t.Helper()
	v, err := s.Number(field)
	require.NoError(t, err)
	return v
}

func TestPortfolio(t *testing.T) {
	g, err := flows.Portfolio(flows.DefaultRates())
	require.NoError(t, err)
	eng, err := stategraph.New(g)
	require.NoError(t, err)

	res := run(t, eng, map[string]any{flows.FieldAmountUSD: 1000})
	assert.Equal(t, []string{"calc_total", "calculate_tax", "convert_to_inr"}, res.Path)
	assert.InDelta(t, 1000, number(t, res.State, flows.FieldAmountUSD), 1e-9)
	assert.InDelta(t, 1080, number(t, res.State, flows.FieldTotalUSD), 1e-9)
	assert.InDelta(t, 648, number(t, res.State, flows.FieldTaxUSD), 1e-9)
	assert.InDelta(t, 91800, number(t, res.State, flows.FieldTotalINR), 1e-9)
}

func TestCurrency(t *testing.T) {
	g, err := flows.Currency(flows.DefaultRates())
	require.NoError(t, err)
	eng, err := stategraph.New(g)
	require.NoError(t, err)

	tests := []struct {
		currency string
		node     string
		other    string
		total    float64
	}{
		{"INR", "convert_to_inr", "convert_to_eur", 91800},
		{"EUR", "convert_to_eur", "convert_to_inr", 961.2},
	}
	for _, tt := range tests {
		t.Run(tt.currency, func(t *testing.T) {
			res := run(t, eng, map[string]any{flows.FieldAmountUSD: 1000, flows.FieldTargetCurrency: tt.currency})
			assert.True(t, res.Visited(tt.node))
			assert.False(t, res.Visited(tt.other))
			assert.InDelta(t, tt.total, number(t, res.State, flows.FieldTotal), 1e-9)
		})
	}

	_, err = eng.Run(context.Background(), map[string]any{flows.FieldTargetCurrency: "GBP"})
	var mismatch *domain.MergeShapeMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

type failingQuotes struct{}

func (failingQuotes) Fetch(context.Context, string) (domain.Quote, error) {
	return domain.Quote{}, errors.New("network down")
}

func TestStockQuote(t *testing.T) {
	src := quotes.NewStatic(map[string]float64{"META": 1234.5})
	g, err := flows.StockQuote(src)
	require.NoError(t, err)
	eng, err := stategraph.New(g)
	require.NoError(t, err)

	res := run(t, eng, map[string]any{flows.FieldSymbol: " meta "})
	report, err := res.State.String(flows.FieldReport)
	require.NoError(t, err)
	assert.Equal(t, "META Stock Price\n"+
		"========================================\n"+
		"Price: USD 1,234.50\n"+
		"Change: +0.00 (+0.00%)\n"+
		"========================================", report)
}

func TestStockQuote_ErrorsBecomeData(t *testing.T) {
	tests := []struct {
		name   string
		src    ports.QuoteSource
		symbol string
		want   string
	}{
		{"unknown symbol", quotes.NewStatic(nil), "AAPL", "unknown symbol"},
		{"source failure", failingQuotes{}, "META", "network down"},
		{"empty symbol", quotes.NewStatic(nil), "", "symbol is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := flows.StockQuote(tt.src)
			require.NoError(t, err)
			eng, err := stategraph.New(g)
			require.NoError(t, err)

			res := run(t, eng, map[string]any{flows.FieldSymbol: tt.symbol})
			msg, _ := res.State.String(flows.FieldError)
			assert.Contains(t, msg, tt.want)
			report, _ := res.State.String(flows.FieldReport)
			assert.Contains(t, report, "Error: ")
		})
	}
}

func TestFormatQuote_NegativeChange(t *testing.T) {
	out := flows.FormatQuote(domain.Quote{Symbol: "TSLA", Price: 100.4, Currency: "USD", Change: -1.5, ChangePercent: -1.47})
	assert.Contains(t, out, "Change: -1.50 (-1.47%)")
}

func TestStockTools(t *testing.T) {
	reg, err := flows.StockTools(quotes.NewStatic(nil))
	require.NoError(t, err)

	out, err := reg.Execute(context.Background(), "get_stock_price", map[string]any{"symbol": "tsla"})
	require.NoError(t, err)
	assert.InDelta(t, 100.4, out, 1e-9)

	out, err = reg.Execute(context.Background(), "get_stock_price", map[string]any{"symbol": "AAPL"})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, out, 1e-9)
}

func TestToolChat(t *testing.T) {
	reg, err := flows.StockTools(quotes.NewStatic(nil))
	require.NoError(t, err)
	gen := agent.NewScriptedGenerator(
		domain.AssistantMessage("", domain.ToolCall{ID: "1", Name: "get_stock_price", Args: map[string]any{"symbol": "META"}}),
		domain.AssistantMessage("META trades at 200.3"),
	)
	g, err := flows.ToolChat(gen, reg, 0)
	require.NoError(t, err)
	assert.Equal(t, flows.ToolChatGraph, g.Name())

	eng, err := stategraph.New(g)
	require.NoError(t, err)
	res := run(t, eng, map[string]any{
		agent.FieldMessages: []domain.Message{domain.UserMessage("What is the price of META?")},
	})
	msgs, err := res.State.Messages(agent.FieldMessages)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "200.3", msgs[2].Content)
	assert.Equal(t, domain.RoleSystem, gen.Seen(0)[0].Role)
}

func TestCatalog(t *testing.T) {
	var advertised [][]domain.Tool
	cat, err := flows.NewCatalog(flows.Deps{
		Rates:  flows.DefaultRates(),
		Quotes: quotes.NewStatic(nil),
		Generators: func(tools []domain.Tool) (ports.Generator, error) {
			advertised = append(advertised, tools)
			return agent.NewScriptedGenerator(), nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"chat", "currency", "portfolio", "stock-quote", "tool-chat"}, cat.Names())

	require.Len(t, advertised, 2)
	require.Len(t, advertised[0], 1)
	assert.Equal(t, "get_stock_price", advertised[0][0].Name)
	assert.Empty(t, advertised[1])

	r, ok := cat.Runner(flows.PortfolioGraph)
	require.True(t, ok)
	assert.Equal(t, flows.PortfolioGraph, r.Graph().Name())

	_, ok = cat.Runner("missing")
	assert.False(t, ok)
}

func TestCatalog_WithoutGenerator(t *testing.T) {
	cat, err := flows.NewCatalog(flows.Deps{Rates: flows.DefaultRates()})
	require.NoError(t, err)
	assert.Equal(t, []string{"currency", "portfolio"}, cat.Names())
}
