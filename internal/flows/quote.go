package flows

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/graph"
	"github.com/aretw0/stategraph/pkg/ports"
)

// Stock quote fields.
const (
	FieldSymbol        = "symbol"
	FieldPrice         = "price"
	FieldCurrency      = "currency"
	FieldChange        = "change"
	FieldChangePercent = "change_percent"
	FieldError         = "error"
	FieldReport        = "report"
)

var printer = message.NewPrinter(language.English)

// StockQuote builds fetch_quote -> format_report. A failed fetch is recorded in
// the error field and reported, it does not fail the run.
func StockQuote(src ports.QuoteSource, opts ...graph.Option) (*graph.Graph, error) {
	schema, err := domain.NewSchema(
		domain.String(FieldSymbol, ""),
		domain.Number(FieldPrice, 0),
		domain.String(FieldCurrency, "USD"),
		domain.Number(FieldChange, 0),
		domain.Number(FieldChangePercent, 0),
		domain.String(FieldError, ""),
		domain.String(FieldReport, ""),
	)
	if err != nil {
		return nil, err
	}

	b := graph.New(schema, append([]graph.Option{graph.WithName(QuoteGraph)}, opts...)...)
	err = firstErr(
		b.AddNode("fetch_quote", fetchQuote(src), graph.WithDescription("fetches the latest quote of symbol")),
		b.AddNode("format_report", formatReport, graph.WithDescription("renders the quote as text")),
		b.AddEdge(domain.Start, "fetch_quote"),
		b.AddEdge("fetch_quote", "format_report"),
		b.AddEdge("format_report", domain.End),
	)
	if err != nil {
		return nil, fmt.Errorf("build stock quote: %w", err)
	}
	return b.Compile()
}

func fetchQuote(src ports.QuoteSource) graph.NodeFunc {
	return func(ctx context.Context, s domain.State) (domain.Partial, error) {
		symbol, err := s.String(FieldSymbol)
		if err != nil {
			return nil, err
		}
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			return domain.Partial{FieldError: "symbol is required"}, nil
		}

		q, err := src.Fetch(ctx, symbol)
		if err != nil {
			return domain.Partial{
				FieldSymbol: symbol,
				FieldError:  fmt.Sprintf("Error fetching stock price: %v", err),
			}, nil
		}
		return domain.Partial{
			FieldSymbol:        symbol,
			FieldPrice:         q.Price,
			FieldCurrency:      q.Currency,
			FieldChange:        q.Change,
			FieldChangePercent: q.ChangePercent,
			FieldError:         "",
		}, nil
	}
}

func formatReport(_ context.Context, s domain.State) (domain.Partial, error) {
	if msg, _ := s.String(FieldError); msg != "" {
		return domain.Partial{FieldReport: "Error: " + msg}, nil
	}
	q := QuoteFromState(s)
	return domain.Partial{FieldReport: FormatQuote(q)}, nil
}

// QuoteFromState reads the quote fields of a stock quote state.
func QuoteFromState(s domain.State) domain.Quote {
	var q domain.Quote
	q.Symbol, _ = s.String(FieldSymbol)
	q.Price, _ = s.Number(FieldPrice)
	q.Currency, _ = s.String(FieldCurrency)
	q.Change, _ = s.Number(FieldChange)
	q.ChangePercent, _ = s.Number(FieldChangePercent)
	return q
}

// FormatQuote renders the plain text report of a quote.
func FormatQuote(q domain.Quote) string {
	sign := ""
	if q.Change >= 0 {
		sign = "+"
	}
	rule := strings.Repeat("=", 40)
	var b strings.Builder
	fmt.Fprintf(&b, "%s Stock Price\n%s\n", q.Symbol, rule)
	b.WriteString(printer.Sprintf("Price: %s %.2f\n", q.Currency, q.Price))
	b.WriteString(printer.Sprintf("Change: %s%.2f (%s%.2f%%)\n", sign, q.Change, sign, q.ChangePercent))
	b.WriteString(rule)
	return b.String()
}
