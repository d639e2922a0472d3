package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/stategraph/pkg/agent"
	"github.com/aretw0/stategraph/pkg/graph"
	"github.com/aretw0/stategraph/pkg/ports"
	"github.com/aretw0/stategraph/pkg/registry"
)

// SystemPrompt steers the tool-using assistant.
const SystemPrompt = "You are a concise assistant. Use get_stock_price when asked for a stock price."

type stockPriceArgs struct {
	Symbol string `json:"symbol" jsonschema:"stock symbol, e.g. META"`
}

// StockTools registers get_stock_price backed by src. Unknown symbols price at 0.0.
func StockTools(src ports.QuoteSource) (*registry.Registry, error) {
	reg := registry.NewRegistry()
	err := registry.Bind(reg, "get_stock_price", "Return the current price of a stock given the stock symbol",
		func(ctx context.Context, in stockPriceArgs) (any, error) {
			q, err := src.Fetch(ctx, strings.ToUpper(in.Symbol))
			if errors.Is(err, ports.ErrUnknownSymbol) {
				return 0.0, nil
			}
			if err != nil {
				return nil, err
			}
			return q.Price, nil
		})
	if err != nil {
		return nil, fmt.Errorf("register get_stock_price: %w", err)
	}
	return reg, nil
}

// Chat builds the plain chatbot graph.
func Chat(gen ports.Generator, retries int) (*graph.Graph, error) {
	return agent.NewChat(gen,
		agent.WithGraphName(ChatGraph),
		agent.WithChatOptions(agent.WithRetries(retries)),
	)
}

// ToolChat builds the chatbot that can call get_stock_price.
func ToolChat(gen ports.Generator, tools *registry.Registry, retries int) (*graph.Graph, error) {
	return agent.NewToolLoop(gen, tools,
		agent.WithGraphName(ToolChatGraph),
		agent.WithChatOptions(agent.WithRetries(retries), agent.WithSystemPrompt(SystemPrompt)),
	)
}
