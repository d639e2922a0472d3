package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stategraph/internal/flows"
	"github.com/aretw0/stategraph/pkg/adapters/mcp"
	"github.com/aretw0/stategraph/pkg/adapters/memory"
	"github.com/aretw0/stategraph/pkg/adapters/quotes"
	"github.com/aretw0/stategraph/pkg/session"
)

type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent"`
	IsError           bool            `json:"isError"`
}

func newServer(t *testing.T, opts ...mcp.Option) *mcp.Server {
	t.Helper()
	c, err := flows.NewCatalog(flows.Deps{Rates: flows.DefaultRates(), Quotes: quotes.NewStatic(nil)})
	require.NoError(t, err)
	return mcp.NewServer(c, opts...)
}

func callTool(t *testing.T, s *mcp.Server, name string, args map[string]any) toolResult {
	t.Helper()
	params, err := json.Marshal(map[string]any{"name": name, "arguments": args})
	require.NoError(t, err)
	req := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":%s}`, params)

	msg := s.MCPServer().HandleMessage(context.Background(), json.RawMessage(req))
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var resp struct {
		Result toolResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp), string(raw))
	return resp.Result
}

func TestListGraphs(t *testing.T) {
	res := callTool(t, newServer(t), "list_graphs", nil)
	require.False(t, res.IsError)

	var out mcp.GraphList
	require.NoError(t, json.Unmarshal(res.StructuredContent, &out))
	assert.Equal(t, []string{"currency", "portfolio", "stock-quote"}, out.Graphs)
}

func TestDescribeGraph(t *testing.T) {
	s := newServer(t)

	res := callTool(t, s, "describe_graph", map[string]any{"name": "currency"})
	require.False(t, res.IsError)
	var info struct {
		Name  string `json:"name"`
		Edges []struct {
			Label string `json:"label"`
		} `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(res.StructuredContent, &info))
	assert.Equal(t, "currency", info.Name)
	assert.NotEmpty(t, info.Edges)

	res = callTool(t, s, "describe_graph", map[string]any{"name": "nope"})
	assert.True(t, res.IsError)
}

func TestRunGraph(t *testing.T) {
	res := callTool(t, newServer(t), "run_graph", map[string]any{
		"name":    "portfolio",
		"initial": map[string]any{"amount_usd": 1000},
	})
	require.False(t, res.IsError)

	var out mcp.RunOutput
	require.NoError(t, json.Unmarshal(res.StructuredContent, &out))
	assert.EqualValues(t, "done", out.Status)
	assert.InDelta(t, 91800, out.State["total_inr"], 1e-9)
	assert.Equal(t, 3, out.Steps)
}

func TestRunGraph_Failures(t *testing.T) {
	s := newServer(t)

	res := callTool(t, s, "run_graph", map[string]any{"name": "portfolio", "initial": map[string]any{"bogus": 1}})
	assert.True(t, res.IsError)

	res = callTool(t, s, "run_graph", map[string]any{"name": "portfolio", "session_id": "s1"})
	assert.True(t, res.IsError)

	res = callTool(t, s, "run_graph", map[string]any{
		"name":    "currency",
		"initial": map[string]any{"target_currency": "GBP"},
	})
	require.False(t, res.IsError)
	var out mcp.RunOutput
	require.NoError(t, json.Unmarshal(res.StructuredContent, &out))
	assert.EqualValues(t, "failed", out.Status)
	assert.NotEmpty(t, out.Error)
}

func TestRunGraph_Session(t *testing.T) {
	store := memory.NewStore()
	s := newServer(t, mcp.WithSessions(session.NewManager(store)))

	res := callTool(t, s, "run_graph", map[string]any{
		"name":       "portfolio",
		"initial":    map[string]any{"amount_usd": 10},
		"session_id": "abc",
	})
	require.False(t, res.IsError)

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, ids)
}

func TestReadResource(t *testing.T) {
	s := newServer(t)
	req := `{"jsonrpc":"2.0","id":2,"method":"resources/read","params":{"uri":"stategraph://graphs/portfolio/mermaid"}}`
	raw, err := json.Marshal(s.MCPServer().HandleMessage(context.Background(), json.RawMessage(req)))
	require.NoError(t, err)

	var resp struct {
		Result struct {
			Contents []struct {
				Text string `json:"text"`
			} `json:"contents"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Len(t, resp.Result.Contents, 1)
	assert.Contains(t, resp.Result.Contents[0].Text, "calc_total")
}
