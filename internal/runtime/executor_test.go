package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/graph"
)

func ticking(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func doubleThenTools(t *testing.T, tools graph.NodeFunc) *graph.Graph {
	t.Helper()
	b := graph.New(domain.MustSchema(domain.Number("n", 1)))
	require.NoError(t, b.AddNode("double", func(_ context.Context, s domain.State) (domain.Partial, error) {
		n, err := s.Number("n")
		if err != nil {
			return nil, err
		}
		return domain.Partial{"n": n * 2}, nil
	}))
	require.NoError(t, b.AddNode("tools", tools, graph.AsToolNode()))
	require.NoError(t, b.AddEdge(domain.Start, "double"))
	require.NoError(t, b.AddEdge("double", "tools"))
	require.NoError(t, b.AddEdge("tools", domain.End))
	g, err := b.Compile()
	require.NoError(t, err)
	return g
}

func TestExecutor_Transitions(t *testing.T) {
	g := doubleThenTools(t, func(context.Context, domain.State) (domain.Partial, error) { return nil, nil })
	res, err := NewExecutor(g, WithRunIDGenerator(func() string { return "run-1" })).Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, []string{"double", "tools"}, res.Path)
	assert.Equal(t, []domain.StatusChange{
		{From: domain.StatusRunning, To: domain.StatusAwaitingTools, Node: "tools", Step: 1},
		{From: domain.StatusAwaitingTools, To: domain.StatusDone, Node: domain.End, Step: 2},
	}, res.Transitions)

	n, err := res.State.Number("n")
	require.NoError(t, err)
	assert.Equal(t, 2.0, n)
}

func TestExecutor_FailureTransition(t *testing.T) {
	g := doubleThenTools(t, func(context.Context, domain.State) (domain.Partial, error) {
		return nil, errors.New("dispatch failed")
	})
	res, err := NewExecutor(g).Run(context.Background(), nil)
	require.Error(t, err)

	var nodeErr *domain.NodeExecutionError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "tools", nodeErr.Node)
	assert.Equal(t, domain.StatusFailed, res.Status)

	last := res.Transitions[len(res.Transitions)-1]
	assert.Equal(t, domain.StatusAwaitingTools, last.From)
	assert.Equal(t, domain.StatusFailed, last.To)
	assert.Equal(t, 2, last.Step)

	n, _ := res.State.Number("n")
	assert.Equal(t, 2.0, n, "state keeps the last successful merge")
}

func TestExecutor_Clock(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var leaves []*domain.NodeEvent
	var end *domain.RunEvent

	g := doubleThenTools(t, func(context.Context, domain.State) (domain.Partial, error) { return nil, nil })
	e := NewExecutor(g,
		WithClock(ticking(start)),
		WithLifecycleHooks(domain.LifecycleHooks{
			OnNodeEnter: func(context.Context, *domain.NodeEvent) {},
			OnNodeLeave: func(_ context.Context, ev *domain.NodeEvent) { leaves = append(leaves, ev) },
			OnRunEnd:    func(_ context.Context, ev *domain.RunEvent) { end = ev },
		}),
	)
	res, err := e.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, start.Add(time.Second), res.StartedAt)
	assert.True(t, res.FinishedAt.After(res.StartedAt))

	require.Len(t, leaves, 2)
	for _, ev := range leaves {
		assert.Equal(t, time.Second, ev.Duration)
	}
	assert.Equal(t, []string{"n"}, leaves[0].Changed)
	assert.Empty(t, leaves[1].Changed)

	require.NotNil(t, end)
	assert.Equal(t, domain.StatusDone, end.Status)
	assert.Equal(t, 2, end.Steps)
}

func TestExecutor_MiddlewareSeesNodeInfo(t *testing.T) {
	var seen []string
	mw := func(node domain.NodeInfo, next graph.NodeFunc) graph.NodeFunc {
		return func(ctx context.Context, s domain.State) (domain.Partial, error) {
			seen = append(seen, node.Name+":"+node.Kind)
			return next(ctx, s)
		}
	}

	g := doubleThenTools(t, func(context.Context, domain.State) (domain.Partial, error) { return nil, nil })
	_, err := NewExecutor(g, WithMiddleware(mw)).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"double:" + domain.NodeKindStep, "tools:" + domain.NodeKindTool}, seen)
}

func TestExecutor_PanicBecomesNodeError(t *testing.T) {
	g := doubleThenTools(t, func(context.Context, domain.State) (domain.Partial, error) { panic("boom") })
	res, err := NewExecutor(g).Run(context.Background(), nil)

	var nodeErr *domain.NodeExecutionError
	require.ErrorAs(t, err, &nodeErr)
	assert.Contains(t, nodeErr.Error(), "panic: boom")
	assert.ErrorIs(t, res.Err, domain.ErrRun)
}
