package agent

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/aretw0/stategraph/pkg/domain"
)

// ErrScriptExhausted is returned when a ScriptedGenerator has no reply left.
var ErrScriptExhausted = errors.New("scripted generator: no reply left")

// Step is one scripted Generate outcome.
type Step struct {
	Reply domain.Message
	Err   error
}

// ScriptedGenerator replays a fixed sequence of replies. It records every
// conversation it receives and is safe for concurrent use.
type ScriptedGenerator struct {
	mu    sync.Mutex
	steps []Step
	calls [][]domain.Message
}

// NewScriptedGenerator returns a generator answering with replies in order.
func NewScriptedGenerator(replies ...domain.Message) *ScriptedGenerator {
	g := &ScriptedGenerator{}
	for _, r := range replies {
		g.steps = append(g.steps, Step{Reply: r})
	}
	return g
}

// Then appends a scripted step.
func (g *ScriptedGenerator) Then(step Step) *ScriptedGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.steps = append(g.steps, step)
	return g
}

// Generate implements ports.Generator.
func (g *ScriptedGenerator) Generate(_ context.Context, messages []domain.Message) (domain.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, slices.Clone(messages))
	if len(g.steps) == 0 {
		return domain.Message{}, ErrScriptExhausted
	}
	step := g.steps[0]
	g.steps = g.steps[1:]
	return step.Reply, step.Err
}

// Calls returns the number of Generate invocations.
func (g *ScriptedGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// Seen returns the conversation passed to the i-th call.
func (g *ScriptedGenerator) Seen(i int) []domain.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i < 0 || i >= len(g.calls) {
		return nil
	}
	return slices.Clone(g.calls[i])
}
