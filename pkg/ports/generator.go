package ports

import (
	"context"

	"github.com/aretw0/stategraph/pkg/domain"
)

// Generator produces the next assistant message for a conversation.
// A reply may carry tool calls; the caller owns the conversation slice and
// implementations must not modify it.
type Generator interface {
	Generate(ctx context.Context, messages []domain.Message) (domain.Message, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, messages []domain.Message) (domain.Message, error)

func (f GeneratorFunc) Generate(ctx context.Context, messages []domain.Message) (domain.Message, error) {
	return f(ctx, messages)
}
