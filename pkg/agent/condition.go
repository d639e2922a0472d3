package agent

import (
	"context"

	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/graph"
)

// ToolsCondition routes on the last message of the messages field:
// domain.LabelHasToolCall when it requests tool calls, domain.LabelDone otherwise
// (including an empty conversation).
func ToolsCondition(field string) graph.Branch {
	return graph.NewBranch(
		[]string{domain.LabelHasToolCall, domain.LabelDone},
		func(_ context.Context, s domain.State) (string, error) {
			last, ok, err := s.LastMessage(field)
			if err != nil {
				return "", err
			}
			if ok && last.HasToolCalls() {
				return domain.LabelHasToolCall, nil
			}
			return domain.LabelDone, nil
		},
	)
}
