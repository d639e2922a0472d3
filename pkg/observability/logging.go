package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/stategraph/pkg/domain"
)

// LogHooks logs every lifecycle event at debug level, and failed runs at error level.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter", "run_id", e.RunID, "node", e.Node, "kind", e.Kind, "step", e.Step)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "node_leave", "run_id", e.RunID, "node", e.Node, "duration", e.Duration, "error", e.Err)
				return
			}
			logger.DebugContext(ctx, "node_leave", "run_id", e.RunID, "node", e.Node, "duration", e.Duration, "changed", e.Changed)
		},
		OnBranch: func(ctx context.Context, e *domain.BranchEvent) {
			logger.DebugContext(ctx, "branch", "run_id", e.RunID, "node", e.Node, "label", e.Label, "target", e.Target)
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			logger.DebugContext(ctx, "tool_call", "run_id", e.RunID, "tool_name", e.ToolName, "call_id", e.CallID)
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			logger.DebugContext(ctx, "tool_return", "run_id", e.RunID, "tool_name", e.ToolName, "is_error", e.IsError)
		},
		OnRunEnd: func(ctx context.Context, e *domain.RunEvent) {
			if e.Status == domain.StatusFailed {
				logger.ErrorContext(ctx, "run failed", "run_id", e.RunID, "steps", e.Steps, "error", e.Err)
				return
			}
			logger.InfoContext(ctx, "run finished", "run_id", e.RunID, "status", e.Status, "steps", e.Steps)
		},
	}
}
