// Package agent runs the tool-use loop for a single reasoning request:
// chat with the provider, execute any requested tools, feed results back,
// repeat until the model answers in plain text.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GoCodeAlone/sprocket/provider"
	"github.com/GoCodeAlone/sprocket/tool"
)

// DefaultMaxIterations bounds the tool-use loop for one request.
const DefaultMaxIterations = 10

// Runner drives provider conversations with tool execution.
type Runner struct {
	provider provider.Provider
	tools    *tool.Registry
	maxIter  int
	logger   *slog.Logger
}

// NewRunner creates a runner with the default iteration bound.
func NewRunner(p provider.Provider, tools *tool.Registry, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		provider: p,
		tools:    tools,
		maxIter:  DefaultMaxIterations,
		logger:   logger,
	}
}

// Run sends the conversation and loops over tool calls until the model
// produces a final text response. toolNames restricts which registered
// tools the model may see; an empty list means unrestricted, so every
// registered tool is offered.
func (r *Runner) Run(ctx context.Context, messages []provider.Message, toolNames []string) (string, error) {
	var defs []provider.ToolDef
	if r.tools != nil {
		defs = r.tools.Filter(toolNames)
	}

	for i := 0; i < r.maxIter; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		resp, err := r.provider.Chat(ctx, messages, defs)
		if err != nil {
			return "", fmt.Errorf("provider chat: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		// Replay the tool calls with the assistant turn: providers reject
		// a tool result whose requesting call is missing from history.
		messages = append(messages, provider.Message{
			Role:      provider.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			r.logger.Debug("executing tool",
				slog.String("tool", tc.Name),
				slog.Any("args", tc.Arguments))
			result := r.tools.Invoke(ctx, tc.Name, tc.Arguments)
			messages = append(messages, provider.Message{
				Role:       provider.RoleTool,
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	return "", fmt.Errorf("tool loop exceeded %d iterations", r.maxIter)
}
