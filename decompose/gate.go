// Package decompose decides, with a single structured reasoning call,
// whether a user message should be broken into a task graph or answered
// as a normal chat turn.
package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/GoCodeAlone/sprocket/graph"
	"github.com/GoCodeAlone/sprocket/provider"
	"github.com/GoCodeAlone/sprocket/tool"
)

const systemPrompt = `You are a task planning assistant. Given a user message and conversation history, you must decide:

1. Whether the message requires multi-step task decomposition, OR
2. Whether it can be answered directly as a simple chat response.

DECOMPOSE when the message:
- Asks for a multi-step process (e.g., "deploy X", "set up Y", "migrate Z")
- Involves coordinating multiple tools or actions
- Has inherent sequential or parallel dependencies between steps
- Would benefit from tracking progress across multiple operations

DO NOT DECOMPOSE when the message:
- Is a simple question (e.g., "what is X?", "how does Y work?")
- Asks for a single atomic action
- Is conversational or clarifying

If you decide to decompose, produce a list of subtasks forming a DAG (directed acyclic graph).

Each subtask must specify:
- name: short descriptive name (2-5 words)
- description: what this subtask does (1-2 sentences)
- executor: "system" if the AI agent can do it with the available tools, or "user" if it requires the human to perform an action (e.g., run a local command, approve something, provide credentials)
- depends_on: list of other subtask names this depends on (empty list if no dependencies)
- tools: list of tool names from the available tools that this subtask would need (only for system executor). Select only the tools relevant to this specific subtask.

Rules for the dependency graph:
- It MUST be a valid DAG (no cycles)
- Subtasks with no dependencies can run in parallel
- Be granular but not excessively so (3-8 subtasks is typical)
- Order subtasks logically

Available tools the system executor can use:
%s

If a step requires capabilities not covered by these tools, mark it as a "user" executor.`

const jsonInstruction = `Respond with a JSON object matching this schema: ` +
	`{"should_decompose": bool, "reasoning": str, "subtasks": [{"name": str, "description": str, ` +
	`"executor": "system"|"user", "depends_on": [str], "tools": [str]}]}`

// historyWindow limits how much conversation context the decision sees.
const historyWindow = 6

// response is the structured decision returned by the model.
type response struct {
	ShouldDecompose bool          `json:"should_decompose"`
	Reasoning       string        `json:"reasoning"`
	Subtasks        []subtaskSpec `json:"subtasks"`
}

type subtaskSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Executor    string   `json:"executor"`
	DependsOn   []string `json:"depends_on"`
	Tools       []string `json:"tools"`
}

// Gate asks the provider whether a message needs decomposition.
type Gate struct {
	provider provider.Provider
	tools    *tool.Registry
	logger   *slog.Logger
}

// NewGate creates a gate bound to a provider and tool registry.
func NewGate(p provider.Provider, tools *tool.Registry, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{provider: p, tools: tools, logger: logger}
}

// MaybeDecompose makes one structured reasoning call and returns a
// validated task graph, or nil when the message should be handled as a
// normal chat turn. Every failure mode (provider error, malformed JSON,
// negative decision, empty subtask list, cyclic graph) degrades to nil.
func (g *Gate) MaybeDecompose(ctx context.Context, userMessage string, history []provider.Message) *graph.TaskGraph {
	messages := []provider.Message{
		{Role: provider.RoleSystem, Content: fmt.Sprintf(systemPrompt, g.toolList())},
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	messages = append(messages, history...)
	messages = append(messages, provider.Message{Role: provider.RoleUser, Content: jsonInstruction})

	start := time.Now()
	resp, err := g.provider.Chat(ctx, messages, nil)
	if err != nil {
		g.logger.Error("decomposition call failed, falling back to normal chat",
			slog.Any("error", err))
		return nil
	}
	g.logger.Info("decomposition decision received",
		slog.Duration("elapsed", time.Since(start)))

	var decision response
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &decision); err != nil {
		g.logger.Warn("decomposition response is not valid JSON, falling back to normal chat",
			slog.Any("error", err))
		return nil
	}

	g.logger.Info("decomposition decision",
		slog.Bool("should_decompose", decision.ShouldDecompose),
		slog.Int("subtasks", len(decision.Subtasks)),
		slog.String("reasoning", truncate(decision.Reasoning, 200)))

	if !decision.ShouldDecompose || len(decision.Subtasks) == 0 {
		return nil
	}

	specs := make([]graph.Spec, 0, len(decision.Subtasks))
	for _, s := range decision.Subtasks {
		specs = append(specs, graph.Spec{
			Name:        s.Name,
			Description: s.Description,
			Executor:    graph.Executor(s.Executor),
			DependsOn:   s.DependsOn,
			Tools:       s.Tools,
		})
	}

	tg, err := graph.Build(userMessage, specs)
	if err != nil {
		g.logger.Warn("model produced an invalid dependency graph, falling back to normal chat",
			slog.Any("error", err))
		return nil
	}
	return tg
}

// toolList renders the registry for prompt interpolation.
func (g *Gate) toolList() string {
	var defs []tool.Def
	if g.tools != nil {
		defs = g.tools.Defs()
	}
	if len(defs) == 0 {
		return "(No tools available - mark all subtasks as 'user' executor)"
	}
	lines := make([]string, 0, len(defs))
	for _, d := range defs {
		lines = append(lines, fmt.Sprintf("- %s: %s", d.Name, d.Description))
	}
	return strings.Join(lines, "\n")
}

// extractJSON strips markdown code fences and surrounding prose so the
// object can be unmarshaled even when the model decorates its output.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
