// Package session owns one conversation: its chat history, its active
// task graphs, and the routing of inbound client events to the
// decomposition gate and the per-graph executors.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/GoCodeAlone/sprocket/agent"
	"github.com/GoCodeAlone/sprocket/category"
	"github.com/GoCodeAlone/sprocket/decompose"
	"github.com/GoCodeAlone/sprocket/engine"
	"github.com/GoCodeAlone/sprocket/event"
	"github.com/GoCodeAlone/sprocket/graph"
	"github.com/GoCodeAlone/sprocket/provider"
	"github.com/GoCodeAlone/sprocket/tool"
)

// Session is one conversation bound to a category's configuration.
// Chat turns are serialized; task graphs created by decomposition run
// concurrently and report back through the event hub.
type Session struct {
	ID       string
	Category *category.Category

	provider provider.Provider
	gate     *decompose.Gate
	runner   *agent.Runner
	tools    *tool.Registry
	hub      *event.Hub
	logger   *slog.Logger

	mcpClients []*tool.MCPClient

	ctx    context.Context
	cancel context.CancelFunc

	// turnMu serializes chat turns so history mutations stay ordered.
	turnMu sync.Mutex

	// mu guards history and the active graph map.
	mu      sync.Mutex
	history []provider.Message
	active  map[string]*engine.Executor
}

// New builds a session from a category record: constructs the provider,
// connects the category's MCP servers, and seeds chat history with the
// system prompt. MCP servers that fail to connect are skipped, not fatal.
func New(id string, cat *category.Category, hub *event.Hub, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("session_id", id))

	p, err := provider.New(provider.Settings{
		Provider:  cat.Provider,
		Model:     cat.Model,
		APIKey:    cat.APIKey,
		Endpoint:  cat.Endpoint,
		MaxTokens: cat.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	p = provider.WithBreaker(p, logger)

	tools := tool.NewRegistry(logger)
	var clients []*tool.MCPClient
	for _, srv := range cat.ToolServers {
		if srv.Command == "" {
			continue
		}
		client, err := tool.ConnectMCP(srv)
		if err != nil {
			logger.Warn("mcp server unavailable",
				slog.String("server", srv.Name),
				slog.Any("error", err))
			continue
		}
		if err := client.DiscoverTools(tools, logger); err != nil {
			logger.Warn("mcp tool discovery failed",
				slog.String("server", srv.Name),
				slog.Any("error", err))
			_ = client.Close()
			continue
		}
		clients = append(clients, client)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:         id,
		Category:   cat,
		provider:   p,
		gate:       decompose.NewGate(p, tools, logger),
		runner:     agent.NewRunner(p, tools, logger),
		tools:      tools,
		hub:        hub,
		logger:     logger,
		mcpClients: clients,
		ctx:        ctx,
		cancel:     cancel,
		active:     make(map[string]*engine.Executor),
	}
	if cat.SystemPrompt != "" {
		s.history = []provider.Message{
			{Role: provider.RoleSystem, Content: cat.SystemPrompt},
		}
	}
	return s, nil
}

// Close tears the session down: stops executors' event emission targets
// and closes MCP server connections.
func (s *Session) Close() {
	s.cancel()
	for _, c := range s.mcpClients {
		_ = c.Close()
	}
}

func (s *Session) emit(e event.Event) {
	s.hub.Publish(s.ID, e)
}

// HandleChat processes one inbound chat message: appends it to history,
// asks the decomposition gate whether to build a task graph, and either
// creates a graph awaiting confirmation or runs an ordinary chat turn.
func (s *Session) HandleChat(ctx context.Context, content string) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.mu.Lock()
	s.history = append(s.history, provider.Message{Role: provider.RoleUser, Content: content})
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if tg := s.gate.MaybeDecompose(ctx, content, snapshot); tg != nil {
		s.createGraph(tg, snapshot)
		return
	}

	// Ordinary chat turns are unrestricted: the model sees every tool.
	out, err := s.runner.Run(ctx, snapshot, nil)
	if err != nil {
		s.logger.Error("chat turn failed", slog.Any("error", err))
		// Remove the failed user message so history stays consistent
		// with what was actually answered.
		s.mu.Lock()
		if n := len(s.history); n > 0 && s.history[n-1].Content == content {
			s.history = s.history[:n-1]
		}
		s.mu.Unlock()
		s.emit(event.Event{Type: event.TypeError, Payload: event.Error{
			Message: fmt.Sprintf("Error: %v", err),
		}})
		return
	}

	s.mu.Lock()
	s.history = append(s.history, provider.Message{Role: provider.RoleAssistant, Content: out})
	s.mu.Unlock()
	s.emit(event.Event{Type: event.TypeChatResponse, Payload: event.ChatResponse{Content: out}})
}

// createGraph registers a new executor awaiting confirmation and
// announces the plan to the client.
func (s *Session) createGraph(tg *graph.TaskGraph, history []provider.Message) {
	exec := engine.New(engine.Config{
		Graph:    tg,
		Runner:   s.runner,
		Provider: s.provider,
		History:  history,
		Emit:     s.emit,
		OnComplete: func(taskID, summary string) {
			s.mu.Lock()
			s.history = append(s.history, provider.Message{
				Role:    provider.RoleAssistant,
				Content: summary,
			})
			delete(s.active, taskID)
			s.mu.Unlock()
		},
		Logger: s.logger,
	})

	s.mu.Lock()
	s.active[tg.TaskID] = exec
	s.mu.Unlock()

	s.logger.Info("task graph created",
		slog.String("task_id", tg.TaskID),
		slog.Int("subtasks", len(tg.Subtasks)))
	s.emit(event.Event{Type: event.TypeTaskGraphCreated, Payload: event.TaskGraphCreated{Graph: tg}})
}

// StartTask confirms a proposed plan and begins execution.
func (s *Session) StartTask(taskID string) error {
	s.mu.Lock()
	exec, ok := s.active[taskID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown task %s", taskID)
	}
	return exec.Start(s.ctx)
}

// HandleSubtaskOutput forwards a human-supplied subtask result to the
// owning executor. Output for an unconfirmed graph is refused: nothing
// dispatches before the user approves the plan.
func (s *Session) HandleSubtaskOutput(taskID, subtaskID, output string) error {
	s.mu.Lock()
	exec, ok := s.active[taskID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown task %s", taskID)
	}
	if !exec.Started() {
		return fmt.Errorf("task %s has not been started", taskID)
	}
	exec.HandleUserOutput(subtaskID, output)
	return nil
}

// History returns a snapshot of the conversation.
func (s *Session) History() []provider.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ActiveGraphs returns the graphs currently awaiting confirmation or
// executing.
func (s *Session) ActiveGraphs() []*graph.TaskGraph {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*graph.TaskGraph, 0, len(s.active))
	for _, exec := range s.active {
		out = append(out, exec.Graph())
	}
	return out
}

// Tools exposes the session's tool registry.
func (s *Session) Tools() *tool.Registry { return s.tools }

func (s *Session) snapshotLocked() []provider.Message {
	out := make([]provider.Message, len(s.history))
	copy(out, s.history)
	return out
}
