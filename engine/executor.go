// Package engine schedules and executes one task graph: it dispatches
// ready subtasks as dependencies resolve, propagates failures to
// dependents, and synthesizes a single final answer when every subtask
// reaches a terminal state.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GoCodeAlone/sprocket/agent"
	"github.com/GoCodeAlone/sprocket/event"
	"github.com/GoCodeAlone/sprocket/graph"
	"github.com/GoCodeAlone/sprocket/provider"
)

// DefaultMaxParallel bounds how many system subtasks run concurrently
// within one graph.
const DefaultMaxParallel = 4

// Config wires an Executor to its collaborators.
type Config struct {
	Graph    *graph.TaskGraph
	Runner   *agent.Runner
	Provider provider.Provider

	// History is a snapshot of the conversation at graph-creation time,
	// used as context for subtask execution and synthesis.
	History []provider.Message

	// Emit publishes a real-time event to the session's clients.
	// Must not block.
	Emit func(event.Event)

	// OnComplete is called exactly once, after the final summary has
	// been emitted.
	OnComplete func(taskID, summary string)

	Logger      *slog.Logger
	MaxParallel int
}

// Executor runs one task graph to completion. It is created in an
// unstarted state; nothing is dispatched until Start is called with the
// user's confirmation.
type Executor struct {
	cfg   Config
	byID  map[string]*graph.Subtask
	byDep map[string][]*graph.Subtask

	mu          sync.Mutex
	started     bool
	synthesized bool

	// trigger wakes the run loop when an external transition (human
	// output) may have unlocked new work.
	trigger chan struct{}
}

// New creates an executor for a validated graph.
func New(cfg Config) *Executor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	if cfg.Emit == nil {
		cfg.Emit = func(event.Event) {}
	}
	e := &Executor{
		cfg:     cfg,
		byID:    make(map[string]*graph.Subtask, len(cfg.Graph.Subtasks)),
		byDep:   make(map[string][]*graph.Subtask),
		trigger: make(chan struct{}, 1),
	}
	for _, st := range cfg.Graph.Subtasks {
		e.byID[st.ID] = st
		for _, dep := range st.Dependencies {
			e.byDep[dep] = append(e.byDep[dep], st)
		}
	}
	return e
}

// Graph returns the graph under execution.
func (e *Executor) Graph() *graph.TaskGraph { return e.cfg.Graph }

// Started reports whether execution has been confirmed.
func (e *Executor) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// Start confirms the plan and begins dispatching. Calling Start twice
// is an error; the first call wins.
func (e *Executor) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return fmt.Errorf("task %s already started", e.cfg.Graph.TaskID)
	}
	e.started = true
	e.mu.Unlock()

	go e.run(ctx)
	return nil
}

// run is the scheduling loop: dispatch the ready frontier, check for
// completion, then wait for an external transition to unlock more work.
func (e *Executor) run(ctx context.Context) {
	for {
		e.dispatch(ctx)
		if e.maybeSynthesize(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			e.cfg.Logger.Info("executor stopped",
				slog.String("task_id", e.cfg.Graph.TaskID))
			return
		case <-e.trigger:
		}
	}
}

func (e *Executor) signal() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// dispatch repeatedly claims the ready frontier and executes it until
// no subtask is ready. System subtasks within one frontier run
// concurrently, bounded by MaxParallel; user subtasks merely move to
// in_progress and wait for HandleUserOutput.
func (e *Executor) dispatch(ctx context.Context) {
	for {
		batch := e.claimReady()
		if len(batch) == 0 {
			return
		}

		var g errgroup.Group
		g.SetLimit(e.cfg.MaxParallel)
		for _, st := range batch {
			g.Go(func() error {
				e.runSystem(ctx, st)
				return nil
			})
		}
		_ = g.Wait()
	}
}

// claimReady transitions every ready subtask to in_progress under the
// graph lock and returns the system subtasks to execute. The transition
// guard makes dispatch re-entrant: a subtask leaves pending exactly once.
func (e *Executor) claimReady() []*graph.Subtask {
	e.mu.Lock()
	defer e.mu.Unlock()

	var batch []*graph.Subtask
	for _, st := range e.cfg.Graph.Subtasks {
		if st.Status != graph.StatusPending || !e.depsMet(st) {
			continue
		}
		st.Status = graph.StatusInProgress
		e.emitStatus(st)
		if st.Executor == graph.ExecutorSystem {
			batch = append(batch, st)
		}
	}
	return batch
}

func (e *Executor) depsMet(st *graph.Subtask) bool {
	for _, dep := range st.Dependencies {
		d, ok := e.byID[dep]
		if !ok {
			continue
		}
		if d.Status != graph.StatusSucceeded {
			return false
		}
	}
	return true
}

// runSystem executes one system subtask via a scoped reasoning+tool
// loop. The graph lock is never held across the provider call.
func (e *Executor) runSystem(ctx context.Context, st *graph.Subtask) {
	e.cfg.Logger.Info("subtask start",
		slog.String("task_id", e.cfg.Graph.TaskID),
		slog.String("subtask", st.Name),
		slog.Any("tools", st.Tools))

	prompt := e.buildPrompt(st)
	messages := make([]provider.Message, 0, len(e.cfg.History)+1)
	messages = append(messages, e.cfg.History...)
	messages = append(messages, provider.Message{Role: provider.RoleUser, Content: prompt})

	start := time.Now()
	out, err := e.cfg.Runner.Run(ctx, messages, st.Tools)

	e.mu.Lock()
	if err != nil {
		st.Status = graph.StatusFailed
		st.Result = fmt.Sprintf("Error: %v", err)
		e.cfg.Logger.Error("subtask failed",
			slog.String("subtask", st.Name),
			slog.Any("error", err))
	} else {
		st.Status = graph.StatusSucceeded
		st.Result = out
		e.cfg.Logger.Info("subtask done",
			slog.String("subtask", st.Name),
			slog.Duration("elapsed", time.Since(start)))
	}
	e.emitStatus(st)
	if st.Status == graph.StatusFailed {
		e.propagateFailure(st)
	}
	e.mu.Unlock()
}

// buildPrompt combines the subtask description with a digest of its
// direct dependencies' results.
func (e *Executor) buildPrompt(st *graph.Subtask) string {
	e.mu.Lock()
	var parts []string
	for _, dep := range st.Dependencies {
		if d, ok := e.byID[dep]; ok && d.Result != "" {
			parts = append(parts, fmt.Sprintf("[%s]: %s", d.Name, d.Result))
		}
	}
	e.mu.Unlock()

	depContext := "No prerequisites."
	if len(parts) > 0 {
		depContext = strings.Join(parts, "\n")
	}
	return fmt.Sprintf(
		"Execute this subtask: %s\n%s\n\nContext from completed prerequisites:\n%s\n\n"+
			"Format your response in markdown. When presenting structured data, comparisons, "+
			"lists of items with attributes, or costs/metrics, prefer using markdown tables.",
		st.Name, st.Description, depContext)
}

// propagateFailure marks every pending transitive dependent of a failed
// subtask as failed, to fixpoint. Caller holds the graph lock. An
// iterative worklist keeps deep graphs from recursing.
func (e *Executor) propagateFailure(failed *graph.Subtask) {
	work := []*graph.Subtask{failed}
	for len(work) > 0 {
		cause := work[0]
		work = work[1:]
		for _, dep := range e.byDep[cause.ID] {
			if dep.Status != graph.StatusPending {
				continue
			}
			dep.Status = graph.StatusFailed
			dep.Result = fmt.Sprintf("Skipped: dependency '%s' failed", cause.Name)
			e.emitStatus(dep)
			work = append(work, dep)
		}
	}
}

// HandleUserOutput records a human-supplied result for a subtask. An
// unknown subtask ID, or output for a subtask already in a terminal
// state, is a logged no-op: out-of-order or duplicate client messages
// must not disturb execution. The first output wins.
func (e *Executor) HandleUserOutput(subtaskID, output string) {
	e.mu.Lock()
	st, ok := e.byID[subtaskID]
	if !ok {
		e.mu.Unlock()
		e.cfg.Logger.Warn("user output for unknown subtask",
			slog.String("subtask_id", subtaskID))
		return
	}
	if st.Status.Terminal() {
		e.mu.Unlock()
		e.cfg.Logger.Warn("duplicate user output ignored",
			slog.String("subtask", st.Name),
			slog.String("status", string(st.Status)))
		return
	}
	st.Status = graph.StatusSucceeded
	st.Result = output
	e.emitStatus(st)
	e.mu.Unlock()

	e.signal()
}

// emitStatus publishes a status update. Caller holds the graph lock, so
// updates for one subtask always arrive in transition order.
func (e *Executor) emitStatus(st *graph.Subtask) {
	e.cfg.Emit(event.Event{
		Type: event.TypeSubtaskStatusUpdate,
		Payload: event.SubtaskStatusUpdate{
			TaskID:    e.cfg.Graph.TaskID,
			SubtaskID: st.ID,
			Status:    st.Status,
			Result:    st.Result,
		},
	})
}

// maybeSynthesize produces the final consolidated answer the first time
// the graph is complete. Returns true once synthesis has run (or had
// already run), signalling the run loop to exit.
func (e *Executor) maybeSynthesize(ctx context.Context) bool {
	e.mu.Lock()
	if e.synthesized {
		e.mu.Unlock()
		return true
	}
	if !e.cfg.Graph.Complete() {
		e.mu.Unlock()
		return false
	}
	e.synthesized = true
	transcript := e.transcript()
	e.mu.Unlock()

	e.cfg.Logger.Info("all subtasks complete, synthesizing final response",
		slog.String("task_id", e.cfg.Graph.TaskID))

	summary := e.synthesize(ctx, transcript)

	e.cfg.Emit(event.Event{
		Type: event.TypeTaskCompleted,
		Payload: event.TaskCompleted{
			TaskID:  e.cfg.Graph.TaskID,
			Summary: summary,
		},
	})
	if e.cfg.OnComplete != nil {
		e.cfg.OnComplete(e.cfg.Graph.TaskID, summary)
	}
	return true
}

// transcript renders every subtask's terminal status and result.
// Caller holds the graph lock.
func (e *Executor) transcript() string {
	var parts []string
	for _, st := range e.cfg.Graph.Subtasks {
		status := "FAILED"
		if st.Status == graph.StatusSucceeded {
			status = "SUCCEEDED"
		}
		result := st.Result
		if result == "" {
			result = "(no output)"
		}
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", status, st.Name, result))
	}
	return strings.Join(parts, "\n\n")
}

// synthesize asks the provider for one direct answer to the original
// message. On failure it falls back to a deterministic summary so the
// graph never finishes without a final user-visible message.
func (e *Executor) synthesize(ctx context.Context, transcript string) string {
	prompt := fmt.Sprintf(
		"The user asked: %s\n\n"+
			"The following subtasks were executed to answer the request. "+
			"Synthesize a single, clear, final response for the user based on these results. "+
			"Do NOT list subtask names or mention that subtasks were executed. "+
			"Present the information as a direct answer to the user's original question. "+
			"Use markdown formatting with tables where appropriate.\n\n"+
			"Subtask results:\n%s",
		e.cfg.Graph.UserMessage, transcript)

	messages := make([]provider.Message, 0, len(e.cfg.History)+1)
	messages = append(messages, e.cfg.History...)
	messages = append(messages, provider.Message{Role: provider.RoleUser, Content: prompt})

	resp, err := e.cfg.Provider.Chat(ctx, messages, nil)
	if err == nil {
		return resp.Content
	}
	e.cfg.Logger.Error("final synthesis failed, using fallback summary",
		slog.Any("error", err))

	e.mu.Lock()
	defer e.mu.Unlock()
	var parts []string
	for _, st := range e.cfg.Graph.Subtasks {
		icon := "FAILED"
		if st.Status == graph.StatusSucceeded {
			icon = "OK"
		}
		parts = append(parts, fmt.Sprintf("- [%s] %s", icon, st.Name))
		if st.Result != "" {
			parts = append(parts, "  "+st.Result)
		}
	}
	return "Task complete.\n" + strings.Join(parts, "\n")
}
