package tool

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/GoCodeAlone/sprocket/provider"
)

// Registry holds the tools available to subtask execution. Tools are
// registered at startup (built-ins plus MCP discovery) and looked up by
// name at dispatch time.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Invoker
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]Invoker),
		logger: logger,
	}
}

// Register adds a tool. A later registration under the same name
// replaces the earlier one.
func (r *Registry) Register(inv Invoker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := inv.Def().Name
	if _, ok := r.tools[name]; ok {
		r.logger.Warn("replacing registered tool", slog.String("tool", name))
	}
	r.tools[name] = inv
}

// Defs returns all tool definitions sorted by name.
func (r *Registry) Defs() []Def {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Def, 0, len(r.tools))
	for _, inv := range r.tools {
		defs = append(defs, inv.Def())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Filter returns the provider tool definitions for the named tools.
// Names with no registered tool are skipped. An empty name list means
// unrestricted: every registered tool is returned.
func (r *Registry) Filter(names []string) []provider.ToolDef {
	if len(names) == 0 {
		var defs []provider.ToolDef
		for _, d := range r.Defs() {
			defs = append(defs, d.ProviderDef())
		}
		return defs
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var defs []provider.ToolDef
	for _, name := range names {
		inv, ok := r.tools[name]
		if !ok {
			r.logger.Warn("unknown tool requested", slog.String("tool", name))
			continue
		}
		defs = append(defs, inv.Def().ProviderDef())
	}
	return defs
}

// Invoke runs the named tool. Failures never propagate as errors: the
// model sees a textual description of what went wrong and decides how
// to proceed.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) string {
	r.mu.RLock()
	inv, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Sprintf("Error: tool %q is not available", name)
	}
	out, err := inv.Invoke(ctx, args)
	if err != nil {
		r.logger.Warn("tool invocation failed",
			slog.String("tool", name),
			slog.Any("error", err))
		return fmt.Sprintf("Error executing tool %q: %v", name, err)
	}
	return out
}
