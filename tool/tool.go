// Package tool manages the tools available to system-executed subtasks:
// a registry of invokable tools plus MCP server connections that
// contribute tools discovered at startup.
package tool

import (
	"context"

	"github.com/GoCodeAlone/sprocket/provider"
)

// Param describes one input parameter of a tool.
type Param struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Required    bool   `json:"required" yaml:"required"`
}

// Def describes a tool: its name, what it does, and its parameters.
type Def struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Params      []Param `json:"params,omitempty" yaml:"params,omitempty"`
}

// Schema renders the tool's parameters as a JSON Schema object suitable
// for a provider ToolDef.
func (d Def) Schema() map[string]any {
	props := map[string]any{}
	var required []string
	for _, p := range d.Params {
		typ := p.Type
		if typ == "" {
			typ = "string"
		}
		props[p.Name] = map[string]any{
			"type":        typ,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// ProviderDef converts the definition to the provider wire shape.
func (d Def) ProviderDef() provider.ToolDef {
	return provider.ToolDef{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.Schema(),
	}
}

// Invoker executes a single tool.
type Invoker interface {
	Def() Def
	Invoke(ctx context.Context, args map[string]any) (string, error)
}

// Func adapts a plain function into an Invoker.
type Func struct {
	Definition Def
	Fn         func(ctx context.Context, args map[string]any) (string, error)
}

func (f Func) Def() Def { return f.Definition }

func (f Func) Invoke(ctx context.Context, args map[string]any) (string, error) {
	return f.Fn(ctx, args)
}
