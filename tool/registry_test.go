package tool

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func echoTool() Func {
	return Func{
		Definition: Def{
			Name:        "echo",
			Description: "repeats its input",
			Params: []Param{
				{Name: "text", Type: "string", Description: "text to repeat", Required: true},
			},
		},
		Fn: func(_ context.Context, args map[string]any) (string, error) {
			s, _ := args["text"].(string)
			return s, nil
		},
	}
}

func TestRegistry_RegisterAndInvoke(t *testing.T) {
	reg := NewRegistry(slog.Default())
	reg.Register(echoTool())

	out := reg.Invoke(context.Background(), "echo", map[string]any{"text": "hello"})
	if out != "hello" {
		t.Errorf("Invoke = %q, want hello", out)
	}
}

func TestRegistry_InvokeUnknownTool(t *testing.T) {
	reg := NewRegistry(slog.Default())
	out := reg.Invoke(context.Background(), "missing", nil)
	if !strings.Contains(out, "not available") {
		t.Errorf("Invoke = %q, want textual unavailable message", out)
	}
}

func TestRegistry_InvokeFailureIsTextual(t *testing.T) {
	reg := NewRegistry(slog.Default())
	reg.Register(Func{
		Definition: Def{Name: "broken", Description: "always fails"},
		Fn: func(context.Context, map[string]any) (string, error) {
			return "", errors.New("disk on fire")
		},
	})

	out := reg.Invoke(context.Background(), "broken", nil)
	if !strings.Contains(out, "disk on fire") {
		t.Errorf("Invoke = %q, want error text surfaced", out)
	}
}

func TestRegistry_DefsSorted(t *testing.T) {
	reg := NewRegistry(slog.Default())
	for _, name := range []string{"zeta", "alpha", "mid"} {
		reg.Register(Func{
			Definition: Def{Name: name},
			Fn:         func(context.Context, map[string]any) (string, error) { return "", nil },
		})
	}

	defs := reg.Defs()
	if len(defs) != 3 {
		t.Fatalf("got %d defs, want 3", len(defs))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, d := range defs {
		if d.Name != want[i] {
			t.Errorf("defs[%d] = %q, want %q", i, d.Name, want[i])
		}
	}
}

func TestRegistry_FilterSkipsUnknown(t *testing.T) {
	reg := NewRegistry(slog.Default())
	reg.Register(echoTool())

	defs := reg.Filter([]string{"echo", "ghost"})
	if len(defs) != 1 {
		t.Fatalf("got %d defs, want 1", len(defs))
	}
	if defs[0].Name != "echo" {
		t.Errorf("def name = %q, want echo", defs[0].Name)
	}
}

func TestRegistry_FilterEmptyReturnsAll(t *testing.T) {
	reg := NewRegistry(slog.Default())
	reg.Register(echoTool())
	reg.Register(Func{
		Definition: Def{Name: "clock", Description: "tells the time"},
		Fn:         func(context.Context, map[string]any) (string, error) { return "12:00", nil },
	})

	for _, names := range [][]string{nil, {}} {
		defs := reg.Filter(names)
		if len(defs) != 2 {
			t.Fatalf("Filter(%v) returned %d defs, want all 2", names, len(defs))
		}
	}
}

func TestDef_Schema(t *testing.T) {
	d := Def{
		Name: "lookup",
		Params: []Param{
			{Name: "id", Type: "integer", Description: "record id", Required: true},
			{Name: "verbose", Type: "boolean"},
		},
	}

	schema := d.Schema()
	if schema["type"] != "object" {
		t.Errorf("type = %v, want object", schema["type"])
	}
	props := schema["properties"].(map[string]any)
	id := props["id"].(map[string]any)
	if id["type"] != "integer" || id["description"] != "record id" {
		t.Errorf("id schema = %v", id)
	}
	required := schema["required"].([]string)
	if len(required) != 1 || required[0] != "id" {
		t.Errorf("required = %v, want [id]", required)
	}
}

func TestDef_SchemaDefaultsToString(t *testing.T) {
	d := Def{Name: "x", Params: []Param{{Name: "q"}}}
	props := d.Schema()["properties"].(map[string]any)
	q := props["q"].(map[string]any)
	if q["type"] != "string" {
		t.Errorf("type = %v, want string", q["type"])
	}
}
