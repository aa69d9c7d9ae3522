package agent

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/GoCodeAlone/sprocket/provider"
	"github.com/GoCodeAlone/sprocket/provider/mock"
	"github.com/GoCodeAlone/sprocket/tool"
)

func registryWith(t *testing.T, name string, fn func(context.Context, map[string]any) (string, error)) *tool.Registry {
	t.Helper()
	reg := tool.NewRegistry(slog.Default())
	reg.Register(tool.Func{
		Definition: tool.Def{Name: name, Description: "test tool"},
		Fn:         fn,
	})
	return reg
}

func TestRunner_PlainResponse(t *testing.T) {
	p := mock.NewScripted(mock.Step{Response: &provider.Response{Content: "just an answer"}})
	r := NewRunner(p, nil, slog.Default())

	out, err := r.Run(context.Background(), []provider.Message{
		{Role: provider.RoleUser, Content: "hi"},
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "just an answer" {
		t.Errorf("out = %q", out)
	}
	if p.CallCount() != 1 {
		t.Errorf("provider called %d times, want 1", p.CallCount())
	}
}

func TestRunner_ToolLoop(t *testing.T) {
	reg := registryWith(t, "clock", func(context.Context, map[string]any) (string, error) {
		return "12:00", nil
	})
	p := mock.NewScripted(
		mock.Step{Response: &provider.Response{
			ToolCalls: []provider.ToolCall{{ID: "tc1", Name: "clock"}},
		}},
		mock.Step{Response: &provider.Response{Content: "it is noon"}},
	)
	r := NewRunner(p, reg, slog.Default())

	out, err := r.Run(context.Background(), []provider.Message{
		{Role: provider.RoleUser, Content: "what time is it"},
	}, []string{"clock"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "it is noon" {
		t.Errorf("out = %q", out)
	}

	// The second call must carry the tool result back to the model.
	second := p.Calls()[1]
	last := second[len(second)-1]
	if last.Role != provider.RoleTool || last.Content != "12:00" || last.ToolCallID != "tc1" {
		t.Errorf("tool result message = %+v", last)
	}
}

func TestRunner_ToolFailureFedBack(t *testing.T) {
	reg := registryWith(t, "flaky", func(context.Context, map[string]any) (string, error) {
		return "", errors.New("timeout")
	})
	p := mock.NewScripted(
		mock.Step{Response: &provider.Response{
			ToolCalls: []provider.ToolCall{{ID: "tc1", Name: "flaky"}},
		}},
		mock.Step{Response: &provider.Response{Content: "could not check"}},
	)
	r := NewRunner(p, reg, slog.Default())

	out, err := r.Run(context.Background(), []provider.Message{
		{Role: provider.RoleUser, Content: "go"},
	}, []string{"flaky"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "could not check" {
		t.Errorf("out = %q", out)
	}
}

func TestRunner_ProviderError(t *testing.T) {
	p := mock.NewScripted(mock.Step{Err: errors.New("backend down")})
	r := NewRunner(p, nil, slog.Default())

	if _, err := r.Run(context.Background(), nil, nil); err == nil {
		t.Fatal("Run returned nil error")
	}
}

func TestRunner_IterationBound(t *testing.T) {
	reg := registryWith(t, "loop", func(context.Context, map[string]any) (string, error) {
		return "again", nil
	})
	// Always request another tool call; the runner must give up.
	p := mock.NewScripted(mock.Step{Response: &provider.Response{
		ToolCalls: []provider.ToolCall{{ID: "tc", Name: "loop"}},
	}})
	r := NewRunner(p, reg, slog.Default())

	if _, err := r.Run(context.Background(), nil, []string{"loop"}); err == nil {
		t.Fatal("Run returned nil error for unbounded tool loop")
	}
	if p.CallCount() != DefaultMaxIterations {
		t.Errorf("provider called %d times, want %d", p.CallCount(), DefaultMaxIterations)
	}
}

func TestRunner_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := mock.NewScripted(mock.Step{Response: &provider.Response{Content: "never"}})
	r := NewRunner(p, nil, slog.Default())

	if _, err := r.Run(ctx, nil, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
}
