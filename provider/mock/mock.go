// Package mock provides a scripted reasoning provider for testing and for
// running the server without API credentials.
package mock

import (
	"context"
	"sync"

	"github.com/GoCodeAlone/sprocket/provider"
)

const defaultResponse = "Acknowledged. Working on it."

// Step is one scripted exchange: either a response or an error.
type Step struct {
	Response *provider.Response
	Err      error
}

// Provider implements provider.Provider with scripted responses.
// Once the script is exhausted it repeats the last step; with no script it
// returns a fixed acknowledgement. It records every call for assertions.
type Provider struct {
	mu    sync.Mutex
	steps []Step
	idx   int

	// Fn, when set, overrides the script and computes the reply per call.
	Fn func(messages []provider.Message, tools []provider.ToolDef) (*provider.Response, error)

	calls [][]provider.Message
}

// New creates a mock provider that replies with the given text responses in order.
func New(responses ...string) *Provider {
	p := &Provider{}
	for _, r := range responses {
		p.steps = append(p.steps, Step{Response: &provider.Response{Content: r}})
	}
	return p
}

// NewScripted creates a mock provider from explicit steps.
func NewScripted(steps ...Step) *Provider {
	return &Provider{steps: steps}
}

func (p *Provider) Name() string { return "mock" }

// Chat returns the next scripted step.
func (p *Provider) Chat(_ context.Context, messages []provider.Message, tools []provider.ToolDef) (*provider.Response, error) {
	p.mu.Lock()

	snapshot := make([]provider.Message, len(messages))
	copy(snapshot, messages)
	p.calls = append(p.calls, snapshot)
	fn := p.Fn

	if fn != nil {
		// Run outside the lock so concurrent calls don't serialize and a
		// blocking Fn can't wedge other callers.
		p.mu.Unlock()
		return fn(messages, tools)
	}
	defer p.mu.Unlock()

	if len(p.steps) == 0 {
		return &provider.Response{Content: defaultResponse}, nil
	}

	step := p.steps[p.idx]
	if p.idx < len(p.steps)-1 {
		p.idx++
	}
	if step.Err != nil {
		return nil, step.Err
	}
	// Copy so callers can't mutate the script.
	resp := *step.Response
	return &resp, nil
}

// Calls returns the message snapshots of every Chat invocation so far.
func (p *Provider) Calls() [][]provider.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]provider.Message, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallCount returns how many times Chat has been invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
