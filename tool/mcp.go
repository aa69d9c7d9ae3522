package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const mcpProtocolVersion = "2024-11-05"

// ServerConfig identifies an MCP server launched over stdio.
type ServerConfig struct {
	Name    string   `json:"name" yaml:"name"`
	Command string   `json:"command" yaml:"command"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
}

// jsonRPCRequest is a JSON-RPC 2.0 request.
type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// jsonRPCResponse is a JSON-RPC 2.0 response.
type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MCPClient manages a connection to a single MCP server via stdio.
type MCPClient struct {
	name   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner
	mu     sync.Mutex
	nextID atomic.Int64
}

// ConnectMCP launches the server process and performs the initialize
// handshake, retrying with exponential backoff since servers may take a
// moment to come up.
func ConnectMCP(cfg ServerConfig) (*MCPClient, error) {
	var client *MCPClient
	op := func() error {
		c, err := dialMCP(cfg)
		if err != nil {
			return err
		}
		client = c
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("mcp %s: %w", cfg.Name, err)
	}
	return client, nil
}

func dialMCP(cfg ServerConfig) (*MCPClient, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	c := &MCPClient{
		name:   cfg.Name,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewScanner(stdout),
	}
	if _, err := c.call(context.Background(), "initialize", map[string]any{
		"protocolVersion": mcpProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "sprocket",
			"version": "1.0.0",
		},
	}); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return c, nil
}

func (c *MCPClient) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	data, _ := json.Marshal(req)
	data = append(data, '\n')

	if _, err := c.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	type scanResult struct {
		line []byte
		err  error
	}
	ch := make(chan scanResult, 1)
	go func() {
		if !c.stdout.Scan() {
			ch <- scanResult{err: fmt.Errorf("read response: EOF")}
			return
		}
		line := make([]byte, len(c.stdout.Bytes()))
		copy(line, c.stdout.Bytes())
		ch <- scanResult{line: line}
	}()

	var raw []byte
	select {
	case <-ctx.Done():
		// The stream cannot be resynced once a response is abandoned,
		// so cancellation tears the connection down.
		_ = c.stdin.Close()
		return nil, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		raw = res.line
	}

	var resp jsonRPCResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

// Close shuts the server down by closing its stdin and waiting for exit.
func (c *MCPClient) Close() error {
	c.stdin.Close()
	return c.cmd.Wait()
}

// mcpToolListResult matches the MCP tools/list response.
type mcpToolListResult struct {
	Tools []mcpToolInfo `json:"tools"`
}

type mcpToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// mcpCallResult matches the MCP tools/call response.
type mcpCallResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// mcpTool wraps one discovered MCP tool as a registry Invoker.
type mcpTool struct {
	client *MCPClient
	info   mcpToolInfo
}

func (t *mcpTool) Def() Def {
	def := Def{Name: t.info.Name, Description: t.info.Description}
	props, _ := t.info.InputSchema["properties"].(map[string]any)
	required := map[string]bool{}
	if reqs, ok := t.info.InputSchema["required"].([]any); ok {
		for _, r := range reqs {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}
	for name, raw := range props {
		p := Param{Name: name, Type: "string", Required: required[name]}
		if m, ok := raw.(map[string]any); ok {
			if v, ok := m["type"].(string); ok {
				p.Type = v
			}
			if v, ok := m["description"].(string); ok {
				p.Description = v
			}
		}
		def.Params = append(def.Params, p)
	}
	return def
}

func (t *mcpTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	result, err := t.client.call(ctx, "tools/call", map[string]any{
		"name":      t.info.Name,
		"arguments": args,
	})
	if err != nil {
		return "", err
	}
	var out mcpCallResult
	if err := json.Unmarshal(result, &out); err != nil {
		return "", fmt.Errorf("decode tool result: %w", err)
	}
	var text string
	for _, item := range out.Content {
		if item.Type == "text" {
			text += item.Text
		}
	}
	if out.IsError {
		return "", fmt.Errorf("%s", text)
	}
	return text, nil
}

// DiscoverTools lists the server's tools and registers each one.
func (c *MCPClient) DiscoverTools(reg *Registry, logger *slog.Logger) error {
	result, err := c.call(context.Background(), "tools/list", nil)
	if err != nil {
		return fmt.Errorf("mcp %s: tools/list: %w", c.name, err)
	}
	var list mcpToolListResult
	if err := json.Unmarshal(result, &list); err != nil {
		return fmt.Errorf("mcp %s: decode tool list: %w", c.name, err)
	}
	for _, info := range list.Tools {
		reg.Register(&mcpTool{client: c, info: info})
	}
	logger.Info("mcp tools registered",
		slog.String("server", c.name),
		slog.Int("count", len(list.Tools)))
	return nil
}
