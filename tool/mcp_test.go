package tool

import (
	"context"
	"errors"
	"testing"
	"time"
)

// echoServer answers exactly one request by echoing it back (the echoed
// initialize request decodes as an error-free response), then goes silent.
var echoServer = ServerConfig{
	Name:    "slow",
	Command: "sh",
	Args:    []string{"-c", `read line; printf '%s\n' "$line"; sleep 60`},
}

func TestMCPClient_CallCancelled(t *testing.T) {
	c, err := dialMCP(echoServer)
	if err != nil {
		t.Fatalf("dialMCP: %v", err)
	}
	t.Cleanup(func() {
		_ = c.cmd.Process.Kill()
		_ = c.cmd.Wait()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = c.call(ctx, "tools/list", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("call = %v, want context.DeadlineExceeded", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("call did not return promptly on cancellation")
	}
}
