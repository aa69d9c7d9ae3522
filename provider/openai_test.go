package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIProvider_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q, want /v1/chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "hi back"}}],
			"usage": {"prompt_tokens": 7, "completion_tokens": 3}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})
	resp, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "hi back" {
		t.Errorf("Content = %q, want %q", resp.Content, "hi back")
	}
	if resp.Usage.InputTokens != 7 || resp.Usage.OutputTokens != 3 {
		t.Errorf("Usage = %+v, want 7/3", resp.Usage)
	}
}

func TestOpenAIProvider_ChatToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {
				"role": "assistant",
				"tool_calls": [{"id": "call_1", "type": "function",
					"function": {"name": "lookup", "arguments": "{\"id\": 42}"}}]
			}}]
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	resp, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "look up 42"}},
		[]ToolDef{{Name: "lookup", Description: "look things up"}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.Name != "lookup" {
		t.Errorf("tool name = %q, want lookup", tc.Name)
	}
	if v, ok := tc.Arguments["id"].(float64); !ok || v != 42 {
		t.Errorf("arguments = %v, want id=42", tc.Arguments)
	}
}

func TestOpenAIProvider_ReplaysToolCalls(t *testing.T) {
	var gotReq openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "all done"}}]
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Chat(context.Background(), []Message{
		{Role: RoleUser, Content: "look up 42"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "call_1", Name: "lookup", Arguments: map[string]any{"id": 42}},
		}},
		{Role: RoleTool, Content: "record 42", ToolCallID: "call_1"},
	}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	assistant := gotReq.Messages[1]
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("assistant message has %d tool_calls, want 1", len(assistant.ToolCalls))
	}
	otc := assistant.ToolCalls[0]
	if otc.ID != "call_1" || otc.Type != "function" || otc.Function.Name != "lookup" {
		t.Errorf("tool call = %+v", otc)
	}
	if otc.Function.Arguments != `{"id":42}` {
		t.Errorf("arguments = %q, want re-encoded JSON", otc.Function.Arguments)
	}
	if gotReq.Messages[2].ToolCallID != "call_1" {
		t.Errorf("tool result tool_call_id = %q", gotReq.Messages[2].ToolCallID)
	}
}

func TestOpenAIProvider_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	if _, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil); err == nil {
		t.Fatal("Chat returned nil error for empty choices")
	}
}

func TestOpenAIProvider_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"type": "server_error", "message": "boom"}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	if _, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil); err == nil {
		t.Fatal("Chat returned nil error on 500")
	}
}
