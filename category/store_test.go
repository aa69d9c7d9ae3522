package category

import (
	"os"
	"strings"
	"testing"

	"github.com/GoCodeAlone/sprocket/tool"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	f, err := os.CreateTemp("", "sprocket-category-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	f.Close()
	path := f.Name()
	t.Cleanup(func() { os.Remove(path) })

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)

	c := &Category{
		Name:         "Cloud Ops",
		SystemPrompt: "You are a cloud operations assistant.",
		Provider:     "anthropic",
		Model:        "claude-sonnet-4-20250514",
		ToolServers: []tool.ServerConfig{
			{Name: "aws", Command: "aws-mcp", Args: []string{"--region", "us-east-1"}},
		},
	}
	id, err := store.Create(c)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("Create returned empty ID")
	}
	if c.ID != id {
		t.Errorf("c.ID = %q, want %q", c.ID, id)
	}
	if c.CreatedAt.IsZero() || c.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}

	got, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != c.Name || got.Provider != c.Provider || got.Model != c.Model {
		t.Errorf("Get = %+v", got)
	}
	if got.SystemPrompt != c.SystemPrompt {
		t.Errorf("SystemPrompt = %q", got.SystemPrompt)
	}
	if len(got.ToolServers) != 1 || got.ToolServers[0].Name != "aws" {
		t.Errorf("ToolServers = %v", got.ToolServers)
	}
	if len(got.ToolServers[0].Args) != 2 || got.ToolServers[0].Args[1] != "us-east-1" {
		t.Errorf("ToolServers args = %v", got.ToolServers[0].Args)
	}
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get("nope"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Get = %v, want not found", err)
	}
}

func TestSQLiteStore_Update(t *testing.T) {
	store := newTestStore(t)

	c := &Category{Name: "General", Provider: "openai", Model: "gpt-4o"}
	id, err := store.Create(c)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	c.Name = "General Assistant"
	c.SystemPrompt = "Be helpful."
	if err := store.Update(c); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "General Assistant" || got.SystemPrompt != "Be helpful." {
		t.Errorf("Get after update = %+v", got)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Error("UpdatedAt not refreshed")
	}
}

func TestSQLiteStore_UpdateMissing(t *testing.T) {
	store := newTestStore(t)
	if err := store.Update(&Category{ID: "ghost", Name: "x", Provider: "mock"}); err == nil {
		t.Fatal("Update of missing category returned nil error")
	}
}

func TestSQLiteStore_ListOrdered(t *testing.T) {
	store := newTestStore(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := store.Create(&Category{Name: name, Provider: "mock"}); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	cats, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(cats) != 3 {
		t.Fatalf("got %d categories, want 3", len(cats))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, c := range cats {
		if c.Name != want[i] {
			t.Errorf("cats[%d] = %q, want %q", i, c.Name, want[i])
		}
	}
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := newTestStore(t)
	id, err := store.Create(&Category{Name: "temp", Provider: "mock"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(id); err == nil {
		t.Fatal("Get after Delete returned nil error")
	}
	if err := store.Delete(id); err == nil {
		t.Fatal("second Delete returned nil error")
	}
}
