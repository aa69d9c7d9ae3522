package session

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/GoCodeAlone/sprocket/category"
	"github.com/GoCodeAlone/sprocket/event"
	"github.com/GoCodeAlone/sprocket/provider"
	"github.com/GoCodeAlone/sprocket/provider/mock"
)

// stubStore is an in-memory category.Store.
type stubStore struct {
	categories map[string]*category.Category
}

func (s *stubStore) Create(c *category.Category) (string, error) {
	s.categories[c.ID] = c
	return c.ID, nil
}

func (s *stubStore) Get(id string) (*category.Category, error) {
	c, ok := s.categories[id]
	if !ok {
		return nil, fmt.Errorf("category %s not found", id)
	}
	return c, nil
}

func (s *stubStore) Update(c *category.Category) error { return nil }
func (s *stubStore) Delete(id string) error            { return nil }
func (s *stubStore) Close() error                      { return nil }

func (s *stubStore) List() ([]*category.Category, error) {
	var out []*category.Category
	for _, c := range s.categories {
		out = append(out, c)
	}
	return out, nil
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	provider.RegisterFactory("mock", func(provider.Settings) provider.Provider {
		return mock.New()
	})
	store := &stubStore{categories: map[string]*category.Category{
		"cat-1": {ID: "cat-1", Name: "General", Provider: "mock"},
	}}
	m := NewManager(store, event.NewHub(slog.Default()), slog.Default())
	t.Cleanup(m.CloseAll)
	return m
}

func TestManager_CreateAndGet(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Create("cat-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID == "" {
		t.Fatal("session has no ID")
	}

	got, ok := m.Get(s.ID)
	if !ok || got != s {
		t.Errorf("Get = %v, %v", got, ok)
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d, want 1", m.Count())
	}
}

func TestManager_CreateUnknownCategory(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Create("no-such-category"); err == nil {
		t.Fatal("Create returned nil error for unknown category")
	}
}

func TestManager_Delete(t *testing.T) {
	m := newTestManager(t)
	s, err := m.Create("cat-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := m.Delete(s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := m.Get(s.ID); ok {
		t.Error("session still present after Delete")
	}
	if err := m.Delete(s.ID); err == nil {
		t.Error("second Delete returned nil error")
	}
}

func TestManager_SessionsAreIndependent(t *testing.T) {
	m := newTestManager(t)
	a, err := m.Create("cat-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := m.Create("cat-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == b.ID {
		t.Error("sessions share an ID")
	}
	if m.Count() != 2 {
		t.Errorf("Count = %d, want 2", m.Count())
	}
}
