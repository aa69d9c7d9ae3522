// Package category manages the configuration records behind sessions: a
// category names a reasoning backend, model, system prompt, and the MCP
// tool servers available to it.
package category

import (
	"time"

	"github.com/GoCodeAlone/sprocket/tool"
)

// Category is one session configuration record. Sessions read it; only
// the management API mutates it.
type Category struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	SystemPrompt string              `json:"system_prompt"`
	Provider     string              `json:"provider"`
	Model        string              `json:"model"`
	APIKey       string              `json:"api_key,omitempty"`
	Endpoint     string              `json:"endpoint,omitempty"`
	MaxTokens    int                 `json:"max_tokens,omitempty"`
	ToolServers  []tool.ServerConfig `json:"tool_servers,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Store is the persistence interface for categories.
type Store interface {
	Create(c *Category) (string, error)
	Get(id string) (*Category, error)
	Update(c *Category) error
	List() ([]*Category, error)
	Delete(id string) error
	Close() error
}
