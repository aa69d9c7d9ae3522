// Package config defines the Sprocket application configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Sprocket configuration.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	DataDir    string           `json:"data_dir" yaml:"data_dir"`
	LogLevel   string           `json:"log_level" yaml:"log_level"`
	Categories []CategoryConfig `json:"categories,omitempty" yaml:"categories"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"` // listen address, e.g., ":9090"
}

// CategoryConfig seeds a category record at first startup. Categories
// already present in the store are left untouched.
type CategoryConfig struct {
	Name         string             `json:"name" yaml:"name"`
	SystemPrompt string             `json:"system_prompt" yaml:"system_prompt"`
	Provider     string             `json:"provider" yaml:"provider"` // "mock", "anthropic", "openai"
	Model        string             `json:"model,omitempty" yaml:"model"`
	APIKey       string             `json:"api_key,omitempty" yaml:"api_key"`
	Endpoint     string             `json:"endpoint,omitempty" yaml:"endpoint"`
	MaxTokens    int                `json:"max_tokens,omitempty" yaml:"max_tokens"`
	ToolServers  []ToolServerConfig `json:"tool_servers,omitempty" yaml:"tool_servers"`
}

// ToolServerConfig identifies an MCP server launched over stdio.
type ToolServerConfig struct {
	Name    string   `json:"name" yaml:"name"`
	Command string   `json:"command" yaml:"command"`
	Args    []string `json:"args,omitempty" yaml:"args"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":9090",
		},
		DataDir:  "./data",
		LogLevel: "info",
		Categories: []CategoryConfig{
			{
				Name:         "General",
				SystemPrompt: "You are a helpful assistant. Answer clearly and concisely.",
				Provider:     "mock",
			},
		},
	}
}

// Load reads a YAML config file and returns the parsed configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
