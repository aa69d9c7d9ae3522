package provider

import "fmt"

// Settings selects and configures a reasoning backend. It mirrors the
// provider fields of a category record.
type Settings struct {
	Provider  string
	Model     string
	APIKey    string
	Endpoint  string
	MaxTokens int
}

var registry = map[string]func(Settings) Provider{}

// RegisterFactory installs a constructor for a custom provider name.
// The built-in names need no registration; tests use this to inject mocks.
func RegisterFactory(name string, fn func(Settings) Provider) {
	registry[name] = fn
}

// New constructs a Provider from settings. An unknown provider name is an
// unrecoverable setup error for the session being created.
func New(s Settings) (Provider, error) {
	if fn, ok := registry[s.Provider]; ok {
		return fn(s), nil
	}
	switch s.Provider {
	case "anthropic":
		return NewAnthropicProvider(AnthropicConfig{
			APIKey:    s.APIKey,
			Model:     s.Model,
			BaseURL:   s.Endpoint,
			MaxTokens: s.MaxTokens,
		}), nil
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:    s.APIKey,
			Model:     s.Model,
			BaseURL:   s.Endpoint,
			MaxTokens: s.MaxTokens,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", s.Provider)
	}
}
