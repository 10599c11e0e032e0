package extract

import (
	"context"
	"fmt"
)

// Config selects and configures a backend.
type Config struct {
	Provider string // "gemini" or "openai"
	APIKey   string
	Model    string
	BaseURL  string
}

// NewBackend builds the backend named by cfg.Provider.
func NewBackend(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Provider {
	case "", "gemini":
		return NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL)
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", cfg.Provider)
	}
}
