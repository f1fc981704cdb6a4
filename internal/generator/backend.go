package generator

import (
	"context"
	"fmt"
	"time"
)

// Backend names accepted by New.
const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	Model   string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// New builds the Client for cfg.Backend.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Backend {
	case BackendGemini, "":
		return NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.Timeout)
	case BackendOpenAI:
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown generator backend %q", cfg.Backend)
	}
}
