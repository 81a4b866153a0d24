package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config は、プロバイダーを選んで LLM を組み立てるための設定です。
type Config struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"-"`
	Project  string `yaml:"project"`
	Location string `yaml:"location"`
}

// New は cfg.Provider に応じた LLM を生成します。
func New(ctx context.Context, cfg Config) (LLM, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm.New: model is not set")
	}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		return NewOpenAI(OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
		}), nil
	case ProviderGemini:
		return NewGemini(ctx, GeminiConfig{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Project:  cfg.Project,
			Location: cfg.Location,
			Model:    cfg.Model,
		})
	default:
		return nil, fmt.Errorf("llm.New: unknown provider %q", cfg.Provider)
	}
}
