package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/hr-benefits-assistant/server/internal/agent/model"
	logx "github.com/hr-benefits-assistant/server/pkg/logger"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// NewBackend creates the chat model for the configured provider.
func NewBackend(ctx context.Context, cfg model.GatewayConfig) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGemini:
		return NewGeminiBackend(ctx, cfg)
	case ProviderOpenAI:
		return NewOpenAIBackend(cfg)
	default:
		return Backend{}, fmt.Errorf("unknown gateway provider %q", cfg.Provider)
	}
}

// NewGeminiBackend creates a Gemini chat model. Thinking is disabled; the
// callers want a short label or JSON object, not reasoning.
func NewGeminiBackend(ctx context.Context, cfg model.GatewayConfig) (Backend, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.GeminiBaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.GeminiBaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return Backend{}, fmt.Errorf("error creating Gemini client: %w", err)
	}

	maxTokens := cfg.MaxTokens
	chat, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:    client,
		Model:     cfg.Model,
		MaxTokens: &maxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(0)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini chat model")
		return Backend{}, fmt.Errorf("error creating Gemini chat model: %w", err)
	}

	modelName := cfg.Model
	return Backend{
		Chat:  chat,
		Model: modelName,
		Probe: func(ctx context.Context) error {
			_, err := client.Models.Get(ctx, modelName, nil)
			return err
		},
	}, nil
}
