package analyzers

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/model"
	logx "github.com/Chative-core-poc-v1/assistant-core/pkg/logger"
)

// GeminiConfig holds what is needed to reach the Gemini API.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   model.AnalyzerModelConfig
}

// NewGeminiChatModel creates the chat model shared by every roster member.
func NewGeminiChatModel(ctx context.Context, cfg GeminiConfig) (*gemini.ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	temperature := cfg.Model.Temperature
	maxTokens := cfg.Model.MaxTokens
	gcfg := &gemini.Config{
		Client:      client,
		Model:       cfg.Model.Model,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}
	if cfg.Model.ThinkingBudget > 0 {
		gcfg.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(cfg.Model.ThinkingBudget),
		}
	}

	cm, err := gemini.NewChatModel(ctx, gcfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating analyzer model")
		return nil, fmt.Errorf("error creating analyzer model: %w", err)
	}
	logx.Debug().Str("model", cfg.Model.Model).Msg("analyzer chat model ready")
	return cm, nil
}
