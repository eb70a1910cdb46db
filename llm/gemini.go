package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/lexcodex/codebuddy/framework"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// contentGenerator is the slice of *genai.Models the client needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient implements framework.LanguageModel on the Gemini API.
type GeminiClient struct {
	Model  string
	Logger *zap.Logger
	models contentGenerator
}

// NewGeminiClient creates a client for the given API key.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{Model: model, models: client.Models}, nil
}

// Generate sends the prompt as a single user turn.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	model := c.Model
	if options != nil && options.Model != "" {
		model = options.Model
	}
	result, err := c.models.GenerateContent(ctx, model, genai.Text(prompt), geminiConfig(options))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return nil, errors.New("gemini returned an empty response")
	}
	resp := &framework.LLMResponse{
		Text:     text,
		Metadata: map[string]interface{}{"provider": "gemini"},
	}
	if len(result.Candidates) > 0 && result.Candidates[0] != nil {
		resp.FinishReason = string(result.Candidates[0].FinishReason)
	}
	if u := result.UsageMetadata; u != nil {
		resp.Usage = map[string]int{
			"prompt_tokens":     int(u.PromptTokenCount),
			"completion_tokens": int(u.CandidatesTokenCount),
			"total_tokens":      int(u.TotalTokenCount),
		}
	}
	framework.LoggerOrNop(c.Logger).Debug("gemini response",
		zap.String("model", model),
		zap.Int("chars", len(text)),
		zap.String("finish_reason", resp.FinishReason))
	return resp, nil
}

func geminiConfig(options *framework.LLMOptions) *genai.GenerateContentConfig {
	if options == nil {
		return nil
	}
	cfg := &genai.GenerateContentConfig{}
	if options.Temperature != 0 {
		cfg.Temperature = genai.Ptr(float32(options.Temperature))
	}
	if options.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(options.MaxTokens)
	}
	if len(options.Stop) > 0 {
		cfg.StopSequences = options.Stop
	}
	return cfg
}
