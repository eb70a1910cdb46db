package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/lexcodex/codebuddy/framework"
)

type fakeGenerator struct {
	model  string
	config *genai.GenerateContentConfig
	prompt string
	resp   *genai.GenerateContentResponse
	err    error
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      genai.NewContentFromText(text, genai.RoleModel),
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     4,
			CandidatesTokenCount: 6,
			TotalTokenCount:      10,
		},
	}
}

func TestGeminiGenerate(t *testing.T) {
	fake := &fakeGenerator{resp: textResponse("  git_status()\n")}
	client := &GeminiClient{Model: DefaultGeminiModel, models: fake}

	resp, err := client.Generate(context.Background(), "what changed?", &framework.LLMOptions{Temperature: 0.1, MaxTokens: 512})
	require.NoError(t, err)
	assert.Equal(t, "git_status()", resp.Text)
	assert.Equal(t, string(genai.FinishReasonStop), resp.FinishReason)
	assert.Equal(t, 10, resp.Usage["total_tokens"])

	assert.Equal(t, DefaultGeminiModel, fake.model)
	assert.Equal(t, "what changed?", fake.prompt)
	require.NotNil(t, fake.config)
	assert.Equal(t, int32(512), fake.config.MaxOutputTokens)
	require.NotNil(t, fake.config.Temperature)
	assert.InDelta(t, 0.1, *fake.config.Temperature, 1e-6)
}

func TestGeminiGenerateModelOverride(t *testing.T) {
	fake := &fakeGenerator{resp: textResponse("ok")}
	client := &GeminiClient{Model: DefaultGeminiModel, models: fake}
	_, err := client.Generate(context.Background(), "p", &framework.LLMOptions{Model: "gemini-2.0-flash"})
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", fake.model)
}

func TestGeminiGenerateErrors(t *testing.T) {
	client := &GeminiClient{models: &fakeGenerator{err: errors.New("429 quota")}}
	_, err := client.Generate(context.Background(), "p", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429 quota")

	client = &GeminiClient{models: &fakeGenerator{resp: &genai.GenerateContentResponse{}}}
	_, err = client.Generate(context.Background(), "p", nil)
	assert.Error(t, err)
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), "", "")
	assert.Error(t, err)
}
