package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"

	"github.com/Veraticus/drug-deposit/internal/common"
)

// Defaults applied when Config leaves a field empty.
const (
	DefaultModel              = "gpt-4o-mini"
	DefaultTranscriptionModel = "whisper-1"
	DefaultLanguage           = "pt"
)

// Config holds settings shared by the transcriber and the extractor.
type Config struct {
	APIKey             string
	BaseURL            string // Optional OpenAI-compatible endpoint, e.g. a local Ollama server
	Model              string
	TranscriptionModel string
	Language           string
	Timeout            time.Duration
	RetryDelay         time.Duration
	MaxRetries         int
	RateLimit          int // Requests per minute
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.TranscriptionModel == "" {
		c.TranscriptionModel = DefaultTranscriptionModel
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	return c
}

func (c Config) retryOptions() common.RetryOptions {
	return common.RetryOptions{
		MaxAttempts:  c.MaxRetries,
		InitialDelay: c.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

// newOpenAIClient builds the SDK client. Retries are handled by common.WithRetry.
func newOpenAIClient(cfg Config) (*openai.Client, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", common.ErrMissingConfig)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// Local compatible servers ignore the key but the SDK requires one.
		apiKey = "local"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openai.NewClient(opts...)
	return &client, nil
}

// textGenerator produces a model response for a system and user prompt.
type textGenerator interface {
	Generate(ctx context.Context, instructions, prompt string, schema map[string]any) (string, error)
}

// responsesGenerator implements textGenerator with the Responses API.
type responsesGenerator struct {
	client *openai.Client
	model  string
}

func (g *responsesGenerator) Generate(ctx context.Context, instructions, prompt string, schema map[string]any) (string, error) {
	params := responses.ResponseNewParams{
		Model:        shared.ResponsesModel(g.model),
		Instructions: param.NewOpt(instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
	}
	if schema != nil {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "drug_movements",
					Strict:      param.NewOpt(true),
					Schema:      schema,
					Description: param.NewOpt("Drug deposit movements dictated by the operator"),
				},
			},
		}
	}

	resp, err := g.client.Responses.New(ctx, params)
	if err != nil {
		return "", classifyAPIError(err)
	}

	content := resp.OutputText()
	if content == "" {
		return "", fmt.Errorf("empty response content")
	}
	return content, nil
}

// classifyAPIError marks client errors as permanent and rate limits as retryable.
func classifyAPIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("openai request failed: %w", errors.Join(common.ErrRateLimit, err))
		case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
			return common.Permanent(fmt.Errorf("openai request rejected: %w", err))
		}
	}
	return fmt.Errorf("openai request failed: %w", err)
}
