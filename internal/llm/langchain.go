package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider names accepted in configuration.
const (
	ProviderNone      = "none"
	ProviderHTTP      = "http"
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// LangChainModel wraps a langchaingo model as a Generator.
type LangChainModel struct {
	llm       llms.Model
	modelName string
}

// NewLangChainModel creates a hosted-provider model.
func NewLangChainModel(provider, model, baseURL, apiKey string) (*LangChainModel, error) {
	var m llms.Model
	var err error

	switch provider {
	case ProviderOllama:
		m, err = ollama.New(
			ollama.WithModel(model),
			ollama.WithServerURL(baseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		m, err = openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		m, err = anthropic.New(
			anthropic.WithToken(apiKey),
			anthropic.WithModel(model),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}

	return &LangChainModel{llm: m, modelName: model}, nil
}

// Generate implements Generator.
func (m *LangChainModel) Generate(ctx context.Context, prompt string) (string, error) {
	response, err := llms.GenerateFromSinglePrompt(ctx, m.llm, prompt, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return response, nil
}

// Model returns the LLM model name.
func (m *LangChainModel) Model() string {
	return m.modelName
}

// Settings selects and configures an adjudication backend.
type Settings struct {
	Provider string
	Endpoint string
	BaseURL  string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// NewAdjudicator builds the adjudicator named by s.Provider. It returns
// nil, nil when adjudication is disabled.
//
// The "ollama" provider uses the built-in HTTP client; hosted providers go
// through langchaingo.
func NewAdjudicator(s Settings) (Adjudicator, error) {
	switch s.Provider {
	case "", ProviderNone:
		return nil, nil
	case ProviderHTTP:
		if s.Endpoint == "" {
			return nil, fmt.Errorf("http adjudicator needs an endpoint")
		}
		return NewHTTPAdjudicator(s.Endpoint, s.Timeout), nil
	case ProviderOllama:
		return NewPromptAdjudicator(NewService(s.BaseURL, s.Model, s.Timeout)), nil
	case ProviderOpenAI, ProviderAnthropic:
		model, err := NewLangChainModel(s.Provider, s.Model, s.BaseURL, s.APIKey)
		if err != nil {
			return nil, err
		}
		return NewPromptAdjudicator(model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", s.Provider)
	}
}
