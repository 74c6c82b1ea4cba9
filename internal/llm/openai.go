package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/sirupsen/logrus"
)

// Config holds chat completion client settings. BaseURL may point at any
// OpenAI-compatible gateway.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// DefaultConfig returns sensible generation defaults.
func DefaultConfig() Config {
	return Config{
		Model:       "openai/gpt-oss-120b",
		MaxTokens:   1024,
		Temperature: 0.7,
		Timeout:     120 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("LLM API key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("LLM model is required")
	}
	return nil
}

// OpenAIClient generates completions through an OpenAI-compatible chat API.
type OpenAIClient struct {
	client openai.Client
	config Config
	logger *logrus.Logger
}

// NewOpenAIClient creates a client from the given configuration.
func NewOpenAIClient(config Config, logger *logrus.Logger) (*OpenAIClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.Timeout))
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		config: config,
		logger: logger,
	}, nil
}

// Complete sends the conversation and returns the assistant reply.
func (c *OpenAIClient) Complete(ctx context.Context, system string, messages []Message, opts Options) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.config.Model),
	}

	if system != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(system))
	}
	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(msg.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(msg.Content))
		}
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.config.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = c.config.Temperature
	}
	params.Temperature = openai.Float(temperature)

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	answer := strings.TrimSpace(completion.Choices[0].Message.Content)
	c.logger.WithFields(logrus.Fields{
		"model":      c.config.Model,
		"characters": len(answer),
	}).Debug("Chat completion finished")
	return answer, nil
}
