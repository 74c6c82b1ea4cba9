package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
)

// maxBatchSize is the largest input array the embeddings API accepts per
// request; configured batch sizes are capped at this.
const maxBatchSize = 100

// Config holds OpenAI embedding provider settings.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	BatchSize int
	Timeout   time.Duration
}

// DefaultConfig returns sensible embedding defaults.
func DefaultConfig() Config {
	return Config{
		Model:     "text-embedding-3-small",
		Dimension: 384,
		BatchSize: maxBatchSize,
		Timeout:   60 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("embedding API key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("embedding model is required")
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}
	return nil
}

// OpenAIProvider generates embeddings through the OpenAI embeddings API,
// splitting large inputs into bounded batches.
type OpenAIProvider struct {
	client    openai.Client
	model     string
	dimension int
	batchSize int
	logger    *logrus.Logger
}

// NewOpenAIProvider creates a provider from the given configuration.
func NewOpenAIProvider(config Config, logger *logrus.Logger) (*OpenAIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	if config.BatchSize <= 0 || config.BatchSize > maxBatchSize {
		config.BatchSize = maxBatchSize
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.Timeout))
	}

	return &OpenAIProvider{
		client:    openai.NewClient(opts...),
		model:     config.Model,
		dimension: config.Dimension,
		batchSize: config.BatchSize,
		logger:    logger,
	}, nil
}

// Embed returns one vector per input text, batching requests as needed.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := p.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
	}

	p.logger.WithField("texts", len(texts)).Debug("Generated embeddings")
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := p.embedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding response contained no vectors")
	}
	return vectors[0], nil
}

// Dimension reports the configured vector width.
func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

func (p *OpenAIProvider) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(p.model),
	}
	if len(texts) == 1 {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(texts[0]),
		}
	} else {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		}
	}
	if p.dimension > 0 {
		params.Dimensions = openai.Int(int64(p.dimension))
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vector := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vector[j] = float32(v)
		}
		vectors[i] = vector
	}
	return vectors, nil
}
