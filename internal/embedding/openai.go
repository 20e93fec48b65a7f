// Package embedding provides text embedding using the OpenAI API.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/canokcuer/wellspring/internal/models"
)

// Defaults for the OpenAI embedder.
const (
	// DefaultEmbeddingModel is the embedding model used when none is configured.
	DefaultEmbeddingModel = openai.EmbeddingModelTextEmbedding3Small
	// DefaultEmbeddingDimension is the vector dimension requested from the API.
	DefaultEmbeddingDimension = 512
	// DefaultEmbeddingTimeout bounds a single embedding API call.
	DefaultEmbeddingTimeout = 15 * time.Second
	// retryBackoff is the pause before the single retry attempt.
	retryBackoff = 500 * time.Millisecond
)

// queryInstruction is prepended to retrieval queries so that query vectors
// are conditioned on search intent rather than treated as corpus text.
const queryInstruction = "Represent this wellness marketing question for retrieving supporting passages: "

// embeddingService defines the minimal interface for embedding creation.
type embeddingService interface {
	New(ctx context.Context, params openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// Opts holds configuration options for the OpenAI embedder.
type Opts struct {
	APIKey    string
	Model     openai.EmbeddingModel
	Dimension int
	Timeout   time.Duration
}

// Option defines a configuration option for the OpenAI embedder.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the embedding model.
func WithModel(model openai.EmbeddingModel) Option {
	return func(o *Opts) { o.Model = model }
}

// WithDimension sets the requested vector dimension.
func WithDimension(dim int) Option {
	return func(o *Opts) { o.Dimension = dim }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// OpenAIEmbedder embeds text via the OpenAI embeddings API. A failed call is
// retried once; a second failure surfaces as models.ErrRetrievalUnavailable.
type OpenAIEmbedder struct {
	svc     embeddingService
	model   openai.EmbeddingModel
	dim     int
	timeout time.Duration
}

// NewOpenAIEmbedder creates an embedder from the given options. The API key
// is required.
func NewOpenAIEmbedder(opts ...Option) (*OpenAIEmbedder, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		slog.Error("OpenAIEmbedder API key not set")
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultEmbeddingDimension
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultEmbeddingTimeout
	}

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("OpenAIEmbedder created", "model", cfg.Model, "dimension", cfg.Dimension)
	return &OpenAIEmbedder{svc: &cli.Embeddings, model: cfg.Model, dim: cfg.Dimension, timeout: cfg.Timeout}, nil
}

// EncodeDocument embeds corpus text for storage.
func (e *OpenAIEmbedder) EncodeDocument(ctx context.Context, text string) ([]float32, error) {
	return e.encode(ctx, text)
}

// EncodeQuery embeds a retrieval query with the search instruction prefix.
func (e *OpenAIEmbedder) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	return e.encode(ctx, queryInstruction+text)
}

// Dimension returns the configured vector dimension.
func (e *OpenAIEmbedder) Dimension() int {
	return e.dim
}

func (e *OpenAIEmbedder) encode(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", models.ErrInvalidArgument)
	}

	vec, err := e.callAPI(ctx, text)
	if err == nil {
		return vec, nil
	}
	slog.Warn("OpenAIEmbedder call failed, retrying once", "error", err)

	select {
	case <-time.After(retryBackoff):
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", models.ErrRetrievalUnavailable, ctx.Err())
	}

	vec, retryErr := e.callAPI(ctx, text)
	if retryErr != nil {
		slog.Error("OpenAIEmbedder retry failed", "error", retryErr)
		return nil, fmt.Errorf("%w: %v", models.ErrRetrievalUnavailable, retryErr)
	}
	return vec, nil
}

func (e *OpenAIEmbedder) callAPI(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.svc.New(callCtx, openai.EmbeddingNewParams{
		Model:      e.model,
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Dimensions: openai.Int(int64(e.dim)),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}
