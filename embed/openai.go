package embed

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// OpenAI embedding models.
const (
	// ModelOpenAI3Small is the small embedding model (1536 dims, customizable).
	ModelOpenAI3Small = "text-embedding-3-small"

	// ModelOpenAI3Large is the large embedding model (3072 dims, customizable).
	ModelOpenAI3Large = "text-embedding-3-large"
)

const (
	openAIMaxBatch           = 2048 // OpenAI supports up to 2048 inputs per request
	openAIDefaultDim         = 1536
	openAIDefaultModel       = ModelOpenAI3Small
	openAIDefaultConcurrency = 4
)

// OpenAI implements [Embedder] using the OpenAI embeddings API.
//
// This can also be used with any OpenAI-compatible provider by setting
// WithBaseURL. Returned vectors are L2-normalized.
type OpenAI struct {
	client    *openai.Client
	model     string
	dim       int
	batchSize int
	sem       *semaphore.Weighted
	limiter   *rate.Limiter
}

var _ Embedder = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI embedder.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	cfg := config{
		model:       openAIDefaultModel,
		dim:         openAIDefaultDim,
		httpClient:  http.DefaultClient,
		batchSize:   openAIMaxBatch,
		concurrency: openAIDefaultConcurrency,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.batchSize <= 0 || cfg.batchSize > openAIMaxBatch {
		cfg.batchSize = openAIMaxBatch
	}
	if cfg.concurrency <= 0 {
		cfg.concurrency = 1
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(cfg.httpClient),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	client := openai.NewClient(clientOpts...)

	return &OpenAI{
		client:    &client,
		model:     cfg.model,
		dim:       cfg.dim,
		batchSize: cfg.batchSize,
		sem:       semaphore.NewWeighted(int64(cfg.concurrency)),
		limiter:   cfg.limiter,
	}
}

// Embed returns the embedding for a single text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns embeddings for multiple texts.
// Batches larger than the batch size are split into sub-batches that run
// concurrently, bounded by WithConcurrency.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	result := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < len(texts); i += o.batchSize {
		end := min(i+o.batchSize, len(texts))

		if err := o.sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer o.sem.Release(1)

			vecs, err := o.callAPI(gctx, texts[i:end])
			if err != nil {
				return fmt.Errorf("embed batch [%d:%d]: %w", i, end, err)
			}
			copy(result[i:], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Dimension returns the configured vector dimensionality.
func (o *OpenAI) Dimension() int {
	return o.dim
}

// Model returns the OpenAI model identifier (e.g., "text-embedding-3-small").
func (o *OpenAI) Model() string {
	return o.model
}

func (o *OpenAI) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	params := openai.EmbeddingNewParams{
		Model:          o.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Dimensions:     openai.Int(int64(o.dim)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := item.Index
		if idx < 0 || idx >= int64(len(texts)) {
			return nil, fmt.Errorf("unexpected embedding index %d for batch size %d", idx, len(texts))
		}
		vec := float64sToFloat32s(item.Embedding)
		if len(vec) != o.dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", idx, len(vec), o.dim)
		}
		vecs[idx] = normalize(vec)
	}

	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for index %d", i)
		}
	}
	return vecs, nil
}
