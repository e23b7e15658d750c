package embed

import (
	"net/http"

	"golang.org/x/time/rate"
)

// config holds shared configuration for embedder implementations.
type config struct {
	model       string
	dim         int
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	batchSize   int
	concurrency int
}

// Option configures an embedder.
type Option func(*config)

// WithModel sets the embedding model name.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithDimension sets the desired output vector dimensionality.
func WithDimension(dim int) Option {
	return func(c *config) { c.dim = dim }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithRateLimit caps outgoing API requests at rps per second with the given
// burst. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *config) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithBatchSize sets the maximum number of texts per API request.
func WithBatchSize(n int) Option {
	return func(c *config) { c.batchSize = n }
}

// WithConcurrency sets how many API requests EmbedBatch keeps in flight.
func WithConcurrency(n int) Option {
	return func(c *config) { c.concurrency = n }
}
