package embed_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ringvec/distance"
	"github.com/hupe1980/ringvec/embed"
)

// fakeEmbeddingResponse builds a minimal OpenAI-compatible embedding response.
func fakeEmbeddingResponse(dim int, texts []string) []byte {
	type embItem struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	}
	type usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	}
	type resp struct {
		Object string    `json:"object"`
		Model  string    `json:"model"`
		Data   []embItem `json:"data"`
		Usage  usage     `json:"usage"`
	}

	data := make([]embItem, len(texts))
	for i := range texts {
		vec := make([]float64, dim)
		for j := range vec {
			vec[j] = float64(i+1) * 0.01 * float64(j+1)
		}
		data[i] = embItem{Object: "embedding", Index: i, Embedding: vec}
	}

	b, _ := json.Marshal(resp{
		Object: "list",
		Model:  "test-model",
		Data:   data,
		Usage:  usage{PromptTokens: 10, TotalTokens: 10},
	})
	return b
}

// newFakeServer creates a test HTTP server that returns fake embeddings and
// counts requests.
func newFakeServer(t *testing.T, dim int, requests *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if requests != nil {
			requests.Add(1)
		}

		var req struct {
			Input any `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var texts []string
		switch v := req.Input.(type) {
		case string:
			texts = []string{v}
		case []any:
			for _, item := range v {
				texts = append(texts, fmt.Sprint(item))
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fakeEmbeddingResponse(dim, texts))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIEmbed(t *testing.T) {
	const dim = 8
	srv := newFakeServer(t, dim, nil)

	e := embed.NewOpenAI("test-key",
		embed.WithBaseURL(srv.URL),
		embed.WithDimension(dim),
	)
	assert.Equal(t, dim, e.Dimension())
	assert.Equal(t, embed.ModelOpenAI3Small, e.Model())

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, dim)
	assert.True(t, distance.IsNormalized(vec, distance.NormTolerance))
}

func TestOpenAIEmbedBatchSplits(t *testing.T) {
	const dim = 4
	var requests atomic.Int64
	srv := newFakeServer(t, dim, &requests)

	e := embed.NewOpenAI("test-key",
		embed.WithBaseURL(srv.URL),
		embed.WithDimension(dim),
		embed.WithModel("custom-model"),
		embed.WithBatchSize(10),
		embed.WithConcurrency(3),
		embed.WithRateLimit(1000, 10),
	)
	assert.Equal(t, "custom-model", e.Model())

	texts := make([]string, 25)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
	}

	vecs, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 25)
	assert.Equal(t, int64(3), requests.Load())

	for i, v := range vecs {
		require.NotNil(t, v, "vecs[%d]", i)
		assert.Len(t, v, dim)
		assert.True(t, distance.IsNormalized(v, distance.NormTolerance))
	}
}

func TestOpenAIDimensionMismatch(t *testing.T) {
	srv := newFakeServer(t, 4, nil)

	e := embed.NewOpenAI("test-key",
		embed.WithBaseURL(srv.URL),
		embed.WithDimension(8),
	)

	_, err := e.Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestOpenAIServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	e := embed.NewOpenAI("test-key",
		embed.WithBaseURL(srv.URL),
		embed.WithDimension(4),
	)

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestEmptyInput(t *testing.T) {
	ctx := context.Background()
	embedders := map[string]embed.Embedder{
		"hash":   embed.NewHash(16),
		"openai": embed.NewOpenAI("test-key", embed.WithBaseURL("http://127.0.0.1:0")),
	}

	for name, e := range embedders {
		t.Run(name, func(t *testing.T) {
			_, err := e.Embed(ctx, "")
			assert.ErrorIs(t, err, embed.ErrEmptyInput)

			_, err = e.EmbedBatch(ctx, nil)
			assert.ErrorIs(t, err, embed.ErrEmptyInput)

			_, err = e.EmbedBatch(ctx, []string{})
			assert.ErrorIs(t, err, embed.ErrEmptyInput)
		})
	}
}
