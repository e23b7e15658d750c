package embed

import (
	"context"
	"regexp"
	"runtime"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
)

// DefaultHashDimension is the dimension used by NewHash for dim <= 0.
const DefaultHashDimension = 384

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

// Hash is a deterministic feature-hashing embedder.
//
// Text is lower-cased and split into word tokens; stopwords are dropped.
// Every unigram and every adjacent bigram is hashed with xxhash into one of
// Dimension() buckets, and the top hash bit picks the sign of its
// contribution. The result is L2-normalized. Text without any token embeds to
// the zero vector.
//
// Hash needs no model and no network, which makes it suitable for tests,
// benchmarks and offline log correlation. Similar wording gives similar
// vectors; meaning does not.
type Hash struct {
	dim       int
	stopwords map[string]struct{}
}

var _ Embedder = (*Hash)(nil)

// NewHash creates a Hash embedder producing vectors of dimension dim.
func NewHash(dim int) *Hash {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &Hash{
		dim:       dim,
		stopwords: defaultStopwords(),
	}
}

// Dimension returns the vector dimensionality.
func (h *Hash) Dimension() int {
	return h.dim
}

// Embed returns the embedding for a single text.
func (h *Hash) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	return h.embed(text), nil
}

// EmbedBatch embeds texts in parallel and returns the vectors in input order.
// Any empty text fails the whole batch with ErrEmptyInput.
func (h *Hash) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyInput
		}
	}

	out := make([][]float32, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, text := range texts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = h.embed(text)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *Hash) embed(text string) []float32 {
	vec := make([]float32, h.dim)

	tokens := h.tokenize(text)
	for i, tok := range tokens {
		h.add(vec, tok)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok)
		}
	}

	return normalize(vec)
}

func (h *Hash) add(vec []float32, feature string) {
	sum := xxhash.Sum64String(feature)
	idx := (sum & (1<<63 - 1)) % uint64(h.dim)
	if sum>>63 == 1 {
		vec[idx]--
	} else {
		vec[idx]++
	}
}

func (h *Hash) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := h.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
