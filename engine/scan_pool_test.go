package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ringvec/distance"
	"github.com/hupe1980/ringvec/internal/ring"
	"github.com/hupe1980/ringvec/model"
)

func newTestScanPool(t testing.TB, size int) *ScanPool {
	t.Helper()
	p := NewScanPool(size, distance.Cosine)
	t.Cleanup(p.Close)
	return p
}

// fillShards spreads n records over numShards shards; record i has vector
// (1, i/n) so lower ids score higher against (1, 0).
func fillShards(numShards, capacity, n int) []*ring.Shard {
	shards := make([]*ring.Shard, numShards)
	for i := range shards {
		shards[i] = ring.New(capacity)
	}
	for i := 0; i < n; i++ {
		rec := model.NewRecord(fmt.Sprintf("%03d", i), []float32{1, float32(i) / float32(n)}, "")
		shards[i%numShards].Insert(rec)
	}
	return shards
}

func hitIDs(hits []model.Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.Record.ID
	}
	return ids
}

func TestScanPoolTopKMergesShards(t *testing.T) {
	p := newTestScanPool(t, 2)
	shards := fillShards(4, 16, 40)

	hits, err := p.TopK(context.Background(), shards, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"000", "001", "002", "003", "004"}, hitIDs(hits))

	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestScanPoolTopKEmpty(t *testing.T) {
	p := newTestScanPool(t, 1)

	hits, err := p.TopK(context.Background(), fillShards(2, 4, 4), []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = p.TopK(context.Background(), nil, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = p.TopK(context.Background(), fillShards(3, 4, 0), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestScanPoolCountsScans(t *testing.T) {
	p := newTestScanPool(t, 3)
	shards := fillShards(5, 4, 10)

	for i := 0; i < 4; i++ {
		_, err := p.TopK(context.Background(), shards, []float32{1, 0}, 2)
		require.NoError(t, err)
	}

	assert.Equal(t, uint64(20), p.Scans())
}

func TestScanPoolConcurrentQueries(t *testing.T) {
	p := newTestScanPool(t, 1)
	shards := fillShards(8, 32, 200)

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := p.TopK(context.Background(), shards, []float32{1, 0}, 3)
			if assert.NoError(t, err) {
				assert.Equal(t, []string{"000", "001", "002"}, hitIDs(hits))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(16*8), p.Scans())
}

func TestScanPoolCancelledContext(t *testing.T) {
	p := newTestScanPool(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.TopK(ctx, fillShards(2, 4, 4), []float32{1, 0}, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(0), p.Scans())
}

func TestScanPoolClose(t *testing.T) {
	p := NewScanPool(2, distance.Cosine)
	shards := fillShards(2, 4, 4)

	_, err := p.TopK(context.Background(), shards, []float32{1, 0}, 1)
	require.NoError(t, err)

	p.Close()
	p.Close() // idempotent

	_, err = p.TopK(context.Background(), shards, []float32{1, 0}, 1)
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestScanPoolDefaultSize(t *testing.T) {
	p := newTestScanPool(t, 0)
	assert.Positive(t, p.Size())
}
