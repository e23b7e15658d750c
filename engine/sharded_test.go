package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ringvec/distance"
	"github.com/hupe1980/ringvec/model"
	"github.com/hupe1980/ringvec/testutil"
)

func newTestSharded(t testing.TB, numShards, capacity int, optFns ...func(o *Options)) *Sharded {
	t.Helper()
	sc, err := NewSharded(numShards, capacity, optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Close() })
	return sc
}

func TestNewShardedValidation(t *testing.T) {
	tests := []struct {
		name      string
		numShards int
		capacity  int
	}{
		{"ZeroShards", 0, 8},
		{"NegativeShards", -1, 8},
		{"TooManyShards", MaxShards + 1, 8},
		{"ZeroCapacity", 4, 0},
		{"NegativeCapacity", 4, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSharded(tt.numShards, tt.capacity)
			assert.Error(t, err)
		})
	}

	_, err := NewSharded(4, 8, func(o *Options) { o.Metric = distance.Metric(99) })
	assert.Error(t, err)
}

func TestRouteIsDeterministic(t *testing.T) {
	sc := newTestSharded(t, 16, 4)
	other := newTestSharded(t, 16, 4)

	counts := make([]int, sc.NumShards())
	for i := 0; i < 10000; i++ {
		id := fmt.Sprintf("doc-%d", i)
		idx := sc.Route(id)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 16)
		assert.Equal(t, idx, sc.Route(id))
		assert.Equal(t, idx, other.Route(id), "routing must not depend on store state")
		counts[idx]++
	}

	// xxhash spreads ids evenly; every shard gets a fair share.
	for i, c := range counts {
		assert.Greater(t, c, 10000/16/2, "shard %d underused", i)
	}
}

func TestSearchRanking(t *testing.T) {
	sc := newTestSharded(t, 16, 1024)

	sc.Insert(model.NewRecord("1", []float32{1, 0, 0}, "vec 1"))
	sc.Insert(model.NewRecord("2", []float32{0, 1, 0}, "vec 2"))
	sc.Insert(model.NewRecord("3", []float32{0.5, 0.5, 0}, "vec 3"))

	hits, err := sc.Search(context.Background(), []float32{1, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, []string{"1", "3"}, testutil.HitIDs(hits))
	assert.Equal(t, "vec 1", hits[0].Metadata())
	assert.Greater(t, hits[0].Score, hits[1].Score)

	all, err := sc.Search(context.Background(), []float32{1, 0.1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3", "2"}, testutil.HitIDs(all))
}

func TestSearchKBounds(t *testing.T) {
	ctx := context.Background()
	sc := newTestSharded(t, 4, 8)

	hits, err := sc.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits, "empty store")
	assert.NotNil(t, hits)

	sc.Insert(model.NewRecord("a", []float32{1, 0}, ""))
	sc.Insert(model.NewRecord("b", []float32{0, 1}, ""))
	sc.Insert(model.NewRecord("c", []float32{1, 1}, ""))

	hits, err = sc.Search(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = sc.Search(ctx, []float32{1, 0}, -1)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = sc.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3, "fewer live records than k")
}

func TestSearchTieBreakByID(t *testing.T) {
	sc := newTestSharded(t, 8, 8)
	for _, id := range []string{"e", "b", "d", "a", "c"} {
		sc.Insert(model.NewRecord(id, []float32{1, 0}, ""))
	}

	hits, err := sc.Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, testutil.HitIDs(hits))
}

func TestCapacityInvariant(t *testing.T) {
	const (
		numShards = 4
		capacity  = 8
		n         = 1000
	)
	sc := newTestSharded(t, numShards, capacity)

	routed := make([][]string, numShards)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("rec-%d", i)
		sc.Insert(model.NewRecord(id, []float32{1, float32(i)}, id))
		routed[sc.Route(id)] = append(routed[sc.Route(id)], id)
	}

	assert.Equal(t, numShards*capacity, sc.Len())
	assert.Equal(t, numShards*capacity, sc.Capacity())

	for shard := 0; shard < numShards; shard++ {
		require.GreaterOrEqual(t, len(routed[shard]), capacity)
		want := routed[shard][len(routed[shard])-capacity:]

		got := make([]string, 0, capacity)
		for _, r := range sc.ShardRecords(shard) {
			got = append(got, r.ID)
		}
		assert.Equal(t, want, got, "shard %d must retain its most recent records in order", shard)
	}

	st := sc.Stats()
	assert.Equal(t, numShards*capacity, st.Len)
	assert.Equal(t, uint64(n), st.Inserts)
	assert.Len(t, st.Shards, numShards)
}

func TestSearchMatchesExact(t *testing.T) {
	const dim = 32
	rng := testutil.NewRNG(4711)
	ctx := context.Background()

	for _, metric := range []distance.Metric{distance.MetricCosine, distance.MetricDot} {
		t.Run(metric.String(), func(t *testing.T) {
			sc := newTestSharded(t, 8, 64, func(o *Options) { o.Metric = metric })
			score, err := distance.Provider(metric)
			require.NoError(t, err)

			vectors := rng.UnitVectors(300, dim)
			for i, v := range vectors {
				sc.Insert(model.NewRecord(fmt.Sprintf("v%03d", i), v, ""))
			}

			var live []*model.Record
			for s := 0; s < sc.NumShards(); s++ {
				live = append(live, sc.ShardRecords(s)...)
			}

			for q := 0; q < 10; q++ {
				query := rng.UnitVector(dim)
				want := testutil.ExactTopK(query, live, 10, score)

				got, err := sc.Search(ctx, query, 10)
				require.NoError(t, err)
				assert.Equal(t, testutil.HitIDs(want), testutil.HitIDs(got))
			}
		})
	}
}

func TestConcurrentInsertAndSearch(t *testing.T) {
	const (
		numShards = 16
		capacity  = 64
		threads   = 10
		perThread = 1000
		dim       = 8
	)
	sc := newTestSharded(t, numShards, capacity)
	ctx := context.Background()

	valid := func(r *model.Record) bool {
		var th, i int
		if _, err := fmt.Sscanf(r.ID, "thread_%d_doc_%d", &th, &i); err != nil {
			return false
		}
		if len(r.Vector) != dim || r.Metadata != fmt.Sprintf("metadata from thread %d", th) {
			return false
		}
		for _, x := range r.Vector {
			if x != float32(i) {
				return false
			}
		}
		return true
	}

	var searchErr error
	var searchMu sync.Mutex
	stop := make(chan struct{})
	var readers sync.WaitGroup
	for r := 0; r < 3; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			query := make([]float32, dim)
			for i := range query {
				query[i] = 1
			}
			for {
				select {
				case <-stop:
					return
				default:
				}
				hits, err := sc.Search(ctx, query, 5)
				searchMu.Lock()
				if err != nil && searchErr == nil {
					searchErr = err
				}
				for _, h := range hits {
					if !valid(h.Record) && searchErr == nil {
						searchErr = fmt.Errorf("corrupt hit %v", h.Record)
					}
				}
				searchMu.Unlock()
			}
		}()
	}

	var writers sync.WaitGroup
	for th := 0; th < threads; th++ {
		writers.Add(1)
		go func(th int) {
			defer writers.Done()
			for i := 0; i < perThread; i++ {
				vec := make([]float32, dim)
				for j := range vec {
					vec[j] = float32(i)
				}
				sc.Insert(&model.Record{
					ID:       fmt.Sprintf("thread_%d_doc_%d", th, i),
					Vector:   vec,
					Metadata: fmt.Sprintf("metadata from thread %d", th),
				})
			}
		}(th)
	}
	writers.Wait()
	close(stop)
	readers.Wait()

	require.NoError(t, searchErr)

	n := sc.Len()
	assert.LessOrEqual(t, n, threads*perThread)
	assert.LessOrEqual(t, n, numShards*capacity)
	assert.GreaterOrEqual(t, n, numShards)

	for s := 0; s < numShards; s++ {
		for _, r := range sc.ShardRecords(s) {
			assert.True(t, valid(r), "corrupt record %v", r)
			assert.Equal(t, s, sc.Route(r.ID), "record stored in foreign shard")
		}
	}
}

func TestSearchAfterClose(t *testing.T) {
	sc, err := NewSharded(2, 4)
	require.NoError(t, err)
	sc.Insert(model.NewRecord("a", []float32{1}, ""))

	require.NoError(t, sc.Close())
	require.NoError(t, sc.Close())

	_, err = sc.Search(context.Background(), []float32{1}, 1)
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestSearchCancelledContext(t *testing.T) {
	sc := newTestSharded(t, 4, 4, func(o *Options) { o.Workers = 1 })
	sc.Insert(model.NewRecord("a", []float32{1}, ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sc.Search(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, context.Canceled)

	// The store stays usable.
	hits, err := sc.Search(context.Background(), []float32{1}, 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestStats(t *testing.T) {
	sc := newTestSharded(t, 2, 3, func(o *Options) {
		o.Workers = 3
		o.Metric = distance.MetricDot
	})
	for i := 0; i < 5; i++ {
		sc.Insert(model.NewRecord(fmt.Sprint(i), []float32{1}, ""))
	}

	_, err := sc.Search(context.Background(), []float32{1}, 1)
	require.NoError(t, err)

	st := sc.Stats()
	assert.Equal(t, 3, st.Workers)
	assert.Equal(t, uint64(2), st.Scans)
	assert.Equal(t, distance.MetricDot, st.Metric)
	assert.Equal(t, 6, st.Capacity)
	assert.Equal(t, uint64(5), st.Inserts)
	assert.Equal(t, 5, st.Len)
	assert.Equal(t, 3, sc.ShardCapacity())
}

func BenchmarkSearch(b *testing.B) {
	const dim = 384
	sc := newTestSharded(b, 16, 1024)
	rng := testutil.NewRNG(1)
	for i, v := range rng.UnitVectors(16*1024, dim) {
		sc.Insert(model.NewRecord(fmt.Sprint(i), v, ""))
	}
	query := rng.UnitVector(dim)
	ctx := context.Background()

	b.ResetTimer()
	start := time.Now()
	for i := 0; i < b.N; i++ {
		if _, err := sc.Search(ctx, query, 5); err != nil {
			b.Fatal(err)
		}
	}
	b.ReportMetric(float64(time.Since(start).Microseconds())/float64(b.N), "µs/search")
}
