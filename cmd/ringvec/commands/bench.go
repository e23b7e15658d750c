package commands

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/ringvec"
	"github.com/hupe1980/ringvec/ingest"
	"github.com/hupe1980/ringvec/model"
	"github.com/hupe1980/ringvec/testutil"
)

var (
	benchRecords int
	benchDim     int
	benchQueries int
	benchK       int
	benchBatch   int
	benchLines   int
	benchSeed    int64
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure insert and search throughput on synthetic vectors",
	Long: `Fills a store sized by the config with random unit vectors, once with
single inserts and once with batch inserts, then runs top-k queries and
reports average, min, max and p99 search latency. Finally it ingests
synthetic log lines through the configured embedder.`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchRecords, "records", 16384, "vectors to insert per phase")
	benchCmd.Flags().IntVar(&benchDim, "dim", 384, "vector dimension")
	benchCmd.Flags().IntVar(&benchQueries, "queries", 1000, "search queries")
	benchCmd.Flags().IntVar(&benchK, "k", 5, "neighbors per query")
	benchCmd.Flags().IntVar(&benchBatch, "batch", 1000, "records per batch insert")
	benchCmd.Flags().IntVar(&benchLines, "lines", 2000, "synthetic log lines for the text phase (0 skips it)")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 42, "random seed")
	rootCmd.AddCommand(benchCmd)
}

// LatencyStats summarizes a set of latencies.
type LatencyStats struct {
	Count int
	Avg   time.Duration
	Min   time.Duration
	Max   time.Duration
	P99   time.Duration
}

func computeLatencyStats(samples []time.Duration) LatencyStats {
	if len(samples) == 0 {
		return LatencyStats{}
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	idx := (len(sorted)*99+99)/100 - 1
	return LatencyStats{
		Count: len(sorted),
		Avg:   total / time.Duration(len(sorted)),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		P99:   sorted[min(max(idx, 0), len(sorted)-1)],
	}
}

func (s LatencyStats) String() string {
	return fmt.Sprintf("n=%d avg=%s min=%s max=%s p99=%s", s.Count, s.Avg, s.Min, s.Max, s.P99)
}

func runBench(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	rng := testutil.NewRNG(benchSeed)

	fmt.Fprintf(out, "store: shards=%d capacity=%d metric=%s dim=%d\n",
		appConfig.Store.Shards, appConfig.Store.Capacity, appConfig.Metric(), benchDim)

	vectors := rng.UnitVectors(benchRecords, benchDim)

	single, err := benchSingleInsert(ctx, out, vectors)
	if err != nil {
		return err
	}
	single.Close()

	store, err := benchBatchInsert(ctx, out, vectors)
	if err != nil {
		return err
	}
	defer store.Close()

	queries := rng.UnitVectors(benchQueries, benchDim)
	samples := make([]time.Duration, 0, len(queries))
	for _, q := range queries {
		start := time.Now()
		if _, err := store.Search(ctx, q, benchK); err != nil {
			return err
		}
		samples = append(samples, time.Since(start))
	}
	fmt.Fprintf(out, "search k=%d: %s\n", benchK, computeLatencyStats(samples))

	if benchLines > 0 {
		return benchText(ctx, out)
	}
	return nil
}

func benchSingleInsert(ctx context.Context, out io.Writer, vectors [][]float32) (*ringvec.Store, error) {
	store, err := newBenchStore()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	for i, v := range vectors {
		if err := store.Insert(ctx, fmt.Sprintf("vec-%d", i), v, ""); err != nil {
			store.Close()
			return nil, err
		}
	}
	elapsed := time.Since(start)

	fmt.Fprintf(out, "single insert: %d records in %s (%.0f/s)\n",
		len(vectors), elapsed, float64(len(vectors))/elapsed.Seconds())
	return store, nil
}

func benchBatchInsert(ctx context.Context, out io.Writer, vectors [][]float32) (*ringvec.Store, error) {
	store, err := newBenchStore()
	if err != nil {
		return nil, err
	}

	batchSize := max(benchBatch, 1)
	start := time.Now()
	for i := 0; i < len(vectors); i += batchSize {
		end := min(i+batchSize, len(vectors))
		recs := make([]*model.Record, 0, end-i)
		for j := i; j < end; j++ {
			recs = append(recs, &model.Record{ID: fmt.Sprintf("vec-%d", j), Vector: vectors[j]})
		}
		if err := store.InsertBatch(ctx, recs); err != nil {
			store.Close()
			return nil, err
		}
	}
	elapsed := time.Since(start)

	fmt.Fprintf(out, "batch insert (batch=%d): %d records in %s (%.0f/s), live=%d\n",
		batchSize, len(vectors), elapsed, float64(len(vectors))/elapsed.Seconds(), store.Len())
	return store, nil
}

func benchText(ctx context.Context, out io.Writer) error {
	store, err := ringvec.New(appConfig.Store.Shards, appConfig.Store.Capacity, ringvec.WithMetric(appConfig.Metric()))
	if err != nil {
		return err
	}
	defer store.Close()

	embedder, err := newEmbedder(appConfig.Embedder)
	if err != nil {
		return err
	}

	pipeline, err := ingest.New(store, embedder, func(o *ingest.Options) {
		o.BatchSize = appConfig.Ingest.BatchSize
		o.Workers = appConfig.Ingest.Workers
	})
	if err != nil {
		return err
	}

	lines := ingest.NewLogGenerator(uint64(benchSeed)).Lines(benchLines)
	start := time.Now()
	if _, err := pipeline.IngestBatch(ctx, lines); err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Fprintf(out, "text ingest (%s): %d lines in %s (%.0f/s)\n",
		appConfig.Embedder.Type, len(lines), elapsed, float64(len(lines))/elapsed.Seconds())
	return nil
}

func newBenchStore() (*ringvec.Store, error) {
	return ringvec.New(appConfig.Store.Shards, appConfig.Store.Capacity,
		ringvec.WithDimension(benchDim),
		ringvec.WithMetric(appConfig.Metric()),
		ringvec.WithWorkers(appConfig.Store.Workers),
	)
}
