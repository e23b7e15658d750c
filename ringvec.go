package ringvec

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/hupe1980/ringvec/distance"
	"github.com/hupe1980/ringvec/engine"
	"github.com/hupe1980/ringvec/model"
)

// Store is a sharded, fixed-footprint vector store.
// All methods are safe for concurrent use.
type Store struct {
	sharded *engine.Sharded

	// dimension is 0 until locked by WithDimension or the first insert.
	dimension atomic.Int64
	metric    distance.Metric
	closed    atomic.Bool

	logger  *Logger
	metrics MetricsCollector
}

// Stats is a point-in-time summary of the store.
type Stats struct {
	engine.Stats
	Dimension int
}

// New creates a store with shardCount shards holding capacity records each.
func New(shardCount, capacity int, optFns ...Option) (*Store, error) {
	if shardCount <= 0 || shardCount > engine.MaxShards {
		return nil, &ErrInvalidShardCount{Count: shardCount}
	}
	if capacity <= 0 {
		return nil, &ErrInvalidCapacity{Capacity: capacity}
	}

	opts := applyOptions(optFns)
	if opts.dimension < 0 {
		return nil, &ErrInvalidDimension{Dimension: opts.dimension}
	}

	sharded, err := engine.NewSharded(shardCount, capacity, func(o *engine.Options) {
		o.Metric = opts.metric
		o.Workers = opts.workers
	})
	if err != nil {
		return nil, err
	}

	s := &Store{
		sharded: sharded,
		metric:  opts.metric,
		logger:  opts.logger.WithShards(shardCount, capacity),
		metrics: opts.metricsCollector,
	}
	s.dimension.Store(int64(opts.dimension))

	s.logger.Info("store created",
		"metric", opts.metric.String(),
		"dimension", opts.dimension,
		"workers", sharded.Stats().Workers,
	)

	return s, nil
}

// Insert stores a record built from id, vector and metadata. The vector is
// copied. A full shard silently overwrites its oldest record.
//
// Insert fails only when the vector does not match the store dimension or the
// store is closed. InsertRecord and InsertBatch also reject nil records.
func (s *Store) Insert(ctx context.Context, id string, vector []float32, metadata string) error {
	return s.InsertRecord(ctx, model.NewRecord(id, vector, metadata))
}

// InsertRecord stores rec. The store takes ownership of rec; the caller must
// not modify it afterwards.
func (s *Store) InsertRecord(ctx context.Context, rec *model.Record) error {
	start := time.Now()

	err := s.insert(rec)

	var id string
	var dim int
	if rec != nil {
		id, dim = rec.ID, len(rec.Vector)
	}

	s.metrics.RecordInsert(time.Since(start), err)
	s.logger.LogInsert(ctx, id, dim, err)

	return err
}

// InsertBatch stores every valid record of recs. Records that fail are
// skipped; the returned error joins one *RecordError per rejected record.
func (s *Store) InsertBatch(ctx context.Context, recs []*model.Record) error {
	if s.closed.Load() {
		return ErrClosed
	}

	start := time.Now()

	var errs []error
	for i, rec := range recs {
		if err := s.insert(rec); err != nil {
			re := &RecordError{Index: i, Err: err}
			if rec != nil {
				re.ID = rec.ID
			}
			errs = append(errs, re)
		}
	}

	s.metrics.RecordBatchInsert(len(recs), len(errs), time.Since(start))
	s.logger.LogBatchInsert(ctx, len(recs), len(errs))

	return errors.Join(errs...)
}

func (s *Store) insert(rec *model.Record) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if rec == nil {
		return ErrNilRecord
	}
	if err := s.checkDimension(len(rec.Vector), true); err != nil {
		return err
	}

	if s.metric.RequiresUnitVectors() && !distance.IsNormalized(rec.Vector, distance.NormTolerance) {
		// Zero vectors stay as they are and score 0 against everything.
		if vec, ok := distance.NormalizeL2Copy(rec.Vector); ok {
			rec = &model.Record{ID: rec.ID, Vector: vec, Metadata: rec.Metadata}
		}
	}

	s.sharded.Insert(rec)
	return nil
}

// checkDimension validates n against the store dimension. With lock set, an
// unlocked store adopts n.
func (s *Store) checkDimension(n int, lock bool) error {
	if n == 0 {
		return &ErrInvalidDimension{Dimension: 0}
	}
	for {
		dim := s.dimension.Load()
		if dim == 0 {
			if !lock {
				return nil
			}
			if s.dimension.CompareAndSwap(0, int64(n)) {
				return nil
			}
			continue
		}
		if int(dim) != n {
			return &ErrDimensionMismatch{Expected: int(dim), Actual: n}
		}
		return nil
	}
}

// Search returns up to k records most similar to query, ordered by descending
// score with ties broken by ascending id. An empty store or k <= 0 yields an
// empty result.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]model.Hit, error) {
	start := time.Now()

	hits, err := s.search(ctx, query, k)

	s.metrics.RecordSearch(k, time.Since(start), err)
	s.logger.LogSearch(ctx, k, len(hits), err)

	return hits, err
}

func (s *Store) search(ctx context.Context, query []float32, k int) ([]model.Hit, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if k <= 0 {
		return []model.Hit{}, nil
	}
	if s.dimension.Load() == 0 {
		// Nothing was ever inserted; any query matches nothing.
		return []model.Hit{}, nil
	}
	if err := s.checkDimension(len(query), false); err != nil {
		return nil, err
	}

	if s.metric.RequiresUnitVectors() && !distance.IsNormalized(query, distance.NormTolerance) {
		if q, ok := distance.NormalizeL2Copy(query); ok {
			query = q
		}
	}

	return s.sharded.Search(ctx, query, k)
}

// Len returns the number of live records. It never exceeds shards * capacity.
func (s *Store) Len() int {
	return s.sharded.Len()
}

// Stats returns per-shard occupancy and insert counters.
func (s *Store) Stats() Stats {
	return Stats{
		Stats:     s.sharded.Stats(),
		Dimension: s.Dimension(),
	}
}

// Dimension returns the vector dimension, or 0 if it is not locked yet.
func (s *Store) Dimension() int {
	return int(s.dimension.Load())
}

// Metric returns the similarity metric.
func (s *Store) Metric() distance.Metric {
	return s.metric
}

// Close releases the search workers. It is safe to call multiple times;
// later operations return ErrClosed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Info("store closed", "records", s.sharded.Len())
	return s.sharded.Close()
}
