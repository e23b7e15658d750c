package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/ringvec/distance"
	"github.com/hupe1980/ringvec/internal/ring"
	"github.com/hupe1980/ringvec/internal/topk"
	"github.com/hupe1980/ringvec/model"
)

// scanTask asks a worker for the k best hits of a single shard.
type scanTask struct {
	shard *ring.Shard
	query []float32
	k     int
	out   chan<- []model.Hit
}

// ScanPool is a fixed set of goroutines that scan shards for a query.
// Workers are shared by all queries so a burst of searches does not spawn one
// goroutine per shard per query.
type ScanPool struct {
	size  int
	score distance.Func
	tasks chan scanTask
	wg    sync.WaitGroup

	closed   atomic.Bool
	submitMu sync.RWMutex

	scans atomic.Uint64
}

// NewScanPool starts size workers scoring with score. A size <= 0 selects
// GOMAXPROCS.
func NewScanPool(size int, score distance.Func) *ScanPool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}

	p := &ScanPool{
		size:  size,
		score: score,
		tasks: make(chan scanTask, size*2),
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}

	return p
}

// Size returns the number of workers.
func (p *ScanPool) Size() int {
	return p.size
}

// Scans returns the number of completed shard scans.
func (p *ScanPool) Scans() uint64 {
	return p.scans.Load()
}

func (p *ScanPool) worker() {
	defer p.wg.Done()

	// tasks is closed by Close; queued scans drain first.
	for t := range p.tasks {
		hits := t.shard.ScanTopK(t.query, t.k, p.score)
		p.scans.Add(1)
		t.out <- hits
	}
}

func (p *ScanPool) dispatch(ctx context.Context, t scanTask) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if p.closed.Load() {
		return ErrClosed
	}

	select {
	case p.tasks <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TopK scans every shard in parallel and merges the per-shard results into
// the k best hits overall, ordered by descending score then ascending id.
//
// ctx bounds dispatch and collection; a scan already picked up by a worker
// runs to completion.
func (p *ScanPool) TopK(ctx context.Context, shards []*ring.Shard, query []float32, k int) ([]model.Hit, error) {
	if k <= 0 || len(shards) == 0 {
		return []model.Hit{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search cancelled: %w", err)
	}

	// Buffered so workers never block on a caller that gave up.
	out := make(chan []model.Hit, len(shards))

	for _, shard := range shards {
		t := scanTask{shard: shard, query: query, k: k, out: out}
		if err := p.dispatch(ctx, t); err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}
	}

	merged := topk.New(k)
	for range shards {
		select {
		case hits := <-out:
			for _, h := range hits {
				merged.Push(h)
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("search cancelled: %w", ctx.Err())
		}
	}

	return merged.Sorted(), nil
}

// Close stops the workers after queued scans finish. It is idempotent.
func (p *ScanPool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}

	// Wait for in-flight dispatches before closing the queue.
	p.submitMu.Lock()
	close(p.tasks)
	p.submitMu.Unlock()

	p.wg.Wait()
}
