package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/ringvec"
	"github.com/hupe1980/ringvec/embed"
	"github.com/hupe1980/ringvec/model"
)

// maxLineSize bounds a single input line.
const maxLineSize = 1 << 20

// Options configures a Pipeline.
type Options struct {
	// BatchSize is the number of lines embedded and inserted together by Run.
	BatchSize int

	// Workers is the number of batches Run processes concurrently.
	Workers int

	// IDPrefix prefixes generated record ids: "<prefix>-<seq>".
	IDPrefix string

	// OnAlert receives alerts raised by watch queries. It may be called
	// concurrently from several workers.
	OnAlert func(Alert)

	Logger *slog.Logger
}

// DefaultOptions returns the default options.
var DefaultOptions = Options{
	BatchSize: 64,
	Workers:   4,
	IDPrefix:  "log",
}

// Summary reports the outcome of Run.
type Summary struct {
	Lines    int
	Ingested int
	Failed   int
	Batches  int
	Alerts   int
	Duration time.Duration
}

// Pipeline embeds text and inserts it into a store.
// All methods are safe for concurrent use.
type Pipeline struct {
	store    *ringvec.Store
	embedder embed.Embedder
	opts     Options
	logger   *slog.Logger

	seq    atomic.Uint64
	alerts atomic.Int64

	watchMu sync.Mutex
	watches atomic.Pointer[[]*watch]
}

// New creates a pipeline feeding store with vectors from embedder.
func New(store *ringvec.Store, embedder embed.Embedder, optFns ...func(o *Options)) (*Pipeline, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("ingest: batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.Workers <= 0 {
		return nil, fmt.Errorf("ingest: workers must be positive, got %d", opts.Workers)
	}
	if dim := store.Dimension(); dim != 0 && dim != embedder.Dimension() {
		return nil, &ringvec.ErrDimensionMismatch{Expected: dim, Actual: embedder.Dimension()}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	p := &Pipeline{
		store:    store,
		embedder: embedder,
		opts:     opts,
		logger:   logger.With("component", "ingest"),
	}
	p.watches.Store(&[]*watch{})
	return p, nil
}

// Alerts returns the number of alerts raised so far.
func (p *Pipeline) Alerts() int {
	return int(p.alerts.Load())
}

func (p *Pipeline) nextID() string {
	return p.opts.IDPrefix + "-" + strconv.FormatUint(p.seq.Add(1), 10)
}

// IngestText embeds text, stores it under a new id and returns the id.
func (p *Pipeline) IngestText(ctx context.Context, text string) (string, error) {
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed: %w", err)
	}

	id := p.nextID()
	if err := p.store.Insert(ctx, id, vec, text); err != nil {
		return "", err
	}

	p.checkWatches(id, text, vec)
	return id, nil
}

// IngestBatch embeds texts in one call and stores them. The returned ids
// follow the order of texts.
//
// When the store rejects some records, IngestBatch returns the ids of the
// records that were stored together with the store error.
func (p *Pipeline) IngestBatch(ctx context.Context, texts []string) ([]string, error) {
	vecs, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}

	ids := make([]string, len(texts))
	recs := make([]*model.Record, len(texts))
	for i, text := range texts {
		ids[i] = p.nextID()
		recs[i] = &model.Record{ID: ids[i], Vector: vecs[i], Metadata: text}
	}

	insertErr := p.store.InsertBatch(ctx, recs)
	rejected, ok := rejectedRecords(insertErr)
	if !ok {
		return nil, insertErr
	}

	stored := make([]string, 0, len(ids))
	for i, rec := range recs {
		if rejected[i] {
			continue
		}
		stored = append(stored, ids[i])
		p.checkWatches(ids[i], texts[i], rec.Vector)
	}
	return stored, insertErr
}

// rejectedRecords returns the batch positions named by err. ok is false when
// err is not made up of per-record failures only.
func rejectedRecords(err error) (rejected map[int]bool, ok bool) {
	if err == nil {
		return nil, true
	}
	joined, isJoined := err.(interface{ Unwrap() []error })
	if !isJoined {
		return nil, false
	}

	rejected = make(map[int]bool)
	for _, e := range joined.Unwrap() {
		var re *ringvec.RecordError
		if !errors.As(e, &re) {
			return nil, false
		}
		rejected[re.Index] = true
	}
	return rejected, true
}

// SearchText embeds text and returns its k nearest records.
func (p *Pipeline) SearchText(ctx context.Context, text string, k int) ([]model.Hit, error) {
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return p.store.Search(ctx, vec, k)
}

// Run reads r line by line until EOF or until ctx is cancelled. Blank lines
// are skipped. Lines the embedder or the store rejects are logged and counted
// in Summary.Failed; Run itself only fails on read errors and cancellation.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (Summary, error) {
	start := time.Now()
	alertsBefore := p.alerts.Load()

	var lines, ingested, failed, batches atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	batchCh := make(chan []string, p.opts.Workers)

	for w := 0; w < p.opts.Workers; w++ {
		g.Go(func() error {
			for batch := range batchCh {
				batches.Add(1)
				ids, err := p.IngestBatch(gctx, batch)
				ingested.Add(int64(len(ids)))
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					rejected := len(batch) - len(ids)
					failed.Add(int64(rejected))
					p.logger.Warn("batch failed", "lines", len(batch), "rejected", rejected, "error", err)
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(batchCh)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		batch := make([]string, 0, p.opts.BatchSize)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			lines.Add(1)
			batch = append(batch, line)
			if len(batch) < p.opts.BatchSize {
				continue
			}
			select {
			case batchCh <- batch:
			case <-gctx.Done():
				return gctx.Err()
			}
			batch = make([]string, 0, p.opts.BatchSize)
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if len(batch) > 0 {
			select {
			case batchCh <- batch:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	err := g.Wait()

	summary := Summary{
		Lines:    int(lines.Load()),
		Ingested: int(ingested.Load()),
		Failed:   int(failed.Load()),
		Batches:  int(batches.Load()),
		Alerts:   int(p.alerts.Load() - alertsBefore),
		Duration: time.Since(start),
	}

	p.logger.Info("ingest finished",
		"lines", summary.Lines,
		"ingested", summary.Ingested,
		"failed", summary.Failed,
		"alerts", summary.Alerts,
		"duration", summary.Duration,
	)

	return summary, err
}

// Rate returns ingested lines per second.
func (s Summary) Rate() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Ingested) / s.Duration.Seconds()
}

// String formats the summary for terminal output.
func (s Summary) String() string {
	return fmt.Sprintf("lines=%d ingested=%d failed=%d batches=%d alerts=%d duration=%s rate=%.0f/s",
		s.Lines, s.Ingested, s.Failed, s.Batches, s.Alerts, s.Duration.Round(time.Millisecond), s.Rate())
}
