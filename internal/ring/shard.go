// Package ring implements the fixed-capacity circular slot array backing a
// single shard.
//
// Writers claim a slot with one atomic cursor increment and publish the record
// with one atomic pointer store. Readers load slot pointers atomically and
// therefore always see a complete record, either the one before an overwrite or
// the one after it. No locks are taken on either path.
package ring

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/hupe1980/ringvec/distance"
	"github.com/hupe1980/ringvec/internal/topk"
	"github.com/hupe1980/ringvec/model"
)

// Shard is a circular buffer of record slots.
//
// Insert beyond capacity overwrites the slot selected by the cursor, which is
// the oldest one when inserts are not racing. Two concurrent inserts that map
// to the same slot race only on the final pointer store and the later store
// wins; the losing record is dropped without error.
type Shard struct {
	_      cpu.CacheLinePad
	cursor atomic.Uint64
	_      cpu.CacheLinePad

	capacity uint64
	slots    []atomic.Pointer[model.Record]
}

// New creates a shard with the given capacity. capacity must be positive.
func New(capacity int) *Shard {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Shard{
		capacity: uint64(capacity),
		slots:    make([]atomic.Pointer[model.Record], capacity),
	}
}

// Capacity returns the number of slots.
func (s *Shard) Capacity() int {
	return int(s.capacity)
}

// Cursor returns the total number of inserts ever claimed on this shard.
func (s *Shard) Cursor() uint64 {
	return s.cursor.Load()
}

// Insert stores rec in the next slot and returns the sequence number it was
// assigned (the pre-increment cursor value).
func (s *Shard) Insert(rec *model.Record) uint64 {
	seq := s.cursor.Add(1) - 1
	s.slots[seq%s.capacity].Store(rec)
	return seq
}

// Len returns the number of occupied slots.
func (s *Shard) Len() int {
	n := 0
	for i := range s.slots {
		if s.slots[i].Load() != nil {
			n++
		}
	}
	return n
}

// Records returns the live records ordered oldest first by cursor position.
// Under concurrent inserts the result is a best-effort snapshot.
func (s *Shard) Records() []*model.Record {
	c := s.cursor.Load()
	out := make([]*model.Record, 0, min(c, s.capacity))

	start := uint64(0)
	if c > s.capacity {
		start = c % s.capacity
	}
	for i := uint64(0); i < s.capacity; i++ {
		if rec := s.slots[(start+i)%s.capacity].Load(); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

// ScanTopK scores every live record against query and returns at most k hits,
// unordered. Empty slots are skipped. k <= 0 returns nil.
func (s *Shard) ScanTopK(query []float32, k int, score distance.Func) []model.Hit {
	if k <= 0 {
		return nil
	}

	h := topk.New(min(k, int(s.capacity)))
	for i := range s.slots {
		rec := s.slots[i].Load()
		if rec == nil {
			continue
		}
		h.Push(model.Hit{Record: rec, Score: score(query, rec.Vector)})
	}
	return h.Items()
}
