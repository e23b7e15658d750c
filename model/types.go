package model

import (
	"fmt"
	"slices"
)

// Record is a single stored entry.
//
// ID is caller-supplied and only used for shard routing; it does not need to
// be unique. Vector has the store's fixed dimension. Metadata is returned
// verbatim on search hits (typically the original text).
type Record struct {
	ID       string
	Vector   []float32
	Metadata string
}

// NewRecord creates a record that owns a private copy of vector.
func NewRecord(id string, vector []float32, metadata string) *Record {
	return &Record{
		ID:       id,
		Vector:   slices.Clone(vector),
		Metadata: metadata,
	}
}

// Dimension returns the length of the record's vector.
func (r *Record) Dimension() int {
	return len(r.Vector)
}

// String returns a short representation of the record (vector omitted).
func (r *Record) String() string {
	return fmt.Sprintf("Record(%s, dim=%d)", r.ID, len(r.Vector))
}

// Hit is a search result.
type Hit struct {
	Record *Record
	Score  float32
}

// ID returns the id of the hit's record.
func (h Hit) ID() string {
	return h.Record.ID
}

// Metadata returns the metadata of the hit's record.
func (h Hit) Metadata() string {
	return h.Record.Metadata
}

// Less orders hits by descending score, breaking ties by ascending id.
func Less(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Record.ID < b.Record.ID
}
