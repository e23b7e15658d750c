// Package ingest turns a stream of text lines into ringvec records.
//
// A Pipeline embeds text with an embed.Embedder, assigns sequential ids and
// inserts the vectors into a ringvec.Store. Run consumes an io.Reader line by
// line, groups lines into batches and processes batches on a fixed set of
// workers. Standing watch queries raise an Alert for every ingested line that
// is similar enough to them.
package ingest
