// Package index abstracts the vector index over extracted insights. One entry
// per article URL; re-indexing the same URL replaces the previous vector
// rather than accumulating stale ones.
package index

import "context"

// Entry is one indexed insight vector with the compact text it was embedded
// from. The text travels with the entry so retrieval has a usable snippet
// even when the authoritative record is briefly unavailable.
type Entry struct {
	ID         string
	ArticleURL string
	Text       string
	Embedding  []float32
}

// Hit is one search result.
type Hit struct {
	ArticleURL string
	Text       string
	Score      float32
}

// Index is the vector store surface the pipeline depends on. Embeddings are
// computed by the caller; the index only stores and searches them.
type Index interface {
	// Upsert replaces any existing entries for the given article URLs and
	// inserts the new ones.
	Upsert(ctx context.Context, entries []Entry) error
	// Search returns the topK nearest entries to the query embedding.
	Search(ctx context.Context, embedding []float32, topK int) ([]Hit, error)
	// Drop discards the whole index. Used by administrative rebuild only.
	Drop(ctx context.Context) error
}
