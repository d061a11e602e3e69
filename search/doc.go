// Package search implements query execution over the article store and
// the vector index.
//
// A query moves through a fixed pipeline: parse the power-user syntax,
// embed the semantic terms, retrieve candidates from the index, push the
// metadata filter down to the store, rerank with the multi-signal score
// adjustment, collapse chunk hits per article, apply phrase filters,
// paginate, and enrich the final page with excerpts and tags.
//
// Execution is bounded: a fixed worker pool with a short queue, a hard
// per-query deadline, and load shedding past the queue. The monitor
// interface exposes stage-level observations for callers that want
// query logging or metrics.
package search
