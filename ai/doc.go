// Package ai abstracts the embedding backend used by the indexer and the
// search engine.
//
// The single plug point is the Embedder interface: one batch embedding
// method plus the vector dimension. Two implementations ship with the
// repository:
//
//   - ai/openai: production implementation for OpenAI-compatible APIs
//     (Ollama, LocalAI, vLLM) via langchaingo
//   - ai/mock: deterministic test double requiring no external service
//
// CachedEmbedder wraps any Embedder with an LRU cache keyed by a BLAKE2b
// digest of the input text, so repeated queries and unchanged documents
// skip the embedding call entirely.
package ai
