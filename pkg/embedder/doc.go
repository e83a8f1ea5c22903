// Package embedder provides the embedding provider contract and its
// OpenAI-compatible implementation, plus a badger-backed cache that keeps
// re-ingestion from re-paying for unchanged text.
package embedder
