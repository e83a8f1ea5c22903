// Package graphrag builds typed knowledge graphs from video transcript
// segments and answers natural-language questions against them.
//
// Ingestion converts ordered segments into Content, Speaker and Topic nodes
// with vector embeddings, linked by HAS_SPEAKER, MENTIONS and FOLLOWS
// relationships under the schema declared by pkg/schema. Retrieval blends
// vector similarity, full-text relevance and bounded graph traversal, with a
// query router that classifies each question, picks a strategy, falls back
// at most once, and synthesizes an answer from the retrieved sources.
//
// The graph store, embedding provider and language model are consumed
// through the pkg/driver, pkg/embedder and pkg/nlp contracts.
package graphrag
