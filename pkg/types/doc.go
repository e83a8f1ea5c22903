// Package types defines the core data model shared by the graph constructor,
// the retrieval strategies, and the query router: content segments, speakers,
// topics, ingestion reports, ranked retrieval results, and the message shapes
// exchanged with language model providers.
package types
