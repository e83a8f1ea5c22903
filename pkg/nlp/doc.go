// Package nlp provides language model clients for answer synthesis and
// natural-language-to-Cypher translation. The base OpenAI-compatible client
// can be layered with retry and circuit-breaker wrappers, all behind the
// same Client interface.
package nlp
