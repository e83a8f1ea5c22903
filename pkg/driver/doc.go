// Package driver wraps the property-graph store behind the GraphDriver
// interface: parameterized Cypher execution, keyed upserts, vector and
// full-text index queries, and bounded neighborhood expansion. Store errors
// are classified as transient, constraint-violation, or query so callers can
// decide what to retry without inspecting provider error strings.
package driver
