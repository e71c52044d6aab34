// Package rag provides the shared knowledge layer for deliberations: an
// embedded vector index over briefing documents plus the embedder
// implementations that feed it and the per-participant memory stores.
package rag
