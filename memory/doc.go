// Package memory implements the participant memory subsystem: append-only
// per-participant streams of observations and reflections, retrieval ranked by
// a weighted relevance/recency/importance score with exponential time decay,
// and periodic reflection synthesis once enough observations accumulate.
//
// Appends are serialized per participant (single writer per stream) to keep
// record timestamps monotonically non-decreasing; retrieval for one
// participant may proceed concurrently with appends to others.
package memory
