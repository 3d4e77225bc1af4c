// Package pipeline drives the ordered phase sequence across all known items:
// phase-by-phase batching with a barrier between phases, bounded concurrency
// per resource class, per-item failure isolation and live progress reporting.
package pipeline
