// Package state persists per-item processing progress. The store is the
// single source of truth for what each item has been through; every mutation
// is serialized and written atomically so runs are resumable after a crash.
package state
