// Package kbindex maintains a SQLite search index over generated
// knowledge-base entries.
package kbindex
