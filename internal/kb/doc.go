// Package kb renders markdown knowledge-base entries and the root index.
package kb
