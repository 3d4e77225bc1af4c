// Package fetch discovers bookmarked posts and caches their content. It
// provides the pre-run discovery step and the cache phase function.
package fetch
