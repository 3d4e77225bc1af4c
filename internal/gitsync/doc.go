// Package gitsync commits the knowledge base directory into git. It provides
// the sync phase function and the post-run index commit.
package gitsync
