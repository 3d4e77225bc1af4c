// Package llm provides the chat-completion client the interpretation phases
// use. All requests demand JSON output; transient HTTP and rate-limit
// failures are retried with exponential backoff.
package llm
