// Package services defines the shared error taxonomy and context annotation
// helpers used across pipeline phases and the orchestrator.
package services
