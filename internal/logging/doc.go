// Package logging constructs the application's slog loggers and provides the
// typed attribute helpers and context field injection the rest of the code
// logs through.
package logging
