// Package preflight provides readiness checks for the paths and services a
// run depends on. The run command executes RunAll before starting and the
// status command reuses the individual checks for display.
package preflight
