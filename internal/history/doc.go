// Package history persists one telemetry sample per successful sidecar
// cycle in a local SQLite database. The store exists for the operator-facing
// history command; the published status document never depends on it, and a
// history failure never affects a telemetry cycle.
package history
