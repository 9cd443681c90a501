// Package stores provides run history persistence for the installer.
//
// The SQLite-backed store keeps one row per install run plus the run's
// full event stream, so past installs can be inspected after the fact.
// Schema changes ship as embedded golang-migrate migrations applied by
// Migrate. Retention is enforced with PruneRuns.
//
// Recorder adapts the store to the installer.RunRecorder interface so
// the orchestrator can mirror its lifecycle into the database without
// depending on this package.
package stores
