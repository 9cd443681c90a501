// Package archive implements the ordered archive verification pipeline:
// six strictly ordered, idempotent policy steps with a persisted JSON
// ledger. A step verified for a given configuration fingerprint is never
// re-executed while the fingerprint is unchanged; re-runs report it as
// skipped and leave the ledger record untouched, so the whole pipeline is
// safely re-runnable.
package archive
