// Package dbconn provides the engine-abstracted database connector and
// provisioner used by the install pipeline. It guesses the target engine
// from connection-string hints, runs bounded connection tests with
// backoff, inspects create-database privileges without attempting
// creation, and issues engine-specific DDL through validated, quoted
// identifiers only.
//
// Connection strings are treated as secrets: every log line and error
// message goes through MaskDSN, and persisted artifacts only ever see the
// Fingerprint form.
package dbconn
