// Package installer implements the single-flight install orchestration
// engine.
//
// # Overview
//
// An install runs through a 6-step workflow, executed in order with
// cooperative cancellation checked at every step boundary:
//
//  1. preflight - directory and database reachability checks
//  2. provision - create or attach the application database
//  3. schema-mapping - validate and persist the field mapping
//  4. storage-archive - prepare storage and verify archive policy
//  5. activation - bring the service or container up
//  6. finalize - write configuration, credentials, and the manifest
//
// # Lifecycle Contract
//
// The Orchestrator enforces the run contract:
//
//   - At most one install is active at a time. StartInstall rejects
//     re-entry synchronously with a KindAlreadyRunning error.
//   - Validation failures are synchronous and emit no events.
//   - An accepted run emits progress events at every step boundary and
//     finishes with exactly one terminal event, install-complete or
//     install-error, on every path including panics.
//   - CancelInstall stops the run at the next step boundary; the step
//     already in flight completes first.
//
// # Secret Handling
//
// Connection strings never reach logs, events, or artifacts raw.
// Messages carry masked DSNs; persisted configuration carries a
// fingerprint and points at a 0600 credentials file.
package installer
