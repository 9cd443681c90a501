// Package mapping implements the schema mapping resolver: it disambiguates
// duplicate scanned column names into stable source identifiers and
// reconciles many-to-one/one-to-many field links between scanned sources
// and the fixed application schema.
//
// The resolver is pure state logic with no I/O. Conflicting link attempts
// are reported as Conflict values with an enumerated choice set; the caller
// (a wizard screen, or a test) picks an Outcome and feeds it back through
// Resolve. The two link maps are kept as mutual duals at all times.
package mapping
