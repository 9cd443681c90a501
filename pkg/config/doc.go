// Package config loads and validates the application configuration and
// install request files.
//
// Both file kinds are YAML. Values of the form ${VAR} are expanded from
// the environment before parsing, which keeps connection strings out of
// files on disk. The Watcher reloads the application configuration when
// the file changes and keeps the previous configuration when the new
// contents fail validation.
package config
