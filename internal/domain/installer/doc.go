// Package installer validates, persists, and removes extension packages.
// Packages arrive as raw archive bytes or a remote URL; either way the
// manifest is validated before any filesystem mutation, installs land in
// a fresh uniquely named directory, and every successful mutation
// refreshes the registry before returning to the caller.
package installer
