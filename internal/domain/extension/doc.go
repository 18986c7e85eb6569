// Package extension maintains the host-side catalog of installed
// extensions. The extensions directory on disk is the source of truth;
// the manager rescans it on every query, parses each extension.toml,
// sanitizes untrusted presentation fields, and resolves per-room player
// visibility.
package extension
