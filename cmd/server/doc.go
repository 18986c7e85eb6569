// Package main is the entry point for the extension host server.
//
// The server manages installable extension packages for a virtual
// tabletop client: installing and removing them, serving their UI
// assets, arbitrating their modal windows and dialogs, running shared
// timers, and controlling per-room player visibility.
//
// Configuration comes from environment variables (12-factor), or from
// a YAML file passed with -config; the -port flag overrides either.
//
// Signals:
//   - SIGINT, SIGTERM: graceful shutdown
package main
