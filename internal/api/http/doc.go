// Package http exposes the REST surface: extension listing and install
// management, modal lifecycle, timer snapshots, UI asset serving and
// the remote content proxy.
package http
