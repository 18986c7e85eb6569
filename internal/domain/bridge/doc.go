// Package bridge arbitrates the structured message protocol between
// sandboxed extension frames (guests) and the host UI. Blocking dialogs
// are emulated over the asynchronous channel with a pending-request map
// keyed by a host-assigned relay id (guest correlation ids are only
// unique per page, so independent frames may reuse them): a response is
// honored only if its id matches an outstanding request, stray
// responses are ignored, and the map is drained with cancellation
// values when the owning surface is torn down.
package bridge
