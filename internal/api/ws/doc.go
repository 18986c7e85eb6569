// Package ws terminates the two WebSocket channels.
//
// The bridge channel carries extension messages between guest surfaces
// (extension content frames) and host surfaces (the client UI that
// renders dialogs). The window channel is the shared cross-window
// timer feed: commands in, state snapshots out to everyone.
package ws
