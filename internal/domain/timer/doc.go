// Package timer runs the persistent countdown/stopwatch service.
//
// Items outlive the window that created them: a single tick loop keeps
// running items current while state changes replicate to every open
// window through the notifier and persist to disk through the store.
// Persistence deliberately excludes running state, so a restart always
// presents stopped items with countdowns back at their target.
//
// The loop is lazy: it starts on the first running item, steps at the
// configured interval, and tears itself down when nothing is running.
// A Clock abstraction lets tests drive it with simulated time.
package timer
