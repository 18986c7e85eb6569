package types

import "time"

// TimerMode distinguishes countdowns from stopwatches. The wire name
// "timer" for stopwatches is kept for compatibility with the window
// channel protocol.
type TimerMode string

const (
	ModeCountdown TimerMode = "countdown"
	ModeStopwatch TimerMode = "timer"
)

// TimerItem is one countdown or stopwatch. ValueMs is authoritative at
// rest: remaining ms for a countdown, elapsed ms for a stopwatch. While
// running, StartTime is set and ValueMs is recomputed by the tick loop.
// A stopped item never carries a StartTime.
type TimerItem struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Mode      TimerMode  `json:"mode"`
	TargetMs  int64      `json:"targetMs"`
	ValueMs   int64      `json:"valueMs"`
	Running   bool       `json:"running"`
	StartTime *time.Time `json:"startTime,omitempty"`
}

// Clone returns a deep copy safe to hand across goroutines.
func (t TimerItem) Clone() TimerItem {
	c := t
	if t.StartTime != nil {
		st := *t.StartTime
		c.StartTime = &st
	}
	return c
}

// TimerCompletion is the one-shot event fired when a countdown reaches
// zero.
type TimerCompletion struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
