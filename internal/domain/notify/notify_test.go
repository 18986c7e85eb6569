package notify

import (
	"testing"

	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/types"
)

func TestLoopbackFanOut(t *testing.T) {
	l := NewLoopback()

	var a, b [][]types.TimerItem
	l.Subscribe(func(items []types.TimerItem) { a = append(a, items) })
	cancelB := l.Subscribe(func(items []types.TimerItem) { b = append(b, items) })

	l.Publish([]types.TimerItem{{ID: "1", Name: "round"}})

	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("Both subscribers should receive the snapshot, got %d / %d", len(a), len(b))
	}

	cancelB()
	l.Publish([]types.TimerItem{{ID: "1"}, {ID: "2"}})

	if len(a) != 2 {
		t.Errorf("Remaining subscriber should keep receiving, got %d", len(a))
	}
	if len(b) != 1 {
		t.Errorf("Cancelled subscriber must not receive, got %d", len(b))
	}
	if len(a[1]) != 2 {
		t.Errorf("Snapshot content lost: %v", a[1])
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	l := NewLoopback()
	got := 0
	cancel := l.Subscribe(func([]types.TimerItem) { got++ })

	cancel()
	cancel()
	l.Publish(nil)

	if got != 0 {
		t.Errorf("Expected no deliveries after cancel, got %d", got)
	}
}
