package timer

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/domain/notify"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/logging"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/monitoring"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/types"
)

// DefaultTickInterval is the tick-loop resolution.
const DefaultTickInterval = 100 * time.Millisecond

// CompletionHandler receives the one-shot event fired when a countdown
// reaches zero.
type CompletionHandler func(types.TimerCompletion)

// UpdateFields carries the mutable fields of an Update operation; nil
// pointers leave the field untouched.
type UpdateFields struct {
	Name     *string
	TargetMs *int64
	ValueMs  *int64
}

// Service is the persistent countdown/stopwatch registry. Items survive
// their owning UI being closed; state replicates to other open windows
// through the notifier and persists across reloads through the store
// (always restored stopped). All operations are idempotent against a
// missing id.
type Service struct {
	mu    sync.Mutex
	items []*types.TimerItem // Protected by mu

	clock    Clock
	interval time.Duration
	store    *Store
	notifier notify.Notifier
	metrics  *monitoring.Metrics
	logger   *logging.Logger

	onComplete CompletionHandler

	ticking  bool          // Protected by mu
	stopTick chan struct{} // Protected by mu
}

// NewService creates a timer service. store and notifier may be nil for
// ephemeral, single-surface use.
func NewService(store *Store, notifier notify.Notifier, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		clock:    RealClock(),
		interval: DefaultTickInterval,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// WithClock overrides the clock, used by tests to simulate time.
func (s *Service) WithClock(clock Clock) *Service {
	s.clock = clock
	return s
}

// WithInterval overrides the tick-loop interval.
func (s *Service) WithInterval(d time.Duration) *Service {
	if d > 0 {
		s.interval = d
	}
	return s
}

// WithMetrics adds metrics tracking.
func (s *Service) WithMetrics(metrics *monitoring.Metrics) *Service {
	s.metrics = metrics
	return s
}

// OnComplete registers the countdown completion handler.
func (s *Service) OnComplete(h CompletionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onComplete = h
}

// Load restores persisted items. Every restored item is stopped and a
// countdown's value is reset to its target: a timer is never silently
// still counting after a reload.
func (s *Service) Load() error {
	if s.store == nil {
		return nil
	}

	items, err := s.store.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.items = make([]*types.TimerItem, 0, len(items))
	for _, item := range items {
		restored := item
		restored.Running = false
		restored.StartTime = nil
		if restored.Mode == types.ModeCountdown {
			restored.ValueMs = restored.TargetMs
		}
		s.items = append(s.items, &restored)
	}
	s.mu.Unlock()
	return nil
}

// Add creates a new item, stopped, at the mode's starting value.
func (s *Service) Add(mode types.TimerMode, name string, targetMs int64) types.TimerItem {
	if mode != types.ModeCountdown {
		mode = types.ModeStopwatch
	}
	if targetMs < 0 {
		targetMs = 0
	}

	item := &types.TimerItem{
		ID:       uuid.NewString(),
		Name:     name,
		Mode:     mode,
		TargetMs: targetMs,
	}
	if mode == types.ModeCountdown {
		item.ValueMs = targetMs
	}

	s.mu.Lock()
	s.items = append(s.items, item)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(snapshot)
	return item.Clone()
}

// Remove deletes an item. Unknown ids are a no-op.
func (s *Service) Remove(id string) {
	s.mu.Lock()
	for i, item := range s.items {
		if item.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	snapshot := s.snapshotLocked()
	stop := !s.anyRunningLocked()
	s.mu.Unlock()

	if stop {
		s.stopLoop()
	}
	s.commit(snapshot)
}

// Update mutates an item's fields. Updating the target of a non-running
// countdown also resets its value to the new target.
func (s *Service) Update(id string, fields UpdateFields) {
	s.mu.Lock()
	item := s.findLocked(id)
	if item == nil {
		s.mu.Unlock()
		return
	}

	if fields.Name != nil {
		item.Name = *fields.Name
	}
	if fields.TargetMs != nil {
		item.TargetMs = *fields.TargetMs
		if item.Mode == types.ModeCountdown && !item.Running {
			item.ValueMs = item.TargetMs
		}
	}
	if fields.ValueMs != nil && !item.Running {
		item.ValueMs = *fields.ValueMs
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.commit(snapshot)
}

// Start begins or resumes an item. Starting a running item is a no-op;
// resuming computes the start instant from the frozen value so no time
// is lost or gained.
func (s *Service) Start(id string) {
	s.mu.Lock()
	item := s.findLocked(id)
	if item == nil || item.Running {
		s.mu.Unlock()
		return
	}

	now := s.clock.Now()
	var elapsed time.Duration
	switch item.Mode {
	case types.ModeCountdown:
		if item.ValueMs <= 0 {
			item.ValueMs = item.TargetMs
		}
		elapsed = time.Duration(item.TargetMs-item.ValueMs) * time.Millisecond
	default:
		elapsed = time.Duration(item.ValueMs) * time.Millisecond
	}
	start := now.Add(-elapsed)
	item.StartTime = &start
	item.Running = true

	snapshot := s.snapshotLocked()
	s.ensureLoopLocked()
	s.mu.Unlock()

	s.commit(snapshot)
}

// Stop freezes an item at its current computed value.
func (s *Service) Stop(id string) {
	s.mu.Lock()
	item := s.findLocked(id)
	if item == nil || !item.Running {
		s.mu.Unlock()
		return
	}

	item.ValueMs = s.computeLocked(item, s.clock.Now())
	item.Running = false
	item.StartTime = nil

	snapshot := s.snapshotLocked()
	stop := !s.anyRunningLocked()
	s.mu.Unlock()

	if stop {
		s.stopLoop()
	}
	s.commit(snapshot)
}

// Reset stops an item and restores the mode's zero state: target for a
// countdown, zero for a stopwatch.
func (s *Service) Reset(id string) {
	s.mu.Lock()
	item := s.findLocked(id)
	if item == nil {
		s.mu.Unlock()
		return
	}

	item.Running = false
	item.StartTime = nil
	if item.Mode == types.ModeCountdown {
		item.ValueMs = item.TargetMs
	} else {
		item.ValueMs = 0
	}

	snapshot := s.snapshotLocked()
	stop := !s.anyRunningLocked()
	s.mu.Unlock()

	if stop {
		s.stopLoop()
	}
	s.commit(snapshot)
}

// Items returns a deep copy of the current item list.
func (s *Service) Items() []types.TimerItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

// HandleCommand applies a time-manager verb from the window channel.
// Unknown verbs report false and change nothing.
func (s *Service) HandleCommand(msg types.WindowMessage) bool {
	switch msg.Type {
	case types.TimeManagerGetState:
		// Read-only; the caller replies with Items() itself.
		return true
	case types.TimeManagerAdd:
		name := ""
		if msg.Name != nil {
			name = *msg.Name
		}
		var target int64
		if msg.TargetMs != nil {
			target = *msg.TargetMs
		}
		s.Add(msg.Mode, name, target)
		return true
	case types.TimeManagerRemove:
		s.Remove(msg.ID)
		return true
	case types.TimeManagerUpdate:
		s.Update(msg.ID, UpdateFields{Name: msg.Name, TargetMs: msg.TargetMs, ValueMs: msg.ValueMs})
		return true
	case types.TimeManagerStart:
		s.Start(msg.ID)
		return true
	case types.TimeManagerStop:
		s.Stop(msg.ID)
		return true
	case types.TimeManagerReset:
		s.Reset(msg.ID)
		return true
	default:
		if strings.HasPrefix(msg.Type, types.TimeManagerPrefix) {
			s.logger.Debug("Unknown timer verb", zap.String("type", msg.Type))
		}
		return false
	}
}

// Close stops the tick loop. Items remain persisted.
func (s *Service) Close() {
	s.stopLoop()
}

// ---- internals ----

func (s *Service) findLocked(id string) *types.TimerItem {
	for _, item := range s.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

func (s *Service) anyRunningLocked() bool {
	for _, item := range s.items {
		if item.Running {
			return true
		}
	}
	return false
}

func (s *Service) snapshotLocked() []types.TimerItem {
	out := make([]types.TimerItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.Clone())
	}
	return out
}

// computeLocked derives the live value of a running item at now.
func (s *Service) computeLocked(item *types.TimerItem, now time.Time) int64 {
	if item.StartTime == nil {
		return item.ValueMs
	}
	elapsed := now.Sub(*item.StartTime).Milliseconds()
	if item.Mode == types.ModeCountdown {
		remaining := item.TargetMs - elapsed
		if remaining < 0 {
			return 0
		}
		return remaining
	}
	return elapsed
}

// ensureLoopLocked starts the tick loop if it is not already running;
// a second start while ticking is a no-op. Must hold mu.
func (s *Service) ensureLoopLocked() {
	if s.ticking {
		return
	}
	s.ticking = true
	s.stopTick = make(chan struct{})
	go s.loop(s.stopTick)
}

// stopLoop tears the tick loop down; safe to call when not ticking.
func (s *Service) stopLoop() {
	s.mu.Lock()
	if !s.ticking {
		s.mu.Unlock()
		return
	}
	s.ticking = false
	stop := s.stopTick
	s.stopTick = nil
	s.mu.Unlock()

	close(stop)
}

func (s *Service) loop(stop chan struct{}) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C():
			s.Tick(now)
		}
	}
}

// Tick recomputes every running item at now. Exported so tests can step
// simulated time without the loop goroutine.
func (s *Service) Tick(now time.Time) {
	var completions []types.TimerCompletion

	s.mu.Lock()
	for _, item := range s.items {
		if !item.Running {
			continue
		}
		value := s.computeLocked(item, now)
		item.ValueMs = value
		if item.Mode == types.ModeCountdown && value == 0 {
			// Run-to-zero: the item stops, so the event cannot re-fire
			// on the next tick without an intervening Start.
			item.Running = false
			item.StartTime = nil
			completions = append(completions, types.TimerCompletion{ID: item.ID, Name: item.Name})
		}
	}

	var snapshot []types.TimerItem
	stopNeeded := false
	handler := s.onComplete
	if len(completions) > 0 {
		snapshot = s.snapshotLocked()
		stopNeeded = !s.anyRunningLocked()
	}
	s.mu.Unlock()

	if len(completions) == 0 {
		return
	}

	if stopNeeded {
		s.stopLoop()
	}

	for _, c := range completions {
		s.logger.Info("Countdown completed", zap.String("name", c.Name))
		if s.metrics != nil {
			s.metrics.TimerCompletions.Inc()
		}
		if handler != nil {
			handler(c)
		}
	}

	s.commit(snapshot)
}

// commit persists and broadcasts a snapshot taken under the lock.
// Persistence deliberately strips running state; the broadcast keeps it.
func (s *Service) commit(snapshot []types.TimerItem) {
	if s.store != nil {
		if err := s.store.Save(snapshot); err != nil {
			s.logger.Warn("Failed to persist timers", zap.Error(err))
		}
	}
	if s.notifier != nil {
		s.notifier.Publish(snapshot)
	}
	if s.metrics != nil {
		running := 0
		for _, item := range snapshot {
			if item.Running {
				running++
			}
		}
		s.metrics.TimersRunning.Set(float64(running))
	}
}
