package pipeline

import (
	"context"
	"sync"
	"time"

	"order-agent/internal/domain"
)

// Nudger receives inactivity callbacks for a conversation.
type Nudger interface {
	FollowUp(ctx context.Context, tenantID, channel string)
	AutoCancel(ctx context.Context, tenantID, channel string)
}

// Exclusive serializes a callback with the conversation's turn processing.
// The buffer provides it; a false return means a turn owns the conversation
// right now and the callback is stale.
type Exclusive interface {
	TryExclusive(tenantID, channel string, fn func(ctx context.Context)) bool
}

// Timers schedules the inactivity follow-up and the auto-cancel for
// conversations with an open cart. Every processed turn rearms them; any
// other state disarms them. Callbacks run under the same per-conversation
// slot as turns, never concurrently with one.
type Timers struct {
	nudger      Nudger
	excl        Exclusive
	followAfter time.Duration
	cancelAfter time.Duration

	mu      sync.Mutex
	entries map[string]*timerPair

	ctx    context.Context
	cancel context.CancelFunc
}

type timerPair struct {
	follow *time.Timer
	cancel *time.Timer
}

// NewTimers creates the scheduler. followAfter must be shorter than
// cancelAfter; excl must not be nil.
func NewTimers(nudger Nudger, excl Exclusive, followAfter, cancelAfter time.Duration) *Timers {
	ctx, cancel := context.WithCancel(context.Background())
	return &Timers{
		nudger:      nudger,
		excl:        excl,
		followAfter: followAfter,
		cancelAfter: cancelAfter,
		entries:     make(map[string]*timerPair),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Arm reschedules both timers for the conversation when its cart is open, and
// drops them otherwise.
func (t *Timers) Arm(tenantID, channel string, state domain.State) {
	key := tenantID + "#" + channel

	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked(key)
	if !state.CartOpen() {
		return
	}
	t.entries[key] = &timerPair{
		follow: time.AfterFunc(t.followAfter, func() {
			t.excl.TryExclusive(tenantID, channel, func(ctx context.Context) {
				t.nudger.FollowUp(ctx, tenantID, channel)
			})
		}),
		cancel: time.AfterFunc(t.cancelAfter, func() {
			t.drop(key)
			t.excl.TryExclusive(tenantID, channel, func(ctx context.Context) {
				t.nudger.AutoCancel(ctx, tenantID, channel)
			})
		}),
	}
}

// Disarm drops the conversation's timers.
func (t *Timers) Disarm(tenantID, channel string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked(tenantID + "#" + channel)
}

func (t *Timers) drop(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked(key)
}

func (t *Timers) stopLocked(key string) {
	pair, ok := t.entries[key]
	if !ok {
		return
	}
	pair.follow.Stop()
	pair.cancel.Stop()
	delete(t.entries, key)
}

// Close stops every timer.
func (t *Timers) Close() {
	t.mu.Lock()
	for key := range t.entries {
		t.stopLocked(key)
	}
	t.mu.Unlock()
	t.cancel()
}
