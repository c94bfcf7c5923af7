package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Inbound is one deduplicated webhook message entering the buffer.
type Inbound struct {
	TenantID  string
	Channel   string
	MessageID string
	Text      string
	At        time.Time
}

// Processor consumes one grouped message per conversation turn.
type Processor interface {
	ProcessTurn(ctx context.Context, tenantID, channel, text string) error
}

// Buffer groups rapid-fire messages per conversation into one turn. A group
// flushes when the debounce window elapses with no new message. At most one
// turn per conversation is in flight; messages arriving during processing
// buffer for the next group.
type Buffer struct {
	proc   Processor
	window time.Duration
	log    *slog.Logger

	mu      sync.Mutex
	pending map[string]*group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type group struct {
	tenantID string
	channel  string
	texts    []string
	timer    *time.Timer
	inFlight bool
}

// NewBuffer creates a Buffer with the given default debounce window.
func NewBuffer(proc Processor, window time.Duration, log *slog.Logger) *Buffer {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Buffer{
		proc:    proc,
		window:  window,
		log:     log,
		pending: make(map[string]*group),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Enqueue adds a message to its conversation's group. window overrides the
// default debounce for this conversation when positive; tenants configure it
// per registry entry.
func (b *Buffer) Enqueue(msg Inbound, window time.Duration) {
	if window <= 0 {
		window = b.window
	}
	key := msg.TenantID + "#" + msg.Channel

	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.pending[key]
	if !ok {
		g = &group{tenantID: msg.TenantID, channel: msg.Channel}
		b.pending[key] = g
	}
	g.texts = append(g.texts, msg.Text)
	if g.inFlight {
		// the running turn's completion restarts the timer
		return
	}
	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(window, func() { b.flush(key, window) })
}

func (b *Buffer) flush(key string, window time.Duration) {
	b.mu.Lock()
	g, ok := b.pending[key]
	if !ok || g.inFlight || len(g.texts) == 0 {
		b.mu.Unlock()
		return
	}
	text := strings.Join(g.texts, "\n")
	g.texts = nil
	g.inFlight = true
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.proc.ProcessTurn(b.ctx, g.tenantID, g.channel, text); err != nil {
			b.log.Error("turn processing failed",
				"tenant", g.tenantID, "channel", g.channel, "err", err)
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		g.inFlight = false
		if len(g.texts) > 0 {
			g.timer = time.AfterFunc(window, func() { b.flush(key, window) })
			return
		}
		delete(b.pending, key)
	}()
}

// TryExclusive runs fn while holding the conversation's turn slot, the same
// slot flush uses, so callers never interleave with an in-flight turn. It
// reports false without running fn when a turn is running or messages are
// waiting; the customer just spoke in that case and the caller's work is
// stale.
func (b *Buffer) TryExclusive(tenantID, channel string, fn func(ctx context.Context)) bool {
	key := tenantID + "#" + channel

	b.mu.Lock()
	g, ok := b.pending[key]
	if ok && (g.inFlight || len(g.texts) > 0) {
		b.mu.Unlock()
		return false
	}
	if !ok {
		g = &group{tenantID: tenantID, channel: channel}
		b.pending[key] = g
	}
	g.inFlight = true
	b.mu.Unlock()

	b.wg.Add(1)
	defer b.wg.Done()
	fn(b.ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	g.inFlight = false
	if len(g.texts) > 0 {
		// messages arrived while fn held the slot
		g.timer = time.AfterFunc(b.window, func() { b.flush(key, b.window) })
		return true
	}
	delete(b.pending, key)
	return true
}

// Close stops pending timers and waits for in-flight turns.
func (b *Buffer) Close() {
	b.mu.Lock()
	for _, g := range b.pending {
		if g.timer != nil {
			g.timer.Stop()
		}
	}
	b.mu.Unlock()
	b.wg.Wait()
	b.cancel()
}
