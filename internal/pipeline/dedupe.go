package pipeline

import (
	"sync"
	"time"
)

// DedupeTTL is how long a provider message id is remembered. Webhook
// providers redeliver on slow acks well within this horizon.
const DedupeTTL = 5 * time.Minute

// Deduper drops redelivered webhook messages by provider message id.
type Deduper struct {
	ttl time.Duration

	mu   sync.Mutex
	seen map[string]time.Time

	done chan struct{}
}

// NewDeduper creates a Deduper and starts its sweep loop. ttl<=0 uses
// DedupeTTL.
func NewDeduper(ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = DedupeTTL
	}
	d := &Deduper{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		done: make(chan struct{}),
	}
	go d.sweep()
	return d
}

// Seen records id and reports whether it was already present within the TTL.
func (d *Deduper) Seen(id string) bool {
	if id == "" {
		return false
	}
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if at, ok := d.seen[id]; ok && now.Sub(at) < d.ttl {
		return true
	}
	d.seen[id] = now
	return false
}

func (d *Deduper) sweep() {
	ticker := time.NewTicker(d.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-d.done:
			return
		case now := <-ticker.C:
			d.mu.Lock()
			for id, at := range d.seen {
				if now.Sub(at) >= d.ttl {
					delete(d.seen, id)
				}
			}
			d.mu.Unlock()
		}
	}
}

// Close stops the sweep loop.
func (d *Deduper) Close() {
	close(d.done)
}
