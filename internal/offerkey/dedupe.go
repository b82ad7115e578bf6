package offerkey

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Dedupe collapses near-simultaneous duplicate events for the same offer
// key: the push-received and push-response-received listeners routinely
// fire within milliseconds of each other for one notification. Entries
// older than the window are pruned on every call, so the map never grows
// past the live set.
type Dedupe struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

func NewDedupe(window time.Duration) *Dedupe {
	return &Dedupe{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Seen marks the key and reports whether it was already marked within the
// window. The first caller wins; the duplicate gets true.
func (d *Dedupe) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	d.prune(now)
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.window {
		return true
	}
	d.seen[key] = now
	return false
}

// Forget drops every key belonging to the delivery, so a future distinct
// offer for the same id is not treated as a duplicate.
func (d *Dedupe) Forget(deliveryID int64) {
	prefix := strconv.FormatInt(deliveryID, 10) + ":"
	d.mu.Lock()
	defer d.mu.Unlock()
	for k := range d.seen {
		if strings.HasPrefix(k, prefix) {
			delete(d.seen, k)
		}
	}
}

func (d *Dedupe) prune(now time.Time) {
	for k, t := range d.seen {
		if now.Sub(t) >= d.window {
			delete(d.seen, k)
		}
	}
}
