// Package governor implements per-identity request throttling: a sliding
// aggregate window, same-content caps, and a sticky cooldown entered the
// moment any rule trips.
package governor

import (
	"strings"
	"sync"
	"time"

	"github.com/kmalkov/searchgate/internal/clock"
	"github.com/kmalkov/searchgate/internal/model"
)

// Config carries the throttle constants.
type Config struct {
	// Window is the sliding window for both aggregate and same-content caps.
	Window time.Duration
	// MaxPerWindow caps total requests inside the window.
	MaxPerWindow int
	// SameContentLimit caps repeats of one normalized content key.
	SameContentLimit int
	// RandomKey is the distinguished content key exempt from SameContentLimit.
	RandomKey string
	// RandomLimit caps the distinguished random key instead.
	RandomLimit int
	// BufferTime is the cooldown entered when any rule trips.
	BufferTime time.Duration
}

// Verdict is the outcome of a throttle check.
type Verdict struct {
	Allowed bool
	Reason  model.RejectReason
	// RetryAfter is the advisory cooldown remaining on rejection.
	RetryAfter time.Duration
}

// Governor holds throttle state per identity. Each identity's state sits
// behind its own mutex so distinct identities never contend; the outer lock
// only guards the map itself.
type Governor struct {
	cfg Config
	clk clock.Clock

	mu      sync.RWMutex
	entries map[model.Identity]*entry
}

type entry struct {
	mu sync.Mutex
	// timestamps of recent requests, oldest first; pruned lazily on access.
	timestamps []time.Time
	// patterns maps normalized content keys to their recent request instants.
	patterns map[string][]time.Time
	// lastBuffer is when the identity most recently tripped a rule.
	lastBuffer time.Time
}

// New constructs a Governor.
func New(cfg Config, clk clock.Clock) *Governor {
	return &Governor{
		cfg:     cfg,
		clk:     clk,
		entries: make(map[model.Identity]*entry),
	}
}

// Check runs the throttle rules for one request. The order is fixed:
// cooldown first and unconditionally, then same-content, then the aggregate
// cap, so a cooled-down identity cannot evade the buffer with empty content
// and phrase-spam keeps its own attributable reason.
func (g *Governor) Check(id model.Identity, content string) Verdict {
	e := g.entry(id)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := g.clk.Now()

	if inBuffer := now.Sub(e.lastBuffer); inBuffer < g.cfg.BufferTime && !e.lastBuffer.IsZero() {
		return Verdict{Reason: model.ReasonInCooldown, RetryAfter: g.cfg.BufferTime - inBuffer}
	}

	e.timestamps = pruneBefore(e.timestamps, now.Add(-g.cfg.Window))

	if key := NormalizeContent(content); key != "" {
		cutoff := now.Add(-g.cfg.Window)
		e.patterns[key] = pruneBefore(e.patterns[key], cutoff)

		limit, reason := g.cfg.SameContentLimit, model.ReasonSameContent
		if key == g.cfg.RandomKey {
			// The whole-library random action repeats one key by design and
			// gets its own, larger cap.
			limit, reason = g.cfg.RandomLimit, model.ReasonTooFrequent
		}
		if len(e.patterns[key]) >= limit {
			e.lastBuffer = now
			return Verdict{Reason: reason, RetryAfter: g.cfg.BufferTime}
		}
		e.patterns[key] = append(e.patterns[key], now)
	}

	if len(e.timestamps) >= g.cfg.MaxPerWindow {
		e.lastBuffer = now
		return Verdict{Reason: model.ReasonTooFrequent, RetryAfter: g.cfg.BufferTime}
	}

	e.timestamps = append(e.timestamps, now)
	return Verdict{Allowed: true}
}

// Sweep evicts identities whose window and pattern state is empty and whose
// cooldown expired at least 2×BufferTime ago, bounding memory. It takes the
// same per-identity locks as live requests, never a global one across the
// whole pass.
func (g *Governor) Sweep() int {
	now := g.clk.Now()
	cutoff := now.Add(-2 * g.cfg.Window)

	g.mu.RLock()
	ids := make([]model.Identity, 0, len(g.entries))
	for id := range g.entries {
		ids = append(ids, id)
	}
	g.mu.RUnlock()

	evicted := 0
	for _, id := range ids {
		g.mu.RLock()
		e, ok := g.entries[id]
		g.mu.RUnlock()
		if !ok {
			continue
		}

		e.mu.Lock()
		e.timestamps = pruneBefore(e.timestamps, cutoff)
		for key, ts := range e.patterns {
			ts = pruneBefore(ts, cutoff)
			if len(ts) == 0 {
				delete(e.patterns, key)
			} else {
				e.patterns[key] = ts
			}
		}
		idle := len(e.timestamps) == 0 && len(e.patterns) == 0 &&
			now.Sub(e.lastBuffer) > 2*g.cfg.BufferTime
		e.mu.Unlock()

		if idle {
			g.mu.Lock()
			delete(g.entries, id)
			g.mu.Unlock()
			evicted++
		}
	}
	return evicted
}

// Reset drops all throttle state (admin limits reset).
func (g *Governor) Reset() {
	g.mu.Lock()
	g.entries = make(map[model.Identity]*entry)
	g.mu.Unlock()
}

func (g *Governor) entry(id model.Identity) *entry {
	g.mu.RLock()
	e, ok := g.entries[id]
	g.mu.RUnlock()
	if ok {
		return e
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok = g.entries[id]; ok {
		return e
	}
	e = &entry{patterns: make(map[string][]time.Time)}
	g.entries[id] = e
	return e
}

// NormalizeContent folds request text into a content key: trimmed and
// case-folded. Empty content yields an empty key and skips content checks.
func NormalizeContent(content string) string {
	return strings.ToLower(strings.TrimSpace(content))
}

func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}
