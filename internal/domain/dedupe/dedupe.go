// Package dedupe remembers recently ingested shot identities so that a shot
// re-sent by the launch monitor is not broadcast twice.
package dedupe

import (
	"context"
	"sync"
)

const defaultMaxSize = 4096

// Deduper records seen shot identities.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a re-send is accepted again. Used when a shot
	// was recorded but could not be delivered.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// ringDeduper keeps the last maxSize identities in a ring; the oldest entry
// is overwritten first.
type ringDeduper struct {
	mu      sync.Mutex
	maxSize int
	slots   []string
	next    int
	seen    map[string]int // id -> slot
}

// NewInMemoryDeduper creates a bounded in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &ringDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.slots = make([]string, d.maxSize)
	d.seen = make(map[string]int, d.maxSize)
	return d
}

func (d *ringDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if old := d.slots[d.next]; old != "" {
		if slot, ok := d.seen[old]; ok && slot == d.next {
			delete(d.seen, old)
		}
	}
	d.slots[d.next] = id
	d.seen[id] = d.next
	d.next = (d.next + 1) % d.maxSize
	return false
}

func (d *ringDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot, ok := d.seen[id]
	if !ok {
		return
	}
	delete(d.seen, id)
	d.slots[slot] = ""
}

func (d *ringDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
