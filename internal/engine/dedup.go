package engine

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"
)

type dedupEntry struct {
	fp string
	at time.Time
}

// Deduper is a sliding-window duplicate gate shared by all capture
// sessions. It keeps an ordered queue of (fingerprint, insertion time)
// plus a membership index; entries expire by window age and by capacity,
// whichever triggers first. Safe for concurrent use.
type Deduper struct {
	mu         sync.Mutex
	window     time.Duration
	maxEntries int
	entries    []dedupEntry
	index      map[string]struct{}

	now func() time.Time // replaced in tests
}

// NewDeduper creates a gate with the given window and capacity.
func NewDeduper(window time.Duration, maxEntries int) *Deduper {
	return &Deduper{
		window:     window,
		maxEntries: maxEntries,
		index:      make(map[string]struct{}),
		now:        time.Now,
	}
}

// Fingerprint hashes (route, status, body length), not the body content.
// Two distinct bodies of equal length on the same route within the window
// collide and the later one is dropped; the list-route override upstream
// bounds the damage.
func Fingerprint(route string, status int64, bodyLen int) string {
	h := sha1.New()
	h.Write([]byte(route))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(status))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(bodyLen))
	h.Write(buf[:])
	return hex.EncodeToString(h.Sum(nil))
}

// Admit reports whether the fingerprint is fresh. Every call first evicts
// entries older than the window, so the structure is mutated on rejected
// calls too. A fresh fingerprint is recorded; if that pushes the queue past
// capacity the oldest entry is evicted regardless of age.
func (d *Deduper) Admit(fp string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for len(d.entries) > 0 && now.Sub(d.entries[0].at) > d.window {
		delete(d.index, d.entries[0].fp)
		d.entries = d.entries[1:]
	}

	if _, dup := d.index[fp]; dup {
		return false
	}

	d.entries = append(d.entries, dedupEntry{fp: fp, at: now})
	d.index[fp] = struct{}{}
	if len(d.entries) > d.maxEntries {
		delete(d.index, d.entries[0].fp)
		d.entries = d.entries[1:]
	}
	return true
}

// Len reports the current number of live entries.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
