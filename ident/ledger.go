package ident

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EntryKind labels what a ledger entry was minted as.
type EntryKind string

const (
	KindSessionID EntryKind = "session_id"
	KindLinkCode  EntryKind = "link_code"
)

// Entry records one minted identifier or code for collision avoidance and
// entropy auditing.
type Entry struct {
	ID       string    `json:"id"`
	Kind     EntryKind `json:"kind"`
	Value    string    `json:"value"`
	Entropy  float64   `json:"entropy"`
	MintedAt time.Time `json:"minted_at"`
}

// Ledger is a bounded ring of minted values. Once capacity is reached the
// oldest entry is evicted. Membership checks are O(1).
type Ledger struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
	head     int
	size     int
	present  map[string]int // value -> live count (regenerated codes can repeat)
}

// NewLedger creates a ledger holding at most capacity entries.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ledger{
		capacity: capacity,
		entries:  make([]Entry, capacity),
		present:  make(map[string]int),
	}
}

// Record appends a minted value, evicting the oldest entry if full, and
// returns the recorded entry.
func (l *Ledger) Record(kind EntryKind, value string, entropy float64) Entry {
	entry := Entry{
		ID:       uuid.NewString(),
		Kind:     kind,
		Value:    value,
		Entropy:  entropy,
		MintedAt: time.Now().UTC(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	idx := (l.head + l.size) % l.capacity
	if l.size == l.capacity {
		evicted := l.entries[l.head]
		if n := l.present[evicted.Value]; n <= 1 {
			delete(l.present, evicted.Value)
		} else {
			l.present[evicted.Value] = n - 1
		}
		l.head = (l.head + 1) % l.capacity
	} else {
		l.size++
	}
	l.entries[idx] = entry
	l.present[value]++
	return entry
}

// Contains reports whether value is still held by the ledger.
func (l *Ledger) Contains(value string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.present[value] > 0
}

// Len returns the number of live entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Snapshot returns the live entries, oldest first.
func (l *Ledger) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, l.size)
	for i := 0; i < l.size; i++ {
		out = append(out, l.entries[(l.head+i)%l.capacity])
	}
	return out
}
