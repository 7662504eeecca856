// Package history keeps a bounded, in-memory record of recent decisions.
package history

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/butekinselcuk/sepettakip/internal/policy"
)

// Kind is the type of request an entry records
type Kind string

const (
	KindCancellation Kind = "cancellation"
	KindRefund       Kind = "refund"
)

// Entry is one recorded decision
type Entry struct {
	Kind       Kind            `json:"kind"`
	OrderID    uuid.UUID       `json:"order_id"`
	BusinessID uuid.UUID       `json:"business_id"`
	Decision   policy.Decision `json:"decision"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Log is a size-bounded list of entries, newest first.
// Safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries *list.List
	maxSize int
	total   uint64
}

// New creates a Log holding at most maxSize entries. A non-positive size disables recording.
func New(maxSize int) *Log {
	return &Log{
		entries: list.New(),
		maxSize: maxSize,
	}
}

// Add records e, evicting the oldest entry when full
func (l *Log) Add(e Entry) {
	if l.maxSize <= 0 {
		return
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries.PushFront(e)
	l.total++
	for l.entries.Len() > l.maxSize {
		l.entries.Remove(l.entries.Back())
	}
}

// Recent returns up to n entries, newest first. n <= 0 returns everything held.
func (l *Log) Recent(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > l.entries.Len() {
		n = l.entries.Len()
	}
	out := make([]Entry, 0, n)
	for el := l.entries.Front(); el != nil && len(out) < n; el = el.Next() {
		out = append(out, el.Value.(Entry))
	}
	return out
}

// RecentForBusiness returns up to n entries of one business, newest first
func (l *Log) RecentForBusiness(businessID uuid.UUID, n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := []Entry{}
	for el := l.entries.Front(); el != nil; el = el.Next() {
		e := el.Value.(Entry)
		if e.BusinessID != businessID {
			continue
		}
		out = append(out, e)
		if n > 0 && len(out) == n {
			break
		}
	}
	return out
}

// Stats reports the log's occupancy
type Stats struct {
	Size    int    `json:"size"`
	MaxSize int    `json:"max_size"`
	Total   uint64 `json:"total"` // entries ever added
}

// Stats returns the current occupancy
func (l *Log) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return Stats{
		Size:    l.entries.Len(),
		MaxSize: l.maxSize,
		Total:   l.total,
	}
}
