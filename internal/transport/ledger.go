package transport

import "time"

// Ledger records request send times inside a trailing window. It is a
// fixed-capacity ring buffer: memory never grows past the configured cap and
// the oldest entry is always at head.
//
// Ledger is not safe for concurrent use; Client guards it with a mutex.
type Ledger struct {
	window time.Duration
	buf    []time.Time
	head   int
	n      int
}

// NewLedger returns a ledger that holds at most capacity entries younger than
// window.
func NewLedger(capacity int, window time.Duration) *Ledger {
	if capacity < 1 {
		capacity = 1
	}
	return &Ledger{window: window, buf: make([]time.Time, capacity)}
}

// Prune drops every entry that is window or more older than now.
func (l *Ledger) Prune(now time.Time) {
	cutoff := now.Add(-l.window)
	for l.n > 0 && !l.buf[l.head].After(cutoff) {
		l.buf[l.head] = time.Time{}
		l.head = (l.head + 1) % len(l.buf)
		l.n--
	}
}

// Record appends t. When the buffer is full the oldest entry is evicted;
// callers that respect Full never hit that path.
func (l *Ledger) Record(t time.Time) {
	if l.n == len(l.buf) {
		l.head = (l.head + 1) % len(l.buf)
		l.n--
	}
	l.buf[(l.head+l.n)%len(l.buf)] = t
	l.n++
}

// Len is the number of recorded entries. Call Prune first for an accurate
// in-window count.
func (l *Ledger) Len() int { return l.n }

// Cap is the maximum number of entries allowed inside one window.
func (l *Ledger) Cap() int { return len(l.buf) }

// Full reports whether another request would exceed the cap.
func (l *Ledger) Full() bool { return l.n >= len(l.buf) }

// Oldest returns the earliest recorded entry.
func (l *Ledger) Oldest() (time.Time, bool) {
	if l.n == 0 {
		return time.Time{}, false
	}
	return l.buf[l.head], true
}

// Latest returns the most recent recorded entry.
func (l *Ledger) Latest() (time.Time, bool) {
	if l.n == 0 {
		return time.Time{}, false
	}
	return l.buf[(l.head+l.n-1)%len(l.buf)], true
}

// Window is the trailing interval the ledger tracks.
func (l *Ledger) Window() time.Duration { return l.window }
