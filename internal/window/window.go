// Package window provides a bounded, time-ordered rolling buffer of price
// samples for one asset. When full, appending evicts the oldest sample.
package window

import (
	"time"

	"pricewatch/internal/model"
)

// Window is a circular buffer of samples ordered by strictly increasing
// timestamp. It is not internally synchronized; the owning store guards it.
type Window struct {
	buf   []model.Sample
	mask  int
	start int // index of oldest sample
	count int
}

// New creates a window. capacity is rounded up to the next power of two.
// Minimum capacity is 2.
func New(capacity int) *Window {
	cap := nextPow2(capacity)
	if cap < 2 {
		cap = 2
	}
	return &Window{
		buf:  make([]model.Sample, cap),
		mask: cap - 1,
	}
}

// Append adds a sample, keeping timestamps strictly increasing:
//   - newer than the last sample: appended (evicting the oldest when full)
//   - equal timestamp: overwrites the last sample (last write wins)
//   - older than the last sample: ignored
//
// Returns true if the window changed.
func (w *Window) Append(s model.Sample) bool {
	if w.count > 0 {
		last := w.at(w.count - 1)
		if s.TS.Before(last.TS) {
			return false
		}
		if s.TS.Equal(last.TS) {
			w.buf[(w.start+w.count-1)&w.mask] = s
			return true
		}
	}

	if w.count == len(w.buf) {
		// Full: evict oldest
		w.start = (w.start + 1) & w.mask
		w.count--
	}
	w.buf[(w.start+w.count)&w.mask] = s
	w.count++
	return true
}

// Len returns the number of retained samples.
func (w *Window) Len() int { return w.count }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// At returns the i-th retained sample, oldest first.
func (w *Window) At(i int) model.Sample { return w.at(i) }

// Last returns the newest sample. ok is false when the window is empty.
func (w *Window) Last() (model.Sample, bool) {
	if w.count == 0 {
		return model.Sample{}, false
	}
	return w.at(w.count - 1), true
}

// LastTS returns the newest sample's timestamp, or the zero time when empty.
func (w *Window) LastTS() time.Time {
	s, ok := w.Last()
	if !ok {
		return time.Time{}
	}
	return s.TS
}

// Slice copies the retained samples into a new slice, oldest first.
func (w *Window) Slice() []model.Sample {
	out := make([]model.Sample, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.at(i)
	}
	return out
}

// Tail copies the newest n samples, oldest first. If fewer than n are
// retained, all of them are returned.
func (w *Window) Tail(n int) []model.Sample {
	if n > w.count {
		n = w.count
	}
	out := make([]model.Sample, n)
	for i := 0; i < n; i++ {
		out[i] = w.at(w.count - n + i)
	}
	return out
}

func (w *Window) at(i int) model.Sample {
	return w.buf[(w.start+i)&w.mask]
}

// nextPow2 returns the smallest power of 2 >= n.
func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
