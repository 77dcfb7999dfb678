package helpers

import (
	"sync/atomic"
	"time"
)

// Limited exponential backoff for retry delays.
// First Failure() returns Min, each next one multiplies by K up to Max.
// K<=1 or Min=Max gives fixed delay.
// Reset() after success starts over from Min.
type Backoff struct {
	next int64 // atomic align

	Min time.Duration
	Max time.Duration
	K   float32
	Res time.Duration // delay resolution for nice logs, default=1ms
}

// Use scenario:
// for {
//   if err := op(); err != nil {
//     time.Sleep(backoff.Failure())
//     continue
//   }
//   backoff.Reset()
// }
func (b *Backoff) Failure() time.Duration {
	next := time.Duration(atomic.LoadInt64(&b.next))
	if next == 0 {
		next = b.Min
	} else if b.K > 1 {
		next = time.Duration(float32(next) * b.K)
	}
	next = b.limit(next)
	atomic.StoreInt64(&b.next, int64(next))
	return next
}

// Peek returns delay which next Failure() would return without changing state.
func (b *Backoff) Peek() time.Duration {
	next := time.Duration(atomic.LoadInt64(&b.next))
	if next == 0 {
		return b.limit(b.Min)
	}
	if b.K > 1 {
		next = time.Duration(float32(next) * b.K)
	}
	return b.limit(next)
}

func (b *Backoff) Reset() {
	atomic.StoreInt64(&b.next, 0)
}

func (b *Backoff) limit(d time.Duration) time.Duration {
	if d < b.Min {
		d = b.Min
	}
	if b.Max >= b.Min && d > b.Max {
		d = b.Max
	}
	return b.round(d)
}

func (b *Backoff) round(d time.Duration) time.Duration {
	res := b.Res
	if res == 0 {
		res = 1 * time.Millisecond
	}
	return d / res * res
}
