package helpers

import (
	"sync/atomic"
	"time"
)

// Limited exponential backoff for retry delays.
// Failure() returns current delay and multiplies next one by K, limited by Max.
// Reset() after success, next Failure() returns Min again.
//
// Use scenario:
// for {
//   if err := op(); err == nil {
//     backoff.Reset()
//   } else {
//     time.Sleep(backoff.Failure())
//   }
// }
type Backoff struct {
	next int64 // atomic align

	Min time.Duration
	Max time.Duration
	K   float32
	Res time.Duration // delay resolution for nice logs, default=1ms
}

func (b *Backoff) Failure() time.Duration {
	for {
		cur := atomic.LoadInt64(&b.next)
		delay := b.limit(time.Duration(cur))
		next := b.limit(time.Duration(float64(delay) * float64(b.K)))
		if atomic.CompareAndSwapInt64(&b.next, cur, int64(next)) {
			return delay
		}
	}
}

// Next returns delay that following Failure() would return, without changing state.
func (b *Backoff) Next() time.Duration {
	return b.limit(time.Duration(atomic.LoadInt64(&b.next)))
}

func (b *Backoff) Reset() {
	atomic.StoreInt64(&b.next, 0)
}

func (b *Backoff) limit(d time.Duration) time.Duration {
	if d < b.Min {
		d = b.Min
	}
	if b.Max != 0 && d > b.Max {
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
