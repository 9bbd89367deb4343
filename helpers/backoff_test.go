package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		steps  func(b *Backoff) []time.Duration
		expect []time.Duration
	}{
		{"fresh-three-failures", func(b *Backoff) []time.Duration {
			return []time.Duration{b.Failure(), b.Failure(), b.Failure()}
		}, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}},
		{"reset-after-success", func(b *Backoff) []time.Duration {
			b.Failure()
			b.Failure()
			b.Failure()
			b.Reset()
			return []time.Duration{b.Failure()}
		}, []time.Duration{1 * time.Second}},
		{"cap", func(b *Backoff) []time.Duration {
			ds := make([]time.Duration, 0, 8)
			for i := 0; i < 8; i++ {
				ds = append(ds, b.Failure())
			}
			return ds
		}, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
			16 * time.Second, 32 * time.Second, 60 * time.Second, 60 * time.Second}},
		{"next-is-peek", func(b *Backoff) []time.Duration {
			b.Failure()
			return []time.Duration{b.Next(), b.Next(), b.Failure()}
		}, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			b := &Backoff{Min: time.Second, Max: time.Minute, K: 2, Res: time.Second}
			assert.Equal(t, c.expect, c.steps(b))
		})
	}
}
