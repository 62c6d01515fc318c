// Package synccounter holds the process-wide shuffle seed shared by every display.
package synccounter

import (
	"math/rand/v2"
	"sync"
)

// MaxValue is the largest integer a JSON number carries exactly. Incrementing past it
// wraps to zero.
const MaxValue int64 = 1<<53 - 1

// randomStartRange bounds the random initial value
const randomStartRange = 1_000_000

// Counter is a monotonically increasing integer, safe for concurrent use
type Counter struct {
	mu    sync.Mutex
	value int64
}

// New creates a counter starting at start
func New(start int64) *Counter {
	return &Counter{value: normalize(start)}
}

// NewRandom creates a counter starting at a random value
func NewRandom() *Counter {
	return New(randomStart())
}

// Increment advances the counter and returns the new value
func (c *Counter) Increment() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.value >= MaxValue {
		c.value = 0
	} else {
		c.value++
	}
	return c.value
}

// Current returns the counter without changing it
func (c *Counter) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Reset sets the counter to *value, or to a fresh random start when value is nil
func (c *Counter) Reset(value *int64) int64 {
	next := randomStart()
	if value != nil {
		next = normalize(*value)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = next
	return c.value
}

func randomStart() int64 {
	return rand.Int64N(randomStartRange)
}

// normalize folds out of range values into [0, MaxValue]
func normalize(v int64) int64 {
	// reduce before negating; -math.MinInt64 overflows
	v %= MaxValue + 1
	if v < 0 {
		v = -v
	}
	return v
}
