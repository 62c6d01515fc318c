package synccounter

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementN(t *testing.T) {
	c := New(41)
	for i := 1; i <= 10; i++ {
		assert.Equal(t, int64(41+i), c.Increment())
	}
	assert.Equal(t, int64(51), c.Current())
}

func TestConcurrentIncrements(t *testing.T) {
	c := New(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Increment()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5000), c.Current())
}

func TestWrapsAtMaxValue(t *testing.T) {
	c := New(MaxValue - 1)
	assert.Equal(t, MaxValue, c.Increment())
	assert.Equal(t, int64(0), c.Increment())
	assert.Equal(t, int64(1), c.Increment())
}

func TestNewRandomInRange(t *testing.T) {
	for i := 0; i < 20; i++ {
		v := NewRandom().Current()
		require.GreaterOrEqual(t, v, int64(0))
		require.Less(t, v, int64(randomStartRange))
	}
}

func TestReset(t *testing.T) {
	c := New(10)

	v := int64(3)
	assert.Equal(t, int64(3), c.Reset(&v))
	assert.Equal(t, int64(3), c.Current())

	got := c.Reset(nil)
	assert.Equal(t, got, c.Current())
	assert.Less(t, got, int64(randomStartRange))
}

func TestNegativeStartIsFolded(t *testing.T) {
	assert.Equal(t, int64(5), New(-5).Current())
}

func TestExtremeStartsStayInRange(t *testing.T) {
	assert.Equal(t, int64(0), New(math.MinInt64).Current())
	assert.Equal(t, MaxValue, New(math.MaxInt64).Current())
	assert.Equal(t, int64(1), New(-(MaxValue + 2)).Current())

	c := New(3)
	v := int64(math.MinInt64)
	assert.Equal(t, int64(0), c.Reset(&v))
}
