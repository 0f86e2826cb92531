package observability

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounters_ConcurrentIncrements(t *testing.T) {
	c := NewCounters()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Inc(AlertsSuppressed)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(8000), c.Get(AlertsSuppressed))
	assert.Equal(t, int64(0), c.Get(AlertsPersisted))
}

func TestCounters_Snapshot(t *testing.T) {
	c := NewCounters()
	c.Add(EventsAccepted, 5)
	c.Inc(EventsMalformed)

	snap := c.Snapshot()
	assert.Equal(t, map[string]int64{EventsAccepted: 5, EventsMalformed: 1}, snap)

	var nilCounters *Counters
	nilCounters.Inc(EventsAccepted)
	assert.Empty(t, nilCounters.Snapshot())
}
