// Package observability tracks engine counters for the system endpoints.
package observability

import (
	"sync"
	"sync/atomic"
)

// Counter names.
const (
	EventsAccepted        = "events_accepted"
	EventsMalformed       = "events_malformed"
	EventsDropped         = "events_dropped_backpressure"
	EventsInactiveCamera  = "events_inactive_camera"
	EventsStale           = "events_out_of_order"
	EventsPersistFailed   = "events_persist_failed"
	AlertsPersisted       = "alerts_persisted"
	AlertsSuppressed      = "alerts_suppressed"
	AlertsDropped         = "alerts_dropped_after_retries"
	AlertsAcknowledged    = "alerts_acknowledged"
	TracksEvicted         = "tracks_evicted"
	GalleryUnavailable    = "suspect_gallery_unavailable"
	FanoutDisconnects     = "fanout_slow_consumer_disconnects"
	AggregationBuckets    = "aggregation_buckets_written"
	AggregationFailures   = "aggregation_failures"
	WorkerPanicsRecovered = "worker_panics_recovered"
)

// Counters is a set of named monotonic counters. Safe for concurrent use.
type Counters struct {
	values sync.Map // name -> *int64
}

// NewCounters creates an empty counter set.
func NewCounters() *Counters {
	return &Counters{}
}

// Inc adds one to the named counter.
func (c *Counters) Inc(name string) {
	c.Add(name, 1)
}

// Add adds delta to the named counter.
func (c *Counters) Add(name string, delta int64) {
	if c == nil {
		return
	}
	v, _ := c.values.LoadOrStore(name, new(int64))
	atomic.AddInt64(v.(*int64), delta)
}

// Get returns the current value of the named counter.
func (c *Counters) Get(name string) int64 {
	if c == nil {
		return 0
	}
	v, ok := c.values.Load(name)
	if !ok {
		return 0
	}
	return atomic.LoadInt64(v.(*int64))
}

// Snapshot returns a copy of every counter.
func (c *Counters) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	if c == nil {
		return out
	}
	c.values.Range(func(k, v interface{}) bool {
		out[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})
	return out
}
