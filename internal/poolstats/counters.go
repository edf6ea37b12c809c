// Package poolstats tracks reuse of the sync.Pool-backed buffers the replay
// core uses to decode fixed-width records out of the memory-mapped trace
// artifact (§4.1), counting how much garbage decoding a large recording
// actually produces. No metric or log line reads the counters.
package poolstats

import "sync/atomic"

// PoolCounters track operations on a sync.Pool for a specific type.
type PoolCounters struct {
	Get   atomic.Uint64
	Alloc atomic.Uint64
	Put   atomic.Uint64
	Lost  atomic.Uint64
}

// ReusePercent returns the percent (0..100) reuse of the pool type.
func (pc *PoolCounters) ReusePercent() float64 {
	var (
		get   = pc.Get.Load()
		alloc = pc.Alloc.Load()
		reuse = get - alloc
	)
	if get <= 0 {
		return 0.0
	}
	return 100 * float64(reuse) / float64(get)
}

// Values returns the current values of the counters.
func (pc *PoolCounters) Values() (get, alloc, put, lost uint64, reuse float64) {
	var (
		g = pc.Get.Load()
		a = pc.Alloc.Load()
		p = pc.Put.Load()
		l = pc.Lost.Load()
		r = pc.ReusePercent()
	)
	return g, a, p, l, r
}

var (
	// StepRecordCounters tracks the pool of decoded Step records reused
	// across stepByTick/stepsInFunction calls.
	StepRecordCounters PoolCounters

	// ValueSnapshotCounters is reserved for Value snapshot buffers; valueAt
	// uses no pool, so nothing updates it.
	ValueSnapshotCounters PoolCounters

	// EventRecordCounters is reserved for Event records; eventsInRange uses
	// no pool, so nothing updates it.
	EventRecordCounters PoolCounters
)
