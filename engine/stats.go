package engine

import "sync/atomic"

// Stats are per-engine request counters, safe for the concurrent
// worker pool.
type Stats struct {
	packetsIn      atomic.Uint64
	packetsOut     atomic.Uint64
	decodeFailures atomic.Uint64
	badCommunities atomic.Uint64
	accessDenied   atomic.Uint64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	PacketsIn      uint64
	PacketsOut     uint64
	DecodeFailures uint64
	BadCommunities uint64
	AccessDenied   uint64
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		PacketsIn:      s.packetsIn.Load(),
		PacketsOut:     s.packetsOut.Load(),
		DecodeFailures: s.decodeFailures.Load(),
		BadCommunities: s.badCommunities.Load(),
		AccessDenied:   s.accessDenied.Load(),
	}
}
