// Package metrics records counters from the trace build pipeline: remote
// record fetches, cache hits, heuristic fixes applied and checker violations,
// plus overall build timing.
package metrics

import "time"

// Recorder receives pipeline events. Implementations must tolerate
// concurrent use. Callers that do not report metrics pass Nop.
type Recorder interface {
	// RecordFetch counts a remote record fetch by record kind.
	RecordFetch(kind string)
	// RecordCacheHit counts a record served from the local cache.
	RecordCacheHit(kind string)
	// RecordRepair counts a heuristic fix applied by the named rule.
	RecordRepair(rule string)
	// RecordViolation counts a checker violation by severity.
	RecordViolation(severity string)
	// ObserveBuild records the duration and outcome of one trace build.
	ObserveBuild(duration time.Duration, ok bool)
}

// Nop discards all events.
type Nop struct{}

func (Nop) RecordFetch(string)               {}
func (Nop) RecordCacheHit(string)            {}
func (Nop) RecordRepair(string)              {}
func (Nop) RecordViolation(string)           {}
func (Nop) ObserveBuild(time.Duration, bool) {}
