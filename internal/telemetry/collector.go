// Package telemetry records what an ingestion pass did: how many
// objects of each class streamed by, how many dependent records were
// dropped, and how long the pass took. Counters accumulate in memory
// during the single-threaded pass and are flushed to SQLite at the end.
package telemetry

import "time"

// Drop reasons. Dependent records with an unresolvable parent are
// dropped rather than aborting the pass.
const (
	DropAttachmentNoParent = "attachment-without-parent"
	DropPermissionNoSpace  = "permission-without-space"
	DropMembershipNoGroup  = "membership-without-group"
	DropObjectNoID         = "object-without-id"
)

// Stats is the outcome of one ingestion pass.
type Stats struct {
	StartedAt time.Time
	Duration  time.Duration
	// Objects counts handled objects per class discriminator.
	Objects map[string]int64
	// Dropped counts discarded dependent records per reason.
	Dropped map[string]int64
}

// Total returns the number of handled objects across all classes.
func (s *Stats) Total() int64 {
	var n int64
	for _, c := range s.Objects {
		n += c
	}
	return n
}

// Collector accumulates pass counters. It is not safe for concurrent
// use; ingestion is strictly sequential.
type Collector struct {
	started time.Time
	objects map[string]int64
	dropped map[string]int64
}

// NewCollector starts a collector for a pass beginning now.
func NewCollector() *Collector {
	return &Collector{
		started: time.Now(),
		objects: make(map[string]int64),
		dropped: make(map[string]int64),
	}
}

// Object counts one handled object of the given class.
func (c *Collector) Object(class string) {
	c.objects[class]++
}

// Drop counts one discarded record for the given reason.
func (c *Collector) Drop(reason string) {
	c.dropped[reason]++
}

// Finish freezes the counters into a Stats snapshot.
func (c *Collector) Finish() *Stats {
	return &Stats{
		StartedAt: c.started,
		Duration:  time.Since(c.started),
		Objects:   c.objects,
		Dropped:   c.dropped,
	}
}
