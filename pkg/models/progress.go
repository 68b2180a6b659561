package models

import "time"

// ProgressEvent is a streamed state delta for one audit (spec §3
// ProgressEvent, §4.7 Job Manager).
type ProgressEvent struct {
	AuditID    int64
	Stage      string
	Progress   int
	Message    string
	Status     Status // optional: set only on a status transition
	Seq        uint64 // monotonically increasing per audit
	Timestamp  time.Time
	Dropped    uint64 // set by the bus when ring-buffer overflow skipped events before this one
	Heartbeat  bool
}
