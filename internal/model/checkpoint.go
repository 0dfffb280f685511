package model

import "time"

// CheckpointSchemaVersion is written into every persisted checkpoint file
// and checked on read; a mismatched (future) version is treated like
// corruption by the state store.
const CheckpointSchemaVersion = 1

// ClockSkewTolerance is subtracted from the checkpoint when computing the
// inclusive lower bound of a collection window, so that clock drift between
// the controller and this host never causes an event to be dropped.
const ClockSkewTolerance = 5 * time.Minute

// Checkpoint is the state persisted between runs.
type Checkpoint struct {
	SchemaVersion          int       `json:"schema_version"`
	LastDeliveredEventTime time.Time `json:"last_delivered_event_time"`
}

// Present reports whether a checkpoint carries a real high-water mark, as
// opposed to the zero-value "absent" state used on first run or after a
// corrupted read.
func (c Checkpoint) Present() bool { return !c.LastDeliveredEventTime.IsZero() }

// WindowStart computes the inclusive lower bound of the next collection
// window, applying the clock-skew tolerance.
func (c Checkpoint) WindowStart() time.Time {
	if !c.Present() {
		return time.Time{}
	}
	return c.LastDeliveredEventTime.Add(-ClockSkewTolerance)
}
