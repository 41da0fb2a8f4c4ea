package model

import (
	"time"

	"gorm.io/gorm"
)

type EventKind string

const (
	EventSnapshotCreated    EventKind = "SNAPSHOT_CREATED"
	EventSnapshotFailed     EventKind = "SNAPSHOT_FAILED"
	EventMigrationStarted   EventKind = "MIGRATION_STARTED"
	EventMigrationCompleted EventKind = "MIGRATION_COMPLETED"
	EventMigrationFailed    EventKind = "MIGRATION_FAILED"
	EventConfigReloaded     EventKind = "CONFIG_RELOADED"
	EventCycleError         EventKind = "CYCLE_ERROR"
)

// Event is one orchestration outcome, kept in the local history store.
type Event struct {
	gorm.Model
	Kind       EventKind `gorm:"not null"`
	Dataset    string
	Target     string
	Detail     string
	OccurredAt time.Time `gorm:"not null"`
}

// Failed reports whether the event records a failure.
func (e Event) Failed() bool {
	return e.Kind == EventSnapshotFailed || e.Kind == EventMigrationFailed || e.Kind == EventCycleError
}
