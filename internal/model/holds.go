package model

// SnapshotHolds pairs a snapshot with its hold tags. Slices of it keep the
// snapshot listing order, which cleanup relies on for picking the newest
// sync hold per host.
type SnapshotHolds struct {
	Snapshot string   `json:"snapshot"`
	Tags     []string `json:"tags"`
}

// HoldRelease identifies one hold to remove from one snapshot.
type HoldRelease struct {
	Snapshot string
	Tag      string
}
