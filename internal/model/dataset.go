package model

import "time"

// Destination is a replication target of a dataset. LastSyncTime and
// CurrentTaskID are runtime-only and never come from the config file; the
// reloader carries them across config swaps by identity.
type Destination struct {
	RemoteHost    string
	RemoteDataset string
	Enabled       bool

	LastSyncTime  *time.Time
	CurrentTaskID string
}

// IsLocalOnly reports whether the destination describes local snapshots with
// no remote replication.
func (d *Destination) IsLocalOnly() bool {
	return d.RemoteHost == ""
}

// TargetDataset returns the dataset name on the remote side, falling back to
// the local name when no override is configured.
func (d *Destination) TargetDataset(local string) string {
	if d.RemoteDataset != "" {
		return d.RemoteDataset
	}
	return local
}

// Matches reports whether other names the same destination: same remote host
// and same effective remote dataset under the given local dataset name.
func (d *Destination) Matches(other *Destination, local string) bool {
	return d.RemoteHost == other.RemoteHost &&
		d.TargetDataset(local) == other.TargetDataset(local)
}

// Dataset is a locally managed dataset with its replication destinations.
// Snapshots and LastSnapshotTime are refreshed from the storage API each
// cycle.
type Dataset struct {
	Name         string
	Active       bool
	Destinations []*Destination

	Snapshots        map[Tier][]string
	LastSnapshotTime *time.Time
}

// HasRemoteDestinations reports whether any enabled destination replicates to
// a remote host.
func (ds *Dataset) HasRemoteDestinations() bool {
	for _, dest := range ds.Destinations {
		if dest.Enabled && !dest.IsLocalOnly() {
			return true
		}
	}
	return false
}

// EnabledDestinations returns the enabled destinations in configuration order.
func (ds *Dataset) EnabledDestinations() []*Destination {
	out := make([]*Destination, 0, len(ds.Destinations))
	for _, dest := range ds.Destinations {
		if dest.Enabled {
			out = append(out, dest)
		}
	}
	return out
}

// FindDestination returns the destination matching want by identity, or nil.
func (ds *Dataset) FindDestination(want *Destination) *Destination {
	for _, dest := range ds.Destinations {
		if dest.Matches(want, ds.Name) {
			return dest
		}
	}
	return nil
}
