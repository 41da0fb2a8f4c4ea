package daemon

import (
	"time"
	"zback/internal/config"
	"zback/internal/model"
)

type DestinationStatus struct {
	RemoteHost    string     `json:"remote_host"`
	RemoteDataset string     `json:"remote_dataset"`
	Enabled       bool       `json:"enabled"`
	LastSync      *time.Time `json:"last_sync"`
	TaskID        string     `json:"task_id,omitempty"`
}

type DatasetStatus struct {
	Name         string              `json:"name"`
	Active       bool                `json:"active"`
	LastSnapshot *time.Time          `json:"last_snapshot"`
	Snapshots    map[model.Tier]int  `json:"snapshots"`
	Destinations []DestinationStatus `json:"destinations"`
}

type DaemonStatus struct {
	StartedAt        time.Time       `json:"started_at"`
	Cycles           uint64          `json:"cycles"`
	LastCycleAt      *time.Time      `json:"last_cycle_at"`
	ActiveMigrations int             `json:"active_migrations"`
	Datasets         []DatasetStatus `json:"datasets"`
}

// publishStatus copies the worker's view of the graph into the snapshot the
// control server reads. Only the worker writes it; readers take the lock and
// copy.
func (o *Orchestrator) publishStatus(cfg *config.Config) {
	status := DaemonStatus{
		StartedAt:        o.startedAt,
		Cycles:           o.cycles,
		LastCycleAt:      new(o.now()),
		ActiveMigrations: len(o.tracked),
		Datasets:         make([]DatasetStatus, 0, len(cfg.Datasets)),
	}

	for _, ds := range cfg.Datasets {
		dsStatus := DatasetStatus{
			Name:         ds.Name,
			Active:       ds.Active,
			LastSnapshot: ds.LastSnapshotTime,
			Snapshots:    make(map[model.Tier]int, len(ds.Snapshots)),
		}
		for tier, snaps := range ds.Snapshots {
			dsStatus.Snapshots[tier] = len(snaps)
		}
		for _, dest := range ds.Destinations {
			if dest.IsLocalOnly() {
				continue
			}
			dsStatus.Destinations = append(dsStatus.Destinations, DestinationStatus{
				RemoteHost:    dest.RemoteHost,
				RemoteDataset: dest.TargetDataset(ds.Name),
				Enabled:       dest.Enabled,
				LastSync:      dest.LastSyncTime,
				TaskID:        dest.CurrentTaskID,
			})
		}

		status.Datasets = append(status.Datasets, dsStatus)
	}

	o.mu.Lock()
	o.status = status
	o.mu.Unlock()
}

// Status returns the snapshot published at the end of the last cycle.
func (o *Orchestrator) Status() DaemonStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}
