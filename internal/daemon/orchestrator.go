package daemon

import (
	"context"
	"sync"
	"time"
	"zback/internal/config"
	"zback/internal/logger"
	"zback/internal/model"
	"zback/internal/notify"
	"zback/internal/retention"
	"zback/internal/schedule"
	"zback/internal/zfsapi"

	"go.uber.org/zap"
)

// eventStore records orchestration outcomes for the history surface.
type eventStore interface {
	Save(kind model.EventKind, dataset, target, detail string) error
}

// Orchestrator is the single background worker driving the backup cycle:
// config reload, schedule evaluation, snapshot state refresh, cleanup,
// snapshot creation and migration tracking. All graph and tracking mutations
// happen on its goroutine; external readers only see published copies.
type Orchestrator struct {
	registry *config.Registry
	api      zfsapi.API
	events   eventStore
	notifier notify.Notifier

	tracked map[string]*trackedTask

	mu     sync.RWMutex
	status DaemonStatus

	startedAt time.Time
	cycles    uint64
	apiErrs   int

	now func() time.Time
}

func NewOrchestrator(registry *config.Registry, api zfsapi.API, events eventStore, notifier notify.Notifier) *Orchestrator {
	if notifier == nil {
		notifier = notify.Noop{}
	}

	return &Orchestrator{
		registry:  registry,
		api:       api,
		events:    events,
		notifier:  notifier,
		tracked:   make(map[string]*trackedTask),
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// Run executes cycles until ctx is cancelled, sleeping a tenth of the backup
// interval between them. A cycle never terminates the loop, whatever fails
// inside it.
func (o *Orchestrator) Run(ctx context.Context) {
	logger.Log.Info("orchestration loop started",
		zap.Int("datasets", len(o.registry.Current().Datasets)))

	for {
		o.safeCycle(ctx)

		interval := o.registry.Current().Policy.BackupInterval / 10
		select {
		case <-ctx.Done():
			logger.Log.Info("orchestration loop stopped")
			return
		case <-time.After(interval):
		}
	}
}

func (o *Orchestrator) safeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("cycle panicked",
				zap.Any("panic", r))
			o.saveEvent(model.EventCycleError, "", "", "panic in orchestration cycle")
		}
	}()

	o.cycle(ctx)
}

func (o *Orchestrator) cycle(ctx context.Context) {
	if o.registry.ConsumePending() {
		if err := o.registry.Reload(); err != nil {
			logger.Log.Warn("keeping previous configuration",
				zap.Error(err))
			o.saveEvent(model.EventCycleError, "", o.registry.Path(), err.Error())
		} else {
			o.rebindTasks(o.registry.Current())
			o.saveEvent(model.EventConfigReloaded, "", o.registry.Path(), "")
		}
	}

	cfg := o.registry.Current()
	now := o.now()
	o.apiErrs = 0

	if schedule.InBackupWindow(now, cfg.Policy) {
		for _, ds := range cfg.Datasets {
			o.backupDataset(ctx, cfg, ds)
		}
	}

	if schedule.InSyncWindow(now, cfg.Policy) {
		o.syncCycle(ctx, cfg)
	}

	if o.apiErrs > 0 && !o.api.HealthCheck(ctx) {
		logger.Log.Error("storage api unreachable, retrying next cycle",
			zap.Int("failed_calls", o.apiErrs))
	}

	o.cycles++
	o.publishStatus(cfg)
}

// backupDataset refreshes the snapshot inventory, runs cleanup and takes a
// new snapshot when one is due. Any failure here is confined to this dataset.
func (o *Orchestrator) backupDataset(ctx context.Context, cfg *config.Config, ds *model.Dataset) {
	if err := o.refreshSnapshots(ctx, ds); err != nil {
		o.apiErrs++
		logger.Log.Warn("failed to list snapshots",
			zap.String("dataset", ds.Name),
			zap.Error(err))
		return
	}

	o.cleanupDataset(ctx, cfg, ds)

	if !ds.Active {
		return
	}

	tier, due := schedule.SelectTier(ds.LastSnapshotTime, o.now(), cfg.Policy.BackupInterval)
	if !due {
		return
	}

	name := model.SnapshotName(tier, o.now())
	if err := o.api.CreateSnapshot(ctx, ds.Name, name, false); err != nil {
		o.apiErrs++
		logger.Log.Warn("failed to create snapshot",
			zap.String("dataset", ds.Name),
			zap.String("snapshot", name),
			zap.Error(err))
		o.saveEvent(model.EventSnapshotFailed, ds.Name, name, err.Error())
		return
	}

	logger.Log.Info("snapshot created",
		zap.String("dataset", ds.Name),
		zap.String("snapshot", name),
		zap.String("tier", string(tier)))
	o.saveEvent(model.EventSnapshotCreated, ds.Name, name, "")
}

// refreshSnapshots rebuilds the per-tier inventory and last snapshot time
// from the API listing. Names that are not backup snapshots are invisible.
func (o *Orchestrator) refreshSnapshots(ctx context.Context, ds *model.Dataset) error {
	snapshots, err := o.api.ListSnapshots(ctx, ds.Name)
	if err != nil {
		return err
	}

	ds.Snapshots = make(map[model.Tier][]string)
	ds.LastSnapshotTime = nil

	for _, snap := range snapshots {
		tier, ts, ok := model.ParseSnapshotName(snap)
		if !ok {
			continue
		}

		ds.Snapshots[tier] = append(ds.Snapshots[tier], snap)
		ds.LastSnapshotTime = &ts
	}

	return nil
}

// refreshSyncTimes derives per-host last-sync times from the current sync
// holds and merges them into the destinations. A destination's time only
// moves forward; a stale hold can never regress it.
func (o *Orchestrator) refreshSyncTimes(ctx context.Context, ds *model.Dataset) error {
	holds, err := o.api.ListHolds(ctx, ds.Name)
	if err != nil {
		return err
	}

	discovered := make(map[string]time.Time)
	for _, sh := range holds {
		for _, tag := range sh.Tags {
			host, ts, ok := model.ParseSyncHold(tag)
			if !ok {
				continue
			}
			if prev, seen := discovered[host]; !seen || ts.After(prev) {
				discovered[host] = ts
			}
		}
	}

	for _, dest := range ds.Destinations {
		if !dest.Enabled || dest.IsLocalOnly() {
			continue
		}

		ts, ok := discovered[dest.RemoteHost]
		if !ok {
			continue
		}

		if dest.LastSyncTime == nil || ts.After(*dest.LastSyncTime) {
			dest.LastSyncTime = new(ts)
		}
	}

	return nil
}

// cleanupDataset consolidates sync holds down to one per host and prunes
// snapshots beyond the retention counts. Both halves are best-effort and
// never abort the cycle.
func (o *Orchestrator) cleanupDataset(ctx context.Context, cfg *config.Config, ds *model.Dataset) {
	holds, err := o.api.ListHolds(ctx, ds.Name)
	if err != nil {
		o.apiErrs++
		logger.Log.Warn("failed to list holds",
			zap.String("dataset", ds.Name),
			zap.Error(err))
	} else {
		for _, rel := range retention.ConsolidateSyncHolds(holds) {
			if err := o.api.ReleaseHold(ctx, ds.Name, rel.Snapshot, rel.Tag, false); err != nil {
				logger.Log.Warn("failed to release hold",
					zap.String("dataset", ds.Name),
					zap.String("snapshot", rel.Snapshot),
					zap.String("tag", rel.Tag),
					zap.Error(err))
			}
		}
	}

	if err := o.api.PruneSnapshots(ctx, ds.Name, cfg.Policy.Retention); err != nil {
		o.apiErrs++
		logger.Log.Warn("failed to prune snapshots",
			zap.String("dataset", ds.Name),
			zap.Error(err))
	}
}

// Healthy probes the storage API.
func (o *Orchestrator) Healthy(ctx context.Context) bool {
	return o.api.HealthCheck(ctx)
}

func (o *Orchestrator) saveEvent(kind model.EventKind, dataset, target, detail string) {
	if o.events == nil {
		return
	}

	if err := o.events.Save(kind, dataset, target, detail); err != nil {
		logger.Log.Warn("failed to save event",
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}
