package daemon

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"
	"zback/internal/config"
	"zback/internal/logger"
	"zback/internal/model"
	"zback/internal/zfsapi"

	"go.uber.org/zap"
)

// progressLogInterval throttles per-task progress logging, independent of how
// often the API reports updates.
const progressLogInterval = 60 * time.Second

// trackedTask is the local record of one remote migration. Dropping it is
// what moves the (dataset, destination) pair back to idle.
type trackedTask struct {
	taskID  string
	dataset *model.Dataset
	dest    *model.Destination
	started time.Time

	lastProgressLog time.Time
}

// syncCycle advances every tracked migration, then starts new ones where a
// destination is due. Polling strictly precedes starting, so a completion is
// observed before the same dataset is considered for a new sync.
func (o *Orchestrator) syncCycle(ctx context.Context, cfg *config.Config) {
	finished := o.pollMigrations(ctx)

	for _, ds := range cfg.Datasets {
		if !ds.HasRemoteDestinations() {
			continue
		}

		// A dataset whose migration just reached a terminal state keeps its
		// locally recorded sync time this cycle; the remote hold may not
		// reflect the completion yet.
		if !finished[ds.Name] {
			if err := o.refreshSyncTimes(ctx, ds); err != nil {
				o.apiErrs++
				logger.Log.Warn("failed to read sync holds",
					zap.String("dataset", ds.Name),
					zap.Error(err))
			}
		}

		running, err := o.api.HasRunningMigration(ctx, ds.Name)
		if err != nil {
			logger.Log.Debug("migration list unavailable, assuming none running",
				zap.String("dataset", ds.Name),
				zap.Error(err))
			running = false
		}
		if running {
			logger.Log.Debug("migration already running, skipping dataset",
				zap.String("dataset", ds.Name))
			continue
		}

		o.startMigration(ctx, cfg, ds)
	}
}

// pollMigrations queries the status of every tracked task and applies the
// transition. It returns the datasets whose task reached a terminal state
// this cycle. A poll failure is itself terminal; the poll is never retried.
func (o *Orchestrator) pollMigrations(ctx context.Context) map[string]bool {
	finished := make(map[string]bool)

	for _, taskID := range slices.Sorted(maps.Keys(o.tracked)) {
		task := o.tracked[taskID]

		state := model.StateError
		var progress *zfsapi.Progress
		detail := ""

		status, err := o.api.MigrationStatus(ctx, taskID)
		if err != nil {
			logger.Log.Warn("migration status poll failed",
				zap.String("dataset", task.dataset.Name),
				zap.String("task_id", taskID),
				zap.Error(err))
			detail = err.Error()
		} else {
			state = model.ParseMigrationState(status.Status)
			progress = status.Progress
			if state == model.StateError {
				detail = fmt.Sprintf("unexpected status %q", status.Status)
			}
		}

		switch {
		case state == model.StateCompleted:
			// The poll time, not the remote-reported time, becomes the sync
			// time so the destination is not due again immediately.
			task.dest.LastSyncTime = new(o.now())

			logger.Log.Info("migration completed",
				zap.String("dataset", task.dataset.Name),
				zap.String("host", task.dest.RemoteHost),
				zap.String("task_id", taskID),
				zap.Duration("elapsed", o.now().Sub(task.started)))
			o.saveEvent(model.EventMigrationCompleted, task.dataset.Name, task.dest.RemoteHost, taskID)
			o.notifier.Send(ctx, "migration completed", map[string]string{
				"dataset": task.dataset.Name,
				"host":    task.dest.RemoteHost,
			})

			o.clearTask(task)
			finished[task.dataset.Name] = true

		case state.Terminal():
			logger.Log.Warn("migration ended without completing",
				zap.String("dataset", task.dataset.Name),
				zap.String("host", task.dest.RemoteHost),
				zap.String("task_id", taskID),
				zap.String("state", string(state)),
				zap.String("detail", detail))
			o.saveEvent(model.EventMigrationFailed, task.dataset.Name, task.dest.RemoteHost,
				fmt.Sprintf("%s: %s", state, detail))
			o.notifier.Send(ctx, "migration failed", map[string]string{
				"dataset": task.dataset.Name,
				"host":    task.dest.RemoteHost,
				"state":   string(state),
			})

			o.clearTask(task)
			finished[task.dataset.Name] = true

		case state == model.StateRunning:
			o.logProgress(task, progress)
		}
	}

	return finished
}

func (o *Orchestrator) logProgress(task *trackedTask, progress *zfsapi.Progress) {
	if progress == nil {
		return
	}

	now := o.now()
	if now.Sub(task.lastProgressLog) < progressLogInterval {
		return
	}
	task.lastProgressLog = now

	logger.Log.Info("migration progress",
		zap.String("dataset", task.dataset.Name),
		zap.String("host", task.dest.RemoteHost),
		zap.Float64("percent", progress.Percentage),
		zap.Float64("rate_mbps", progress.RateMbps),
		zap.Int("eta_seconds", progress.ETASeconds))
}

// startMigration starts at most one new migration for the dataset: the first
// enabled remote destination in order whose sync interval has elapsed. A
// failed start is a no-op and the dataset is retried next cycle.
func (o *Orchestrator) startMigration(ctx context.Context, cfg *config.Config, ds *model.Dataset) {
	now := o.now()

	for _, dest := range ds.EnabledDestinations() {
		if dest.IsLocalOnly() || dest.CurrentTaskID != "" {
			continue
		}

		if dest.LastSyncTime != nil && now.Sub(*dest.LastSyncTime) < cfg.Policy.RemoteSyncInterval {
			continue
		}

		taskID, err := o.api.StartMigration(ctx, zfsapi.MigrationRequest{
			Dataset:       ds.Name,
			RemoteHost:    dest.RemoteHost,
			RemoteDataset: dest.RemoteDataset,
			Recursive:     true,
		})
		if err != nil {
			o.apiErrs++
			logger.Log.Warn("failed to start migration",
				zap.String("dataset", ds.Name),
				zap.String("host", dest.RemoteHost),
				zap.Error(err))
			return
		}

		dest.CurrentTaskID = taskID
		o.tracked[taskID] = &trackedTask{
			taskID:  taskID,
			dataset: ds,
			dest:    dest,
			started: now,
		}

		logger.Log.Info("migration started",
			zap.String("dataset", ds.Name),
			zap.String("host", dest.RemoteHost),
			zap.String("target", dest.TargetDataset(ds.Name)),
			zap.String("task_id", taskID))
		o.saveEvent(model.EventMigrationStarted, ds.Name, dest.RemoteHost, taskID)
		return
	}
}

// clearTask drops the local tracking entry, clears the destination's task id
// and with it the progress throttle state.
func (o *Orchestrator) clearTask(task *trackedTask) {
	task.dest.CurrentTaskID = ""
	delete(o.tracked, task.taskID)
}

// rebindTasks re-resolves every tracked task against a freshly activated
// configuration graph, so later status updates land on live objects. Tasks
// whose dataset or destination disappeared are abandoned locally; the remote
// task is not cancelled.
func (o *Orchestrator) rebindTasks(cfg *config.Config) {
	byName := make(map[string]*model.Dataset, len(cfg.Datasets))
	for _, ds := range cfg.Datasets {
		byName[ds.Name] = ds
	}

	for taskID, task := range o.tracked {
		ds, ok := byName[task.dataset.Name]
		if !ok {
			logger.Log.Warn("dataset removed from config, abandoning migration tracking",
				zap.String("dataset", task.dataset.Name),
				zap.String("task_id", taskID))
			delete(o.tracked, taskID)
			continue
		}

		dest := ds.FindDestination(task.dest)
		if dest == nil {
			logger.Log.Warn("destination removed from config, abandoning migration tracking",
				zap.String("dataset", task.dataset.Name),
				zap.String("host", task.dest.RemoteHost),
				zap.String("task_id", taskID))
			delete(o.tracked, taskID)
			continue
		}

		task.dataset = ds
		task.dest = dest
		dest.CurrentTaskID = taskID
	}
}
