// Package retention computes which snapshots and sync holds cleanup should
// remove. The functions only plan; the orchestrator and API client execute.
package retention

import (
	"strings"
	"zback/internal/model"
)

// PrunePlan returns the snapshots to delete so each tier keeps at most its
// configured count. snapshots must be in chronological order; the oldest
// excess of each tier is deleted and the newest keep survive. Tiers missing
// from keep are never pruned.
func PrunePlan(snapshots []string, keep map[model.Tier]int) []string {
	var plan []string

	for _, tier := range model.Tiers {
		count, ok := keep[tier]
		if !ok {
			continue
		}

		var tierSnaps []string
		for _, snap := range snapshots {
			if strings.Contains(snap, string(tier)) {
				tierSnaps = append(tierSnaps, snap)
			}
		}

		if len(tierSnaps) > count {
			plan = append(plan, tierSnaps[:len(tierSnaps)-count]...)
		}
	}

	return plan
}

// ConsolidateSyncHolds returns the sync holds to release so at most one
// survives per remote host: every hold but the last seen in discovery order.
// holds must keep the snapshot listing order, which is chronological, so the
// surviving hold is the most recent one. Non-sync holds are left alone.
func ConsolidateSyncHolds(holds []model.SnapshotHolds) []model.HoldRelease {
	type hostHold struct {
		host string
		rel  model.HoldRelease
	}

	var discovered []hostHold
	for _, sh := range holds {
		for _, tag := range sh.Tags {
			host, _, ok := model.ParseSyncHold(tag)
			if !ok {
				continue
			}

			discovered = append(discovered, hostHold{
				host: host,
				rel:  model.HoldRelease{Snapshot: sh.Snapshot, Tag: tag},
			})
		}
	}

	last := make(map[string]int, len(discovered))
	for i, h := range discovered {
		last[h.host] = i
	}

	var releases []model.HoldRelease
	for i, h := range discovered {
		if last[h.host] != i {
			releases = append(releases, h.rel)
		}
	}

	return releases
}
