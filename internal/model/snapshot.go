package model

import (
	"fmt"
	"strings"
	"time"
)

// Tier is the retention class a backup snapshot belongs to.
type Tier string

const (
	TierFrequent Tier = "frequent"
	TierHourly   Tier = "hourly"
	TierDaily    Tier = "daily"
	TierWeekly   Tier = "weekly"
	TierMonthly  Tier = "monthly"
	TierYearly   Tier = "yearly"
)

// Tiers lists all retention tiers in pruning order.
var Tiers = []Tier{TierFrequent, TierHourly, TierDaily, TierWeekly, TierMonthly, TierYearly}

const (
	// SnapshotTimeLayout is the timestamp embedded in backup snapshot names.
	SnapshotTimeLayout = "2006-01-02-15-04"
	// HoldTimeLayout is the timestamp embedded in sync hold tags.
	HoldTimeLayout = "2006-01-02-15-04-05"
)

var validTiers = map[Tier]bool{
	TierFrequent: true,
	TierHourly:   true,
	TierDaily:    true,
	TierWeekly:   true,
	TierMonthly:  true,
	TierYearly:   true,
}

// SnapshotName builds a backup snapshot name of the form
// <tier>_backup_<YYYY-MM-DD-HH-MM>.
func SnapshotName(tier Tier, t time.Time) string {
	return fmt.Sprintf("%s_backup_%s", tier, t.UTC().Format(SnapshotTimeLayout))
}

// ParseSnapshotName extracts tier and creation time from a backup snapshot
// name. Names not matching <tier>_backup_<timestamp> are not backup snapshots
// and report ok=false.
func ParseSnapshotName(name string) (Tier, time.Time, bool) {
	parts := strings.Split(name, "_")
	if len(parts) != 3 || parts[1] != "backup" {
		return "", time.Time{}, false
	}

	tier := Tier(parts[0])
	if !validTiers[tier] {
		return "", time.Time{}, false
	}

	ts, err := time.Parse(SnapshotTimeLayout, parts[2])
	if err != nil {
		return "", time.Time{}, false
	}

	return tier, ts, true
}

// SyncHoldTag builds a hold tag of the form sync_<timestamp>_<host> recording
// a completed replication to host.
func SyncHoldTag(host string, t time.Time) string {
	return fmt.Sprintf("sync_%s_%s", t.UTC().Format(HoldTimeLayout), host)
}

// ParseSyncHold extracts host and completion time from a sync hold tag.
// The timestamp normally carries seconds; tags written by older releases omit
// them, so the minute layout is accepted as a fallback.
func ParseSyncHold(tag string) (string, time.Time, bool) {
	parts := strings.Split(tag, "_")
	if len(parts) != 3 || parts[0] != "sync" {
		return "", time.Time{}, false
	}

	ts, err := time.Parse(HoldTimeLayout, parts[1])
	if err != nil {
		ts, err = time.Parse(SnapshotTimeLayout, parts[1])
		if err != nil {
			return "", time.Time{}, false
		}
	}

	return parts[2], ts, true
}
