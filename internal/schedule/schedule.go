// Package schedule decides when backup and remote-sync actions are permitted
// and which retention tier a new snapshot belongs to. Everything here is a
// pure function of the supplied clock value.
package schedule

import (
	"time"
	"zback/internal/config"
	"zback/internal/model"
)

// InWindow reports whether the weekly bitmask pair permits an action at now.
// days holds one character per weekday starting at Monday, hours one per hour
// of day; '1' permits.
func InWindow(now time.Time, days, hours string) bool {
	weekday := mondayIndex(now.Weekday())
	hour := now.Hour()

	if weekday >= len(days) || hour >= len(hours) {
		return false
	}

	return days[weekday] == '1' && hours[hour] == '1'
}

// InBackupWindow reports whether local snapshots may be taken at now.
func InBackupWindow(now time.Time, policy config.ServerPolicy) bool {
	return InWindow(now, policy.Days, policy.Hours)
}

// InSyncWindow reports whether remote syncs may run at now. Always false when
// remote sync is disabled.
func InSyncWindow(now time.Time, policy config.ServerPolicy) bool {
	if !policy.RemoteSync {
		return false
	}
	return InWindow(now, policy.RemoteSyncDays, policy.RemoteSyncHours)
}

// mondayIndex maps Go's Sunday-based weekday to a Monday-based index 0..6.
func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// SelectTier picks the retention tier for the next snapshot of a dataset, or
// reports false when no snapshot is due. Precedence is yearly > monthly >
// weekly > daily > hourly, by comparing the respective calendar field of the
// last snapshot against now in UTC; when all fields match, a frequent
// snapshot is due once the backup interval has elapsed.
func SelectTier(last *time.Time, now time.Time, interval time.Duration) (model.Tier, bool) {
	if last == nil {
		return model.TierFrequent, true
	}

	lastUTC, nowUTC := last.UTC(), now.UTC()

	switch {
	case lastUTC.Year() != nowUTC.Year():
		return model.TierYearly, true
	case lastUTC.Month() != nowUTC.Month():
		return model.TierMonthly, true
	case weekOfYear(lastUTC) != weekOfYear(nowUTC):
		return model.TierWeekly, true
	case lastUTC.Day() != nowUTC.Day():
		return model.TierDaily, true
	case lastUTC.Hour() != nowUTC.Hour():
		return model.TierHourly, true
	case nowUTC.Sub(lastUTC) > interval:
		return model.TierFrequent, true
	default:
		return "", false
	}
}

// weekOfYear returns the week number with Monday as the first day of the
// week; days before the year's first Monday fall into week 0.
func weekOfYear(t time.Time) int {
	return (t.YearDay() + 6 - mondayIndex(t.Weekday())) / 7
}
