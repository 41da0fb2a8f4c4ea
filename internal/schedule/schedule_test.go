package schedule

import (
	"testing"
	"time"
	"zback/internal/config"
	"zback/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-01-05 is a Monday.
var monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func TestInWindow_AllCombinations(t *testing.T) {
	days := "1010110"
	hours := "100000001111000000110001"

	for d := range 7 {
		for h := range 24 {
			now := monday.AddDate(0, 0, d).Add(time.Duration(h) * time.Hour)
			want := days[d] == '1' && hours[h] == '1'

			assert.Equal(t, want, InWindow(now, days, hours),
				"weekday index %d hour %d", d, h)
		}
	}
}

func TestInWindow_SundayWrapsToSix(t *testing.T) {
	sunday := monday.AddDate(0, 0, 6)
	require.Equal(t, time.Sunday, sunday.Weekday())

	assert.True(t, InWindow(sunday, "0000001", "111111111111111111111111"))
	assert.False(t, InWindow(sunday, "1111110", "111111111111111111111111"))
}

func TestInWindow_MalformedMask(t *testing.T) {
	assert.False(t, InWindow(monday, "1", "1"))
}

func TestInSyncWindow_DisabledAlwaysFalse(t *testing.T) {
	policy := config.ServerPolicy{
		RemoteSync:      false,
		RemoteSyncDays:  "1111111",
		RemoteSyncHours: "111111111111111111111111",
	}

	for d := range 7 {
		now := monday.AddDate(0, 0, d)
		assert.False(t, InSyncWindow(now, policy))
	}
}

func TestInSyncWindow_Enabled(t *testing.T) {
	policy := config.ServerPolicy{
		RemoteSync:      true,
		RemoteSyncDays:  "1000000",
		RemoteSyncHours: "111111111111111111111111",
	}

	assert.True(t, InSyncWindow(monday, policy))
	assert.False(t, InSyncWindow(monday.AddDate(0, 0, 1), policy))
}

func TestSelectTier_NoPreviousSnapshot(t *testing.T) {
	tier, due := SelectTier(nil, monday, 600*time.Second)

	require.True(t, due)
	assert.Equal(t, model.TierFrequent, tier)
}

func TestSelectTier_Precedence(t *testing.T) {
	interval := 600 * time.Second

	cases := []struct {
		name string
		last time.Time
		now  time.Time
		tier model.Tier
		due  bool
	}{
		{
			name: "year boundary",
			last: time.Date(2025, 12, 31, 23, 50, 0, 0, time.UTC),
			now:  time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC),
			tier: model.TierYearly,
			due:  true,
		},
		{
			name: "month boundary",
			last: time.Date(2026, 1, 31, 23, 50, 0, 0, time.UTC),
			now:  time.Date(2026, 2, 1, 0, 5, 0, 0, time.UTC),
			tier: model.TierMonthly,
			due:  true,
		},
		{
			name: "week boundary",
			last: time.Date(2026, 1, 11, 23, 50, 0, 0, time.UTC), // Sunday
			now:  time.Date(2026, 1, 12, 0, 5, 0, 0, time.UTC),   // Monday
			tier: model.TierWeekly,
			due:  true,
		},
		{
			name: "day boundary within week",
			last: time.Date(2026, 1, 10, 23, 50, 0, 0, time.UTC), // Saturday
			now:  time.Date(2026, 1, 11, 0, 5, 0, 0, time.UTC),   // Sunday
			tier: model.TierDaily,
			due:  true,
		},
		{
			name: "hour boundary",
			last: time.Date(2026, 1, 10, 10, 55, 0, 0, time.UTC),
			now:  time.Date(2026, 1, 10, 11, 2, 0, 0, time.UTC),
			tier: model.TierHourly,
			due:  true,
		},
		{
			name: "interval elapsed",
			last: time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC),
			now:  time.Date(2026, 1, 10, 10, 15, 0, 0, time.UTC),
			tier: model.TierFrequent,
			due:  true,
		},
		{
			name: "nothing due",
			last: time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC),
			now:  time.Date(2026, 1, 10, 10, 5, 0, 0, time.UTC),
			due:  false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tier, due := SelectTier(&tc.last, tc.now, interval)

			assert.Equal(t, tc.due, due)
			if tc.due {
				assert.Equal(t, tc.tier, tier)
			}
		})
	}
}

func TestSelectTier_Deterministic(t *testing.T) {
	last := time.Date(2026, 1, 10, 23, 50, 0, 0, time.UTC)
	now := time.Date(2026, 1, 11, 0, 5, 0, 0, time.UTC)

	first, due1 := SelectTier(&last, now, 600*time.Second)
	second, due2 := SelectTier(&last, now, 600*time.Second)

	assert.Equal(t, first, second)
	assert.Equal(t, due1, due2)
	assert.Equal(t, model.TierDaily, first)
}
