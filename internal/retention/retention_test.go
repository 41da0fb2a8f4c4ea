package retention

import (
	"fmt"
	"slices"
	"testing"
	"zback/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frequentSnaps(n int) []string {
	snaps := make([]string, 0, n)
	for i := range n {
		snaps = append(snaps, fmt.Sprintf("frequent_backup_2026-01-%02d-10-00", i+1))
	}
	return snaps
}

func TestPrunePlan_KeepsNewest(t *testing.T) {
	snaps := frequentSnaps(10)
	keep := map[model.Tier]int{model.TierFrequent: 4}

	plan := PrunePlan(snaps, keep)

	require.Len(t, plan, 6)
	assert.Equal(t, snaps[:6], plan)
	for _, survivor := range snaps[6:] {
		assert.NotContains(t, plan, survivor)
	}
}

func TestPrunePlan_OtherTiersUnaffected(t *testing.T) {
	snaps := append(frequentSnaps(10),
		"daily_backup_2026-01-01-00-00",
		"daily_backup_2026-01-02-00-00",
	)
	keep := map[model.Tier]int{model.TierFrequent: 4}

	plan := PrunePlan(snaps, keep)

	assert.Len(t, plan, 6)
	assert.NotContains(t, plan, "daily_backup_2026-01-01-00-00")
	assert.NotContains(t, plan, "daily_backup_2026-01-02-00-00")
}

func TestPrunePlan_UnderLimit(t *testing.T) {
	assert.Empty(t, PrunePlan(frequentSnaps(3), map[model.Tier]int{model.TierFrequent: 4}))
}

func TestPrunePlan_MissingTierNotPruned(t *testing.T) {
	snaps := frequentSnaps(10)

	assert.Empty(t, PrunePlan(snaps, map[model.Tier]int{model.TierDaily: 1}))
}

func TestPrunePlan_Idempotent(t *testing.T) {
	snaps := frequentSnaps(10)
	keep := map[model.Tier]int{model.TierFrequent: 4}

	plan := PrunePlan(snaps, keep)
	var remaining []string
	for _, snap := range snaps {
		if !slices.Contains(plan, snap) {
			remaining = append(remaining, snap)
		}
	}

	assert.Empty(t, PrunePlan(remaining, keep))
}

func TestConsolidateSyncHolds_KeepsLatestPerHost(t *testing.T) {
	holds := []model.SnapshotHolds{
		{Snapshot: "daily_backup_2026-01-10-10-00", Tags: []string{"sync_2026-01-10-10-00-00_hostA"}},
		{Snapshot: "daily_backup_2026-01-10-12-00", Tags: []string{"sync_2026-01-10-12-00-00_hostA"}},
		{Snapshot: "daily_backup_2026-01-10-09-00", Tags: []string{"sync_2026-01-10-09-00-00_hostB"}},
	}

	releases := ConsolidateSyncHolds(holds)

	require.Len(t, releases, 1)
	assert.Equal(t, model.HoldRelease{
		Snapshot: "daily_backup_2026-01-10-10-00",
		Tag:      "sync_2026-01-10-10-00-00_hostA",
	}, releases[0])
}

func TestConsolidateSyncHolds_MultipleTagsPerSnapshot(t *testing.T) {
	holds := []model.SnapshotHolds{
		{Snapshot: "snap1", Tags: []string{
			"sync_2026-01-10-10-00-00_hostA",
			"sync_2026-01-10-10-00-00_hostB",
		}},
		{Snapshot: "snap2", Tags: []string{"sync_2026-01-11-10-00-00_hostA"}},
	}

	releases := ConsolidateSyncHolds(holds)

	require.Len(t, releases, 1)
	assert.Equal(t, "snap1", releases[0].Snapshot)
	assert.Equal(t, "sync_2026-01-10-10-00-00_hostA", releases[0].Tag)
}

func TestConsolidateSyncHolds_IgnoresForeignTags(t *testing.T) {
	holds := []model.SnapshotHolds{
		{Snapshot: "snap1", Tags: []string{"keep", "migration-lock"}},
		{Snapshot: "snap2", Tags: []string{"sync_2026-01-10-10-00-00_hostA"}},
	}

	assert.Empty(t, ConsolidateSyncHolds(holds))
}

func TestConsolidateSyncHolds_Idempotent(t *testing.T) {
	holds := []model.SnapshotHolds{
		{Snapshot: "snap1", Tags: []string{"sync_2026-01-10-10-00-00_hostA"}},
		{Snapshot: "snap2", Tags: []string{"sync_2026-01-10-12-00-00_hostA"}},
	}

	releases := ConsolidateSyncHolds(holds)
	require.Len(t, releases, 1)

	// After applying the plan only snap2's hold remains.
	assert.Empty(t, ConsolidateSyncHolds([]model.SnapshotHolds{
		{Snapshot: "snap2", Tags: []string{"sync_2026-01-10-12-00-00_hostA"}},
	}))
}
