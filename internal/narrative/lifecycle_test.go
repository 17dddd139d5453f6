package narrative

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
)

func TestDetermineState_ReactivatesFromEcho(t *testing.T) {
	now := time.Now().UTC()
	state := DetermineState(10, 2.5, now, persistence.LifecycleEcho, now)
	require.Equal(t, persistence.LifecycleReactivated, state)
}

func TestDetermineState_DormantThenEcho(t *testing.T) {
	now := time.Now().UTC()
	state := DetermineState(2, 1.0, now, persistence.LifecycleDormant, now)
	require.Equal(t, persistence.LifecycleEcho, state)
}

func TestDetermineState_DormantByStaleness(t *testing.T) {
	now := time.Now().UTC()
	state := DetermineState(2, 0.1, now.Add(-8*24*time.Hour), "", now)
	require.Equal(t, persistence.LifecycleDormant, state)
}

func TestDetermineState_CoolingByStaleness(t *testing.T) {
	now := time.Now().UTC()
	state := DetermineState(2, 0.1, now.Add(-4*24*time.Hour), "", now)
	require.Equal(t, persistence.LifecycleCooling, state)
}

func TestDetermineState_HotByVelocity(t *testing.T) {
	now := time.Now().UTC()
	state := DetermineState(2, 3.5, now, "", now)
	require.Equal(t, persistence.LifecycleHot, state)
}

func TestDetermineState_HotByArticleCount(t *testing.T) {
	now := time.Now().UTC()
	state := DetermineState(8, 0.1, now, "", now)
	require.Equal(t, persistence.LifecycleHot, state)
}

func TestDetermineState_Rising(t *testing.T) {
	now := time.Now().UTC()
	state := DetermineState(3, 2.0, now, "", now)
	require.Equal(t, persistence.LifecycleRising, state)
}

func TestDetermineState_DefaultsToEmerging(t *testing.T) {
	now := time.Now().UTC()
	state := DetermineState(1, 0.2, now, "", now)
	require.Equal(t, persistence.LifecycleEmerging, state)
}

func TestGraceDays_ClampsToRange(t *testing.T) {
	require.Equal(t, 28, GraceDays(0.1))
	require.Equal(t, 7, GraceDays(5.0))
}

func TestComputeMomentum_TooFewArticlesIsUnknown(t *testing.T) {
	now := time.Now().UTC()
	require.Equal(t, persistence.MomentumUnknown, ComputeMomentum([]time.Time{now, now}))
}

func TestComputeMomentum_Growing(t *testing.T) {
	now := time.Now().UTC()
	dates := []time.Time{
		now.Add(-240 * time.Hour), now.Add(-200 * time.Hour),
		now.Add(-2 * time.Hour), now.Add(-1 * time.Hour), now,
	}
	require.Equal(t, persistence.MomentumGrowing, ComputeMomentum(dates))
}

func TestRecencyScore_DecaysWithAge(t *testing.T) {
	now := time.Now().UTC()
	fresh := RecencyScore(now, now)
	stale := RecencyScore(now.Add(-48*time.Hour), now)
	require.Equal(t, 1.0, fresh)
	require.Less(t, stale, fresh)
}

func TestUpdateHistory_AppendsOnlyOnStateChange(t *testing.T) {
	now := time.Now().UTC()
	history, _ := UpdateHistory(nil, persistence.LifecycleEmerging, 1, 0.2, 0, now)
	require.Len(t, history, 1)

	history, _ = UpdateHistory(history, persistence.LifecycleEmerging, 1, 0.2, 0, now)
	require.Len(t, history, 1, "no duplicate entry for an unchanged state")
}

func TestUpdateHistory_ReactivationSetsResurrectionFields(t *testing.T) {
	now := time.Now().UTC()
	dormantAt := now.Add(-10 * 24 * time.Hour)
	history := []persistence.LifecycleEvent{
		{State: persistence.LifecycleHot, Timestamp: now.Add(-20 * 24 * time.Hour)},
		{State: persistence.LifecycleDormant, Timestamp: dormantAt},
	}

	history, resurrection := UpdateHistory(history, persistence.LifecycleReactivated, 5, 4.0, 0, now)
	require.Len(t, history, 3)
	require.NotNil(t, resurrection)
	require.Equal(t, 1, resurrection.ReawakeningCount)
	require.Equal(t, 8.0, resurrection.ResurrectionVelocity)
	require.NotNil(t, resurrection.ReawakenedFrom)
	require.True(t, resurrection.ReawakenedFrom.Equal(dormantAt))
}
