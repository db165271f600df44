package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_Defaults(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureTutorChat, nil))
	assert.True(t, ff.IsEnabled(FeatureGamificationStreaks, nil))
	assert.False(t, ff.IsEnabled(FeatureExperimentalAnalytics, nil))
	assert.False(t, ff.IsEnabled("no.such.feature", nil))
}

func TestFeatureFlags_EnvOverrides(t *testing.T) {
	t.Setenv("FEATURE_TUTOR_CHAT", "false")
	t.Setenv("FEATURE_EXPERIMENTAL_ANALYTICS", "true")
	t.Setenv("FEATURE_NOTIFY_RANK_CHANGED", "25")

	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureTutorChat, nil))
	assert.True(t, ff.IsEnabled(FeatureExperimentalAnalytics, nil))

	f := ff.GetAllFeatures()[FeatureNotifyRankChanged]
	require.NotNil(t, f)
	assert.True(t, f.Enabled)
	assert.Equal(t, 25, f.RolloutPercent)
}

func TestFeatureFlags_LearnerOverrideWins(t *testing.T) {
	ff := LoadFeatureFlags()

	ff.SetLearnerOverride("learner-1", FeatureTutorChat, false)
	assert.False(t, ff.IsEnabled(FeatureTutorChat, &FeatureContext{LearnerID: "learner-1"}))
	assert.True(t, ff.IsEnabled(FeatureTutorChat, &FeatureContext{LearnerID: "learner-2"}))

	ff.ClearLearnerOverrides("learner-1")
	assert.True(t, ff.IsEnabled(FeatureTutorChat, &FeatureContext{LearnerID: "learner-1"}))
}

func TestFeatureFlags_RolloutIsStablePerLearner(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureNotifyRankChanged, 50))

	inside := 0
	for i := 0; i < 200; i++ {
		ctx := &FeatureContext{LearnerID: fmt.Sprintf("learner-%d", i)}
		first := ff.IsEnabled(FeatureNotifyRankChanged, ctx)
		// Bucketing must not change between evaluations.
		assert.Equal(t, first, ff.IsEnabled(FeatureNotifyRankChanged, ctx))
		if first {
			inside++
		}
	}
	// A 50% rollout over 200 learners lands near half.
	assert.Greater(t, inside, 50)
	assert.Less(t, inside, 150)
}

func TestFeatureFlags_AdminBypassesRollout(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureNotifyRankChanged, 1))

	admin := &FeatureContext{LearnerID: "admin-1", IsAdmin: true}
	assert.True(t, ff.IsEnabled(FeatureNotifyRankChanged, admin))
}

func TestFeatureFlags_TimeWindow(t *testing.T) {
	ff := LoadFeatureFlags()

	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)

	f := ff.GetAllFeatures()[FeatureTutorChat]
	require.NotNil(t, f)

	ff.mu.Lock()
	ff.features[FeatureTutorChat].EnabledFrom = &future
	ff.mu.Unlock()
	assert.False(t, ff.IsEnabled(FeatureTutorChat, nil))

	ff.mu.Lock()
	ff.features[FeatureTutorChat].EnabledFrom = nil
	ff.features[FeatureTutorChat].EnabledUntil = &past
	ff.mu.Unlock()
	assert.False(t, ff.IsEnabled(FeatureTutorChat, nil))
}

func TestFeatureNameToEnvKey(t *testing.T) {
	assert.Equal(t, "FEATURE_TUTOR_CHAT", featureNameToEnvKey("tutor.chat"))
	assert.Equal(t, "FEATURE_NOTIFY_RANK_CHANGED", featureNameToEnvKey("notify.rank_changed"))
}
