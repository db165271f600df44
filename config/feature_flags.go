package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and gradual rollouts.
// Supports percentage rollout with consistent per-learner bucketing,
// time-based activation, and per-learner overrides for debugging.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	learnerOverrides map[string]map[string]bool // learnerID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Learners are assigned based on a hash of their ID.
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	LearnerID string
	IsAdmin   bool
}

// Predefined feature flag names.
const (
	// === Leaderboard ===
	FeatureLeaderboardRankChange   = "leaderboard.rank_change"   // Show rank deltas (+2, -1)
	FeatureLeaderboardCourseBoards = "leaderboard.course_boards" // Per-course boards

	// === Learning path ===
	FeaturePathReviewSlots = "path.review_slots" // Mix rusty reviews into the path

	// === Notifications ===
	FeatureNotifyLevelUp        = "notify.level_up"
	FeatureNotifyAchievements   = "notify.achievements"
	FeatureNotifyStreakReminder = "notify.streak_reminder"
	FeatureNotifyRusty          = "notify.rusty"
	FeatureNotifyCourseNews     = "notify.course_news"
	FeatureNotifyRankChanged    = "notify.rank_changed"

	// === Gamification ===
	FeatureGamificationStreaks      = "gamification.streaks"
	FeatureGamificationAchievements = "gamification.achievements"
	FeatureGamificationPerfectBonus = "gamification.perfect_quiz_bonus"

	// === Tutor ===
	FeatureTutorChat = "tutor.chat" // AI tutor availability

	// === Sync ===
	FeatureSyncMultiDevice = "sync.multi_device" // More than one device per learner

	// === Experimental ===
	FeatureExperimentalAnalytics = "experimental.analytics" // Funnel and distribution reads
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:         make(map[string]*Feature),
		learnerOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	add := func(name, description string, enabled bool, rollout int) {
		ff.features[name] = &Feature{
			Name:           name,
			Description:    description,
			Enabled:        enabled,
			RolloutPercent: rollout,
		}
	}

	add(FeatureLeaderboardRankChange, "Show rank deltas in leaderboard", true, 100)
	add(FeatureLeaderboardCourseBoards, "Per-course leaderboards", true, 100)

	add(FeaturePathReviewSlots, "Mix rusty reviews into the learning path", true, 100)

	add(FeatureNotifyLevelUp, "Level-up notifications", true, 100)
	add(FeatureNotifyAchievements, "Achievement notifications", true, 100)
	add(FeatureNotifyStreakReminder, "Evening streak reminders", true, 100)
	add(FeatureNotifyRusty, "Rusty competency nudges", true, 100)
	add(FeatureNotifyCourseNews, "Course publication announcements", true, 100)
	add(FeatureNotifyRankChanged, "Rank change notifications", true, 50)

	add(FeatureGamificationStreaks, "Daily streaks", true, 100)
	add(FeatureGamificationAchievements, "Badges and achievements", true, 100)
	add(FeatureGamificationPerfectBonus, "Bonus XP for perfect quizzes", true, 100)

	add(FeatureTutorChat, "AI tutor chat", true, 100)

	add(FeatureSyncMultiDevice, "Multiple sync devices per learner", true, 100)

	add(FeatureExperimentalAnalytics, "Advanced analytics reads", false, 0)
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_TUTOR_CHAT=false
// Example: FEATURE_NOTIFY_RANK_CHANGED=25 (25% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		val := os.Getenv(envKey)
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		if pct, err := strconv.Atoi(val); err == nil && pct >= 0 && pct <= 100 {
			feature.Enabled = pct > 0
			feature.RolloutPercent = pct
		}
	}
}

// featureNameToEnvKey converts a feature name to its env variable key.
// "tutor.chat" -> "FEATURE_TUTOR_CHAT"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
// A nil context evaluates the flag globally (rollout counts as enabled).
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, exists := ff.features[featureName]
	if !exists {
		return false
	}

	// Per-learner overrides win over everything.
	if ctx != nil && ctx.LearnerID != "" {
		if overrides, ok := ff.learnerOverrides[ctx.LearnerID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	if !feature.Enabled {
		return false
	}

	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Admins see everything that is enabled at all.
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	if feature.RolloutPercent >= 100 {
		return true
	}
	if ctx == nil || ctx.LearnerID == "" {
		return feature.RolloutPercent > 0
	}

	return isInRollout(ctx.LearnerID, featureName, feature.RolloutPercent)
}

// isInRollout buckets a learner into the rollout percentage.
// Consistent hashing keeps learners in their bucket across restarts.
func isInRollout(learnerID, featureName string, percent int) bool {
	if percent <= 0 {
		return false
	}

	h := fnv.New32a()
	h.Write([]byte(learnerID))
	h.Write([]byte(featureName))
	bucket := int(h.Sum32() % 100)

	return bucket < percent
}

// SetLearnerOverride sets a feature override for a specific learner.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetLearnerOverride(learnerID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.learnerOverrides[learnerID] == nil {
		ff.learnerOverrides[learnerID] = make(map[string]bool)
	}
	ff.learnerOverrides[learnerID][featureName] = enabled
}

// ClearLearnerOverrides removes all overrides for a learner.
func (ff *FeatureFlags) ClearLearnerOverrides(learnerID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.learnerOverrides, learnerID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("rollout percent must be 0-100, got %d", percent)
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, exists := ff.features[featureName]
	if !exists {
		return fmt.Errorf("unknown feature: %s", featureName)
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make(map[string]*Feature, len(ff.features))
	for name, f := range ff.features {
		cp := *f
		out[name] = &cp
	}
	return out
}
