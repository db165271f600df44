package tutor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domaintutor "github.com/rianlab/rianhub/internal/domain/tutor"
	"github.com/rianlab/rianhub/pkg/retry"
)

func TestBuildSystemPrompt_Thai(t *testing.T) {
	prompt := BuildSystemPrompt(domaintutor.Profile{
		LearnerName:   "Nok",
		Language:      "th",
		Level:         4,
		CurrentStreak: 12,
		Strengths:     []string{"พยัญชนะ", "สระ"},
		Weaknesses:    []string{"วรรณยุกต์"},
		RustySkills:   []string{"ตัวสะกด"},
	})

	assert.Contains(t, prompt, "Answer in Thai.")
	assert.Contains(t, prompt, "Name: Nok")
	assert.Contains(t, prompt, "Level: 4")
	assert.Contains(t, prompt, "Daily streak: 12 days")
	assert.Contains(t, prompt, "Strong in: พยัญชนะ, สระ")
	assert.Contains(t, prompt, "Struggling with: วรรณยุกต์")
	assert.Contains(t, prompt, "Due for review: ตัวสะกด")
}

func TestBuildSystemPrompt_EnglishMinimalProfile(t *testing.T) {
	prompt := BuildSystemPrompt(domaintutor.Profile{Language: "en", Level: 1})

	assert.Contains(t, prompt, "Answer in English.")
	assert.NotContains(t, prompt, "Name:")
	assert.NotContains(t, prompt, "Daily streak:")
	assert.NotContains(t, prompt, "Strong in:")
}

func TestDegradedAnswer_LanguageSelection(t *testing.T) {
	en := degradedAnswer("en")
	th := degradedAnswer("th")

	assert.True(t, strings.HasPrefix(en, "Sorry"))
	assert.NotEqual(t, en, th)
	// Unknown languages fall back to Thai, the platform default.
	assert.Equal(t, th, degradedAnswer("fr"))
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	c := NewClient(DefaultClientConfig("test-key"))

	_, err := c.Answer(context.Background(), AnswerRequest{Question: "   "})
	assert.Error(t, err)
}

func TestRateLimiter_BurstThenThrottle(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 100,
		BurstSize:         2,
		MinInterval:       0,
		WaitTimeout:       time.Second,
	})

	assert.True(t, rl.TryAllow())
	assert.True(t, rl.TryAllow())
	assert.False(t, rl.TryAllow(), "bucket should be empty after the burst")
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 0.001,
		BurstSize:         1,
		WaitTimeout:       time.Second,
	})

	require.True(t, rl.TryAllow())
	require.False(t, rl.TryAllow())

	rl.Reset()
	assert.True(t, rl.TryAllow())
}

func TestRateLimiter_AllowRespectsContext(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 0.001,
		BurstSize:         1,
		WaitTimeout:       10 * time.Second,
	})
	require.True(t, rl.TryAllow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.Allow(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClassify_ContextErrorsArePermanent(t *testing.T) {
	c := NewClient(DefaultClientConfig("test-key"))

	err := c.classify(context.DeadlineExceeded)
	assert.True(t, retry.IsPermanent(err))

	err = c.classify(assert.AnError)
	assert.True(t, retry.IsRetryable(err), "unknown transport errors should be retried")
}
