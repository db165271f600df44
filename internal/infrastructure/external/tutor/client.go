// Package tutor implements the Anthropic-backed AI tutor client.
// It wraps the model call with rate limiting, retries and a circuit
// breaker, and degrades to a canned bilingual answer when the model is
// unreachable.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	domaintutor "github.com/rianlab/rianhub/internal/domain/tutor"
	"github.com/rianlab/rianhub/pkg/circuitbreaker"
	"github.com/rianlab/rianhub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the tutor client.
type ClientConfig struct {
	// APIKey authenticates against the Anthropic API.
	APIKey string

	// Model is the model identifier to call.
	Model string

	// MaxTokens bounds the answer length.
	MaxTokens int

	// Timeout is the per-call timeout.
	Timeout time.Duration

	// RateLimiterConfig throttles outgoing calls.
	RateLimiterConfig RateLimiterConfig

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(apiKey string) ClientConfig {
	return ClientConfig{
		APIKey:            apiKey,
		Model:             "claude-3-5-haiku-latest",
		MaxTokens:         1024,
		Timeout:           60 * time.Second,
		RateLimiterConfig: DefaultRateLimiterConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// AnswerRequest carries one question with its conversation context.
type AnswerRequest struct {
	Profile  domaintutor.Profile
	Window   []domaintutor.Message
	Question string
}

// AnswerResult is the model's reply.
type AnswerResult struct {
	Content string

	// Degraded is set when the canned fallback was served.
	Degraded bool
}

// Client calls the Anthropic API on behalf of the tutor chat.
type Client struct {
	config  ClientConfig
	api     anthropic.Client
	logger  *slog.Logger
	limiter *RateLimiter
	breaker *circuitbreaker.CircuitBreaker
	retrier *retry.Retrier
}

// NewClient creates a new tutor client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Client{
		config:  config,
		api:     anthropic.NewClient(option.WithAPIKey(config.APIKey)),
		logger:  config.Logger,
		limiter: NewRateLimiter(config.RateLimiterConfig),
		breaker: circuitbreaker.New("anthropic"),
		retrier: retry.AnthropicRetrier(),
	}
}

// Answer sends the question to the model and returns the reply. When
// the circuit is open or every retry fails, a degraded answer in the
// learner's language is returned instead of an error.
func (c *Client) Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, errors.New("question is required")
	}

	if err := c.limiter.Allow(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var content string
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			reply, callErr := c.call(ctx, req)
			if callErr != nil {
				return c.classify(callErr)
			}
			content = reply
			return nil
		})
	})
	if err != nil {
		c.logger.Warn("tutor model call failed, serving degraded answer",
			"error", err,
			"breaker_state", c.breaker.State().String(),
		)
		return &AnswerResult{
			Content:  degradedAnswer(req.Profile.Language),
			Degraded: true,
		}, nil
	}

	return &AnswerResult{Content: content}, nil
}

// call performs one model invocation.
func (c *Client) call(ctx context.Context, req AnswerRequest) (string, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Window)+1)
	for _, m := range req.Window {
		if m.Degraded {
			continue
		}
		switch m.Role {
		case domaintutor.RoleLearner:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case domaintutor.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Question)))

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		System: []anthropic.TextBlockParam{
			{Text: BuildSystemPrompt(req.Profile)},
		},
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(msg.Content) == 0 {
		return "", errors.New("empty model response")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		sb.WriteString(block.Text)
	}
	return sb.String(), nil
}

// classify splits API errors into retryable and permanent for the
// retrier. Auth and validation failures never retry.
func (c *Client) classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 529:
			return retry.Retryable(err)
		default:
			return retry.Permanent(err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Permanent(err)
	}
	// Transport-level failures are worth another attempt.
	return retry.Retryable(err)
}

// BreakerState exposes the circuit state for health endpoints.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// degradedAnswer returns the canned fallback in the learner's language.
func degradedAnswer(language string) string {
	if language == "en" {
		return "Sorry, the tutor is unavailable right now. Your question was saved; please try again in a few minutes."
	}
	return "ขออภัย ติวเตอร์ไม่พร้อมใช้งานในขณะนี้ คำถามของคุณถูกบันทึกไว้แล้ว กรุณาลองใหม่อีกครั้งในอีกสักครู่"
}
