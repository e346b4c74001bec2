package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/KhangChau12/scholarship-advisor/internal/cache"
	"github.com/KhangChau12/scholarship-advisor/internal/pace"
)

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 500 * time.Millisecond
	schemaPromptPreface = "\n\nRespond with a single JSON object and no prose. Response format (JSON):\n"
)

// Completer sends completion requests through the shared pacer and cache. A
// cache hit returns immediately and skips both the pacer and the network;
// a miss paces the call, retries transient and rate-limit failures with
// exponential backoff, and memoizes the successful text.
type Completer struct {
	Client              Client
	Pacer               *pace.Pacer
	Cache               *cache.Cache
	DefaultModel        string
	DefaultTemperature  float64
	SupportsTemperature bool
	DefaultMaxTokens    int
	MaxAttempts         int
	RetryBackoff        time.Duration
	Logger              *zap.Logger
}

// Complete resolves the request to raw text or a classified transport error.
func (c Completer) Complete(ctx context.Context, request Request) (string, error) {
	key := request.Key()
	if c.Cache != nil {
		if cached, hit := c.Cache.Get(key); hit {
			c.logger().Debug("completion cache hit", zap.String("key", key[:12]))
			return cached, nil
		}
	}

	payload := c.buildPayload(request)

	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	backoff := c.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if c.Pacer != nil {
			if err := c.Pacer.Acquire(ctx); err != nil {
				return "", &TransientError{Err: err}
			}
		}

		text, err := c.Client.CreateChatCompletion(ctx, payload)
		if err == nil {
			if c.Cache != nil {
				c.Cache.Put(key, text)
			}
			return text, nil
		}
		lastErr = err

		wait, retryable := retryDelay(err, backoff, attempt)
		if !retryable || attempt == attempts {
			break
		}
		c.logger().Warn("completion attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if sleepErr := sleepContext(ctx, wait); sleepErr != nil {
			return "", &TransientError{Err: sleepErr}
		}
	}
	return "", lastErr
}

func (c Completer) buildPayload(request Request) chatCompletionRequest {
	model := request.Model
	if model == "" {
		model = c.DefaultModel
	}
	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.DefaultMaxTokens
	}

	system := request.System
	if request.Schema.Len() > 0 {
		system += schemaPromptPreface + request.Schema.PromptSkeleton()
	}

	messages := make([]Message, 0, len(request.Messages)+1)
	if system != "" {
		messages = append(messages, Message{Role: "system", Content: system})
	}
	messages = append(messages, request.Messages...)

	payload := chatCompletionRequest{
		Model:               model,
		Messages:            messages,
		MaxCompletionTokens: maxTokens,
	}
	if c.SupportsTemperature {
		temperature := request.Temperature
		if temperature == 0 {
			temperature = c.DefaultTemperature
		}
		if temperature != 0 && temperature != 1 {
			payload.Temperature = &temperature
		}
	}
	return payload
}

// retryDelay decides whether the error class is retryable and how long to
// wait before the next attempt.
func retryDelay(err error, backoff time.Duration, attempt int) (time.Duration, bool) {
	wait := backoff << (attempt - 1)

	var rateLimited *RateLimitError
	if errors.As(err, &rateLimited) {
		if rateLimited.RetryAfter > wait {
			wait = rateLimited.RetryAfter
		}
		return wait, true
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return wait, true
	}
	return 0, false
}

func sleepContext(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c Completer) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}
