// Package oracle defines the scoring oracle boundary: a black-box that
// answers rubric prompts with free-form text. Providers live in
// subpackages; this package owns retries, rate limiting and the robust
// parsing of numeric answers out of whatever the model prints.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jobradar/jobradar/internal/utils"
)

// ErrUnparsable marks an oracle response no usable answer could be
// extracted from. It is retryable, never fatal to a run.
var ErrUnparsable = errors.New("unparsable oracle response")

// Evaluator is the provider contract: one prompt in, free text out.
type Evaluator interface {
	Evaluate(ctx context.Context, prompt string) (string, error)
}

// baseBackoff is the first retry delay; it doubles per attempt.
const baseBackoff = time.Second

// Client wraps a provider with bounded retries, exponential backoff and
// a shared rate limiter so a local inference engine is not overwhelmed.
type Client struct {
	evaluator  Evaluator
	limiter    *rate.Limiter
	maxRetries int
	logger     *zap.Logger
	wait       func(ctx context.Context, d time.Duration) error
}

// NewClient builds a retrying, rate-limited oracle client.
// requestsPerMinute paces calls across all scoring workers.
func NewClient(evaluator Evaluator, maxRetries int, requestsPerMinute float64, logger *zap.Logger) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		evaluator:  evaluator,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerMinute/60.0), 1),
		maxRetries: maxRetries,
		logger:     logger,
		wait:       utils.WaitFor,
	}
}

// AskScore sends the prompt and extracts an integer score from the
// answer. Transport failures and unparsable output both count as failed
// attempts and are retried with backoff.
func (c *Client) AskScore(ctx context.Context, prompt string) (int, error) {
	var score int
	err := c.do(ctx, prompt, func(raw string) error {
		s, perr := ParseScore(raw)
		if perr != nil {
			return perr
		}
		score = s
		return nil
	})
	return score, err
}

// AskMatch sends the prompt and extracts a match assessment (score plus
// matched and missing skill lists) from the answer.
func (c *Client) AskMatch(ctx context.Context, prompt string) (*MatchAnswer, error) {
	var answer *MatchAnswer
	err := c.do(ctx, prompt, func(raw string) error {
		a, perr := ParseMatch(raw)
		if perr != nil {
			return perr
		}
		answer = a
		return nil
	})
	return answer, err
}

// do runs the evaluate-and-parse cycle with bounded retries.
func (c *Client) do(ctx context.Context, prompt string, parse func(raw string) error) error {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		raw, err := c.askOnce(ctx, prompt)
		if err == nil {
			err = parse(raw)
			if err == nil {
				return nil
			}
			c.logger.Debug("oracle response not parsable",
				zap.Int("attempt", attempt),
				zap.String("response_preview", utils.TruncateForLog(raw, 120)),
			)
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt < c.maxRetries {
			delay := baseBackoff << (attempt - 1)
			c.logger.Warn("oracle attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(lastErr),
			)
			if werr := c.wait(ctx, delay); werr != nil {
				return werr
			}
		}
	}

	return fmt.Errorf("oracle failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) askOnce(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return c.evaluator.Evaluate(ctx, prompt)
}
