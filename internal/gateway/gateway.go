package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"muse/internal/logging"
)

// ErrRetriesExhausted is returned after the retry ceiling is reached. It is
// distinct from the underlying provider error so callers can tell exhaustion
// apart from a single failed attempt.
var ErrRetriesExhausted = errors.New("max retries exceeded")

const (
	defaultInitialDelay = 1000 * time.Millisecond
	defaultMaxAttempts  = 5
	defaultMaxSlots     = 4
)

// Gateway merges the caller's cognitive configuration into each request and
// retries transient provider failures with exponential backoff.
type Gateway struct {
	client LanguageClient
	cfg    *CognitiveConfig
	sink   UsageSink
	slots  *semaphore.Weighted

	operation    string
	initialDelay time.Duration
	maxAttempts  int
	sleep        func(time.Duration)
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithUsageSink attaches a usage sink that receives token counts from every
// successful call.
func WithUsageSink(sink UsageSink) Option {
	return func(g *Gateway) { g.sink = sink }
}

// WithMaxConcurrentCalls caps the number of in-flight generate calls.
func WithMaxConcurrentCalls(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithRetryPolicy overrides the initial delay and attempt ceiling.
func WithRetryPolicy(initialDelay time.Duration, maxAttempts int) Option {
	return func(g *Gateway) {
		if initialDelay > 0 {
			g.initialDelay = initialDelay
		}
		if maxAttempts > 0 {
			g.maxAttempts = maxAttempts
		}
	}
}

// withSleep replaces the backoff sleep. Test seam.
func withSleep(fn func(time.Duration)) Option {
	return func(g *Gateway) { g.sleep = fn }
}

// New creates a gateway over the given client. cfg is shared mutable state:
// the caller adjusts it between calls and the gateway reads it at call time.
func New(client LanguageClient, cfg *CognitiveConfig, opts ...Option) *Gateway {
	g := &Gateway{
		client:       client,
		cfg:          cfg,
		slots:        semaphore.NewWeighted(defaultMaxSlots),
		operation:    "generate",
		initialDelay: defaultInitialDelay,
		maxAttempts:  defaultMaxAttempts,
		sleep:        time.Sleep,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithOperation returns a gateway view that tags usage records with the
// given operation name. The underlying client, config, and policy are shared.
func (g *Gateway) WithOperation(op string) *Gateway {
	view := *g
	view.operation = op
	return &view
}

// Config returns the shared cognitive configuration.
func (g *Gateway) Config() *CognitiveConfig {
	return g.cfg
}

// Process sends content through one generate call, retrying 503/429 failures
// with exponential backoff. A modelOverride of "" defers to the configured
// thought speed, which in turn defers to the system default.
func (g *Gateway) Process(ctx context.Context, content string, modelOverride string) (*CallOutcome, error) {
	model := modelOverride
	if model == "" {
		model = g.cfg.ThoughtSpeed
	}
	if model == "" {
		model = DefaultModel
	}

	req := &CallRequest{
		Contents:          content,
		Model:             model,
		SystemInstruction: g.cfg.SystemInstruction,
	}

	// The reasoning-trace block goes out only when explicitly enabled, and
	// never to a model that rejects the parameter.
	if g.cfg.IncludeTrace && SupportsTrace(model) {
		req.Thinking = &ThinkingConfig{
			IncludeThoughts: true,
			Level:           g.cfg.Clarity.ThinkingLevel(),
		}
	}

	if err := g.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire call slot: %w", err)
	}
	defer g.slots.Release(1)

	logging.GatewayDebug("Process: model=%s op=%s content_len=%d trace=%t",
		model, g.operation, len(content), req.Thinking != nil)

	startTime := time.Now()
	delay := g.initialDelay
	var lastErr error

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		outcome, err := g.client.GenerateContent(ctx, req)
		if err == nil {
			logging.Gateway("Process: model=%s op=%s completed in %v input_tokens=%d output_tokens=%d cached_tokens=%d",
				model, g.operation, time.Since(startTime),
				outcome.Usage.InputTokens, outcome.Usage.OutputTokens, outcome.Usage.CachedTokens)
			if g.sink != nil {
				g.sink.Record(model, g.operation,
					outcome.Usage.InputTokens, outcome.Usage.OutputTokens, outcome.Usage.CachedTokens)
			}
			return outcome, nil
		}

		if !retryable(err) {
			return nil, err
		}

		lastErr = err
		if attempt == g.maxAttempts {
			break
		}

		logging.GatewayWarn("Process: transient failure (attempt %d/%d), retrying in %v: %v",
			attempt, g.maxAttempts, delay, err)
		g.sleep(delay)
		delay *= 2
	}

	logging.GatewayError("Process: max retries exceeded after %v: %v", time.Since(startTime), lastErr)
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, g.maxAttempts, lastErr)
}

// retryable classifies transient provider failures: service unavailable (503)
// and rate limiting (429). Checked both through the typed status and through
// the error text, since provider clients are inconsistent about error shapes.
func retryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		if pe.StatusCode == 503 || pe.StatusCode == 429 {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "503") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "rate limit")
}
