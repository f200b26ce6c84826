// Package completion adapts an opaque text-generation backend into a
// retrying, rate-limited, per-call timed client.
package completion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jorge-barreto/appgen/internal/metrics"
)

// Capability is a raw backend: prompt in, text out. Implementations tag
// failures with Transient or Fatal; untagged errors are treated as transient.
type Capability interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(ctx context.Context, prompt string) (string, error)

func (f CapabilityFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Completer is what pipeline stages depend on. Tests substitute a stub.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string, opts Options) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}

// Options describe one call.
type Options struct {
	// Purpose labels logs and metrics ("features", "plan", "artifact", ...).
	Purpose string
	// Timeout overrides the client's per-attempt timeout when positive.
	Timeout time.Duration
}

// Settings tune retry and pacing behavior.
type Settings struct {
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// RateLimit is the allowed request rate per second; zero disables it.
	RateLimit float64
}

// DefaultSettings mirror the config defaults.
func DefaultSettings() Settings {
	return Settings{
		Timeout:        120 * time.Second,
		MaxAttempts:    4,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
	}
}

// Client retries transient failures of a Capability with exponential backoff.
// It holds no conversation state; every call is independent.
type Client struct {
	backend  Capability
	settings Settings
	limiter  *rate.Limiter
	log      *zap.Logger
	metrics  *metrics.Recorder
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Client) { c.metrics = m }
}

// New wraps backend. Zero-valued settings fall back to DefaultSettings.
func New(backend Capability, s Settings, opts ...Option) *Client {
	def := DefaultSettings()
	if s.Timeout <= 0 {
		s.Timeout = def.Timeout
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = def.MaxAttempts
	}
	if s.InitialBackoff <= 0 {
		s.InitialBackoff = def.InitialBackoff
	}
	if s.MaxBackoff <= 0 {
		s.MaxBackoff = def.MaxBackoff
	}
	if s.MaxBackoff < s.InitialBackoff {
		s.MaxBackoff = s.InitialBackoff
	}
	c := &Client{backend: backend, settings: s, log: zap.NewNop()}
	if s.RateLimit > 0 {
		burst := int(math.Ceil(s.RateLimit))
		c.limiter = rate.NewLimiter(rate.Limit(s.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends prompt to the backend, retrying transient failures. Fatal
// failures return at once; a cancelled ctx stops the retry loop immediately.
// Every returned error is an *Error.
func (c *Client) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	purpose := opts.Purpose
	if purpose == "" {
		purpose = "unspecified"
	}
	timeout := c.settings.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	log := c.log.With(zap.String("purpose", purpose))

	var attempts int
	var last error
	op := func() (string, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", backoff.Permanent(err)
			}
		}
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		out, err := c.backend.Complete(callCtx, prompt)
		if err == nil {
			log.Debug("completion ok",
				zap.Int("attempt", attempts),
				zap.Duration("elapsed", time.Since(start)),
				zap.Int("chars", len(out)))
			return out, nil
		}
		if ctx.Err() != nil {
			last = err
			return "", backoff.Permanent(err)
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrFatalRequest) {
			err = Transient(fmt.Errorf("attempt timed out after %s: %w", timeout, err))
		}
		if errors.Is(err, ErrFatalRequest) {
			last = err
			return "", backoff.Permanent(err)
		}
		if !errors.Is(err, ErrTransientUnavailable) {
			err = Transient(err)
		}
		last = err
		return "", err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.settings.InitialBackoff
	b.MaxInterval = c.settings.MaxBackoff

	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.settings.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.metrics.CompletionRetry(purpose)
			log.Warn("completion attempt failed, retrying",
				zap.Int("attempt", attempts),
				zap.Duration("wait", wait),
				zap.Error(err))
		}),
	)
	if err == nil {
		c.metrics.CompletionCall(purpose, "ok")
		return out, nil
	}

	if ctxErr := context.Cause(ctx); ctxErr != nil {
		c.metrics.CompletionCall(purpose, "cancelled")
		return "", &Error{Kind: ErrFatalRequest, Attempts: attempts, Err: ctxErr}
	}
	cause := last
	if cause == nil {
		cause = err
	}
	outcome := "fatal"
	if errors.Is(cause, ErrTransientUnavailable) {
		outcome = "transient"
	}
	c.metrics.CompletionCall(purpose, outcome)
	log.Warn("completion failed",
		zap.Int("attempts", attempts),
		zap.String("outcome", outcome),
		zap.Error(cause))
	return "", &Error{Kind: ErrFatalRequest, Attempts: attempts, Err: cause}
}
