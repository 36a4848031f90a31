// Package gemini wraps the Gemini API with multi-credential rotation.
//
// The Client owns a credential Pool and retries quota-limited calls across
// credentials with a bounded budget. Each attempt pins its credential at
// call start, so a rotation performed by a concurrent request never changes
// the key of an in-flight call.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/arcalabs/arca/internal/log"
)

// Purpose distinguishes document from query embedding intent. It maps to
// the remote task-type parameter and does not change client logic.
type Purpose string

const (
	PurposeDocument Purpose = "RETRIEVAL_DOCUMENT"
	PurposeQuery    Purpose = "RETRIEVAL_QUERY"
)

// Default client tunables.
const (
	DefaultCallTimeout = 30 * time.Second
	DefaultRetryFactor = 2
	DefaultTemperature = float32(0.2)
)

// backend is the minimal SDK surface the client needs. The production
// implementation wraps *genai.Client; tests substitute fakes.
type backend interface {
	embed(ctx context.Context, model, text, taskType string, dim int32) ([]float32, error)
	generate(ctx context.Context, model, prompt string, schema *genai.Schema) (string, error)
}

// newBackendFunc constructs a backend for one API key.
type newBackendFunc func(ctx context.Context, apiKey string) (backend, error)

// Config holds Client construction parameters.
type Config struct {
	GenerationModel string
	EmbedderModel   string
	Dimension       int32

	// RetryFactor scales the retry ceiling: one operation attempts at most
	// RetryFactor * pool size times.
	RetryFactor int

	// CallTimeout bounds each individual remote call. Expiry is classified
	// transient and retried.
	CallTimeout time.Duration

	// RatePerSecond paces outbound calls across all credentials.
	// Zero disables pacing.
	RatePerSecond float64
}

// Client issues embedding and generation calls with credential rotation.
// Safe for concurrent use.
type Client struct {
	cfg    Config
	pool   *Pool
	logger log.Logger

	limiter    *rate.Limiter
	newBackend newBackendFunc

	mu       sync.Mutex
	backends map[string]backend // one SDK client per credential
}

// NewClient creates a Client over the given credential pool.
func NewClient(cfg Config, pool *Pool, logger log.Logger) (*Client, error) {
	if pool == nil {
		return nil, ErrNoCredentials
	}
	if cfg.GenerationModel == "" || cfg.EmbedderModel == "" {
		return nil, fmt.Errorf("generation and embedder models are required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.RetryFactor <= 0 {
		cfg.RetryFactor = DefaultRetryFactor
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if logger == nil {
		logger = log.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	return &Client{
		cfg:        cfg,
		pool:       pool,
		logger:     logger,
		limiter:    limiter,
		newBackend: newGoogleBackend,
		backends:   make(map[string]backend),
	}, nil
}

// Rotate advances the credential pool. Exposed for the pipeline's
// attempt-level rotation on quota failures.
func (c *Client) Rotate() {
	c.pool.Rotate()
}

// Embed returns a fixed-length vector for the given text. On quota errors
// the call rotates credentials and retries up to RetryFactor * pool size
// attempts; transient errors retry on the same credential; any other error
// fails immediately.
func (c *Client) Embed(ctx context.Context, text string, purpose Purpose) ([]float32, error) {
	var vec []float32
	err := c.withRetry(ctx, "embed", func(callCtx context.Context, b backend) error {
		v, embedErr := b.embed(callCtx, c.cfg.EmbedderModel, text, string(purpose), c.cfg.Dimension)
		if embedErr != nil {
			return embedErr
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(vec) != int(c.cfg.Dimension) {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vec), c.cfg.Dimension)
	}
	return vec, nil
}

// EmbedResult is the tagged per-item outcome of a batch embedding. A failed
// item carries its error and a nil vector; callers decide whether to skip
// degraded items. Input order is preserved.
type EmbedResult struct {
	Vector []float32
	Err    error
}

// Degraded reports whether the item failed to embed.
func (r EmbedResult) Degraded() bool { return r.Err != nil }

// EmbedBatch embeds each text and returns one result per input, aligned
// with input order. Credential exhaustion aborts the remainder of the
// batch, since further attempts would burn the same exhausted pool.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, purpose Purpose) []EmbedResult {
	results := make([]EmbedResult, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text, purpose)
		results[i] = EmbedResult{Vector: vec, Err: err}
		if err != nil && (errors.Is(err, ErrCredentialsExhausted) || ctx.Err() != nil) {
			for j := i + 1; j < len(texts); j++ {
				results[j] = EmbedResult{Err: err}
			}
			break
		}
	}
	return results
}

// Generate issues a structured JSON generation call and returns the raw
// response text. Same rotation and retry policy as Embed.
func (c *Client) Generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	var out string
	err := c.withRetry(ctx, "generate", func(callCtx context.Context, b backend) error {
		text, genErr := b.generate(callCtx, c.cfg.GenerationModel, prompt, schema)
		if genErr != nil {
			return genErr
		}
		out = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// withRetry runs fn with pick-and-pin credential selection and the bounded
// rotation/retry policy.
func (c *Client) withRetry(ctx context.Context, op string, fn func(ctx context.Context, b backend) error) error {
	maxAttempts := c.cfg.RetryFactor * c.pool.Size()
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}

		// Pin the credential for this attempt.
		key := c.pool.Current()
		b, err := c.backendFor(ctx, key)
		if err != nil {
			return fmt.Errorf("creating API client: %w", err)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		err = fn(callCtx, b)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		switch Classify(err) {
		case KindRateLimited:
			c.logger.Warn("credential rate limited, rotating",
				"op", op, "attempt", attempt, "max_attempts", maxAttempts)
			c.pool.RotateFrom(key)
		case KindTransient:
			c.logger.Warn("transient remote failure, retrying",
				"op", op, "attempt", attempt, "error", err)
		default:
			return fmt.Errorf("%s: %w", op, err)
		}

		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
	}

	return exhausted(maxAttempts, lastErr)
}

// backendFor returns the cached SDK client for a credential, creating it on
// first use.
func (c *Client) backendFor(ctx context.Context, key string) (backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.backends[key]; ok {
		return b, nil
	}
	b, err := c.newBackend(ctx, key)
	if err != nil {
		return nil, err
	}
	c.backends[key] = b
	return b, nil
}
