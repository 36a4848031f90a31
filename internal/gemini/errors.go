package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ErrCredentialsExhausted indicates every credential in the pool hit its
// quota within one operation's retry budget.
var ErrCredentialsExhausted = errors.New("all API credentials exhausted")

// Kind classifies a remote failure once, at the call site, instead of
// re-parsing error text in every retry loop.
type Kind int

const (
	// KindInvalid covers permanent failures: malformed requests, auth
	// problems, unknown errors. Never retried.
	KindInvalid Kind = iota

	// KindRateLimited covers quota and rate-limit signals. Recovered by
	// rotating to the next credential and retrying.
	KindRateLimited

	// KindTransient covers 5xx responses and call timeouts. Retried on the
	// same credential.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	default:
		return "invalid"
	}
}

// rateLimitMarkers are the loose, case-insensitive substrings recognized as
// quota signals when no structured API error is available.
var rateLimitMarkers = []string{"429", "quota", "rate limit", "resource_exhausted"}

// Classify maps a remote error to its Kind. Structured genai API errors are
// matched by status code; anything else falls back to substring matching on
// the error text.
func Classify(err error) Kind {
	if err == nil {
		return KindInvalid
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return KindRateLimited
		case apiErr.Code >= 500:
			return KindTransient
		}
		// Fall through: some quota responses arrive as 403 with quota text.
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return KindRateLimited
		}
	}
	if strings.Contains(msg, "500") || strings.Contains(msg, "503") ||
		strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "unavailable") {
		return KindTransient
	}

	return KindInvalid
}

// exhausted wraps the final error after the retry budget runs out.
func exhausted(attempts int, last error) error {
	return fmt.Errorf("%w after %d attempts: %v", ErrCredentialsExhausted, attempts, last)
}
