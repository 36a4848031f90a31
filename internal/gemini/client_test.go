package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"
)

// fakeBackend scripts per-call outcomes and records the key it was built for.
type fakeBackend struct {
	key   string
	calls *callLog
}

// callLog is shared across all fake backends of one test client.
type callLog struct {
	keys    []string // key used per attempt, in order
	outcome func(attempt int) error
	vector  []float32
	text    string
}

func (f *fakeBackend) embed(_ context.Context, _, _, _ string, _ int32) ([]float32, error) {
	f.calls.keys = append(f.calls.keys, f.key)
	if err := f.calls.outcome(len(f.calls.keys)); err != nil {
		return nil, err
	}
	return f.calls.vector, nil
}

func (f *fakeBackend) generate(_ context.Context, _, _ string, _ *genai.Schema) (string, error) {
	f.calls.keys = append(f.calls.keys, f.key)
	if err := f.calls.outcome(len(f.calls.keys)); err != nil {
		return "", err
	}
	return f.calls.text, nil
}

func newTestClient(t *testing.T, keys []string, log *callLog) *Client {
	t.Helper()

	pool, err := NewPool(keys)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	c, err := NewClient(Config{
		GenerationModel: "gen-model",
		EmbedderModel:   "embed-model",
		Dimension:       3,
		RetryFactor:     2,
	}, pool, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	c.newBackend = func(_ context.Context, apiKey string) (backend, error) {
		return &fakeBackend{key: apiKey, calls: log}, nil
	}
	return c
}

var quotaErr = genai.APIError{Code: 429, Message: "quota exceeded"}

// Two quota failures on a 2-credential pool with budget 4: two rotations,
// success on the third attempt using the wrapped-around first credential.
func TestEmbedRotatesOnQuota(t *testing.T) {
	log := &callLog{
		vector: []float32{1, 2, 3},
		outcome: func(attempt int) error {
			if attempt <= 2 {
				return quotaErr
			}
			return nil
		},
	}
	c := newTestClient(t, []string{"key-a", "key-b"}, log)

	vec, err := c.Embed(context.Background(), "text", PurposeDocument)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("vector length = %d, want 3", len(vec))
	}

	wantKeys := []string{"key-a", "key-b", "key-a"}
	if len(log.keys) != len(wantKeys) {
		t.Fatalf("attempts = %v, want %v", log.keys, wantKeys)
	}
	for i := range wantKeys {
		if log.keys[i] != wantKeys[i] {
			t.Errorf("attempt %d used %q, want %q", i+1, log.keys[i], wantKeys[i])
		}
	}
}

func TestEmbedExhaustsCredentials(t *testing.T) {
	log := &callLog{
		outcome: func(int) error { return quotaErr },
	}
	c := newTestClient(t, []string{"key-a", "key-b"}, log)

	_, err := c.Embed(context.Background(), "text", PurposeDocument)
	if !errors.Is(err, ErrCredentialsExhausted) {
		t.Fatalf("Embed() error = %v, want ErrCredentialsExhausted", err)
	}
	// RetryFactor 2 on a 2-key pool: exactly 4 attempts.
	if len(log.keys) != 4 {
		t.Errorf("attempts = %d, want 4", len(log.keys))
	}
}

func TestEmbedFailsFastOnInvalid(t *testing.T) {
	log := &callLog{
		outcome: func(int) error { return errors.New("invalid argument: bad payload") },
	}
	c := newTestClient(t, []string{"key-a", "key-b"}, log)

	_, err := c.Embed(context.Background(), "text", PurposeDocument)
	if err == nil {
		t.Fatal("Embed() = nil, want error")
	}
	if errors.Is(err, ErrCredentialsExhausted) {
		t.Fatalf("permanent error should not be reported as exhaustion: %v", err)
	}
	if len(log.keys) != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on permanent errors)", len(log.keys))
	}
}

func TestEmbedRetriesTransientWithoutRotation(t *testing.T) {
	log := &callLog{
		vector: []float32{1, 2, 3},
		outcome: func(attempt int) error {
			if attempt == 1 {
				return genai.APIError{Code: 503, Message: "overloaded"}
			}
			return nil
		},
	}
	c := newTestClient(t, []string{"key-a", "key-b"}, log)

	if _, err := c.Embed(context.Background(), "text", PurposeQuery); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	wantKeys := []string{"key-a", "key-a"}
	for i := range wantKeys {
		if log.keys[i] != wantKeys[i] {
			t.Errorf("attempt %d used %q, want %q (transient must not rotate)", i+1, log.keys[i], wantKeys[i])
		}
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	log := &callLog{
		vector:  []float32{1, 2}, // client configured for 3
		outcome: func(int) error { return nil },
	}
	c := newTestClient(t, []string{"key-a"}, log)

	if _, err := c.Embed(context.Background(), "text", PurposeDocument); err == nil {
		t.Fatal("Embed() = nil, want dimension mismatch error")
	}
}

func TestEmbedBatchTagsDegradedItems(t *testing.T) {
	log := &callLog{
		vector: []float32{1, 2, 3},
		outcome: func(attempt int) error {
			if attempt == 2 {
				return errors.New("invalid argument: item rejected")
			}
			return nil
		},
	}
	c := newTestClient(t, []string{"key-a"}, log)

	results := c.EmbedBatch(context.Background(), []string{"one", "two", "three"}, PurposeDocument)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Degraded() || results[2].Degraded() {
		t.Errorf("items 0 and 2 should succeed: %v, %v", results[0].Err, results[2].Err)
	}
	if !results[1].Degraded() {
		t.Error("item 1 should be degraded")
	}
	if results[1].Vector != nil {
		t.Error("degraded item must not carry a vector")
	}
}

func TestEmbedBatchAbortsOnExhaustion(t *testing.T) {
	log := &callLog{
		outcome: func(int) error { return quotaErr },
	}
	c := newTestClient(t, []string{"key-a"}, log)

	results := c.EmbedBatch(context.Background(), []string{"one", "two", "three"}, PurposeDocument)
	for i, r := range results {
		if !r.Degraded() {
			t.Errorf("item %d should be degraded after exhaustion", i)
		}
	}
	// Item one burns the full budget (2 attempts on 1 key); the rest abort
	// without further remote calls.
	if len(log.keys) != 2 {
		t.Errorf("remote attempts = %d, want 2", len(log.keys))
	}
}

func TestGenerateRotatesOnQuota(t *testing.T) {
	log := &callLog{
		text: `{"severity":"HIGH"}`,
		outcome: func(attempt int) error {
			if attempt == 1 {
				return quotaErr
			}
			return nil
		},
	}
	c := newTestClient(t, []string{"key-a", "key-b"}, log)

	out, err := c.Generate(context.Background(), "prompt", nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != `{"severity":"HIGH"}` {
		t.Errorf("Generate() = %q", out)
	}
	if log.keys[0] != "key-a" || log.keys[1] != "key-b" {
		t.Errorf("keys = %v, want rotation a -> b", log.keys)
	}
}
