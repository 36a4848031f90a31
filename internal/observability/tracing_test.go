package observability

import (
	"context"
	"testing"
)

func TestSetupDisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{ServiceName: "arca"}, nil)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if shutdown == nil {
		t.Fatal("Setup() returned nil shutdown")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("no-op shutdown returned %v", err)
	}
}

func TestSetupWithEndpoint(t *testing.T) {
	// Exporter construction is lazy; setup succeeds without a live
	// collector and shutdown flushes whatever is pending.
	shutdown, err := Setup(context.Background(), Config{
		Endpoint:    "localhost:4318",
		ServiceName: "arca",
		Environment: "test",
	}, nil)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
