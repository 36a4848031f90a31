package gemini

import (
	"errors"
	"sync"
	"testing"
)

func TestNewPool(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		wantErr  error
		wantSize int
	}{
		{name: "single key", keys: []string{"k1"}, wantSize: 1},
		{name: "dedupes and drops blanks", keys: []string{"k1", "", "k2", "k1", "  "}, wantSize: 2},
		{name: "empty list", keys: nil, wantErr: ErrNoCredentials},
		{name: "only blanks", keys: []string{"", "   "}, wantErr: ErrNoCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPool(tt.keys)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewPool() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewPool() error = %v", err)
			}
			if p.Size() != tt.wantSize {
				t.Errorf("Size() = %d, want %d", p.Size(), tt.wantSize)
			}
		})
	}
}

// Full-cycle property: N rotations on a pool of N keys returns to the start.
func TestRotateFullCycle(t *testing.T) {
	keys := []string{"a", "b", "c"}
	p, err := NewPool(keys)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}

	start := p.Current()
	seen := map[string]bool{start: true}
	for i := 0; i < len(keys); i++ {
		seen[p.Rotate()] = true
	}

	if got := p.Current(); got != start {
		t.Errorf("after %d rotations Current() = %q, want %q", len(keys), got, start)
	}
	if len(seen) != len(keys) {
		t.Errorf("rotation visited %d distinct keys, want %d", len(seen), len(keys))
	}
}

func TestRotateWrapsSingleKey(t *testing.T) {
	p, err := NewPool([]string{"only"})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		if got := p.Rotate(); got != "only" {
			t.Fatalf("Rotate() = %q, want %q", got, "only")
		}
	}
}

// Two requests that both observed the same failing credential must rotate
// the pool once, not once each. This pins down the shared-state ambiguity:
// rotation is pick-and-pin per call, not blind double advancement.
func TestRotateFromCollapsesConcurrentRotations(t *testing.T) {
	p, err := NewPool([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}

	pinned := p.Current() // both requests pinned "a"
	first := p.RotateFrom(pinned)
	second := p.RotateFrom(pinned) // already rotated away; no second advance

	if first != "b" || second != "b" {
		t.Errorf("RotateFrom twice from %q = %q, %q; want b, b", pinned, first, second)
	}
}

func TestPoolConcurrentAccess(t *testing.T) {
	p, err := NewPool([]string{"a", "b", "c", "d"})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := p.Current()
			p.RotateFrom(key)
			_ = p.Rotate()
		}()
	}
	wg.Wait()

	// Index must remain in range regardless of interleaving.
	got := p.Current()
	valid := map[string]bool{"a": true, "b": true, "c": true, "d": true}
	if !valid[got] {
		t.Errorf("Current() = %q, not a pool member", got)
	}
}
