package gemini

import (
	"errors"
	"strings"
	"sync"
)

// ErrNoCredentials indicates the pool would be empty. Fatal at startup.
var ErrNoCredentials = errors.New("no API credentials available")

// Pool holds an ordered, deduplicated list of API keys with one current
// index. It replaces the process-wide rotation state of earlier revisions
// with an explicit injected object.
//
// Pool is safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	keys    []string
	current int
}

// NewPool creates a credential pool. Blank and duplicate keys are dropped;
// an empty result is a configuration error.
func NewPool(keys []string) (*Pool, error) {
	seen := make(map[string]struct{}, len(keys))
	clean := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		clean = append(clean, k)
	}
	if len(clean) == 0 {
		return nil, ErrNoCredentials
	}
	return &Pool{keys: clean}, nil
}

// Current returns the active credential.
func (p *Pool) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.keys[p.current]
}

// Rotate unconditionally advances to the next credential, wrapping modulo
// pool size, and returns the new current credential.
func (p *Pool) Rotate() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = (p.current + 1) % len(p.keys)
	return p.keys[p.current]
}

// RotateFrom advances only if the current credential still equals pinned.
// Concurrent callers that both observed the same failing credential rotate
// the pool once, not once each; a caller whose pinned credential was already
// replaced keeps whatever a peer rotated to. Returns the current credential.
func (p *Pool) RotateFrom(pinned string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.keys[p.current] == pinned {
		p.current = (p.current + 1) % len(p.keys)
	}
	return p.keys[p.current]
}

// Size returns the number of credentials in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}
