// internal/club/lifecycle.go
package club

import (
	"fmt"
	"sync"

	"clubledger/internal/domain"
)

// lifecycle is the process-wide initialization guard. It moves from
// uninitialized to initialized exactly once and never back.
type lifecycle struct {
	mu          sync.Mutex
	initialized bool
}

// initialize flips the guard. A second call is not retryable and fails
// with ErrInvalidState.
func (l *lifecycle) initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.initialized {
		return fmt.Errorf("already initialized: %w", domain.ErrInvalidState)
	}
	l.initialized = true
	return nil
}

// check gates every other operation.
func (l *lifecycle) check() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized {
		return fmt.Errorf("not initialized: %w", domain.ErrInvalidState)
	}
	return nil
}
