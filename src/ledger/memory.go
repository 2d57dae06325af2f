package ledger

import (
	"context"
	"sync"
)

// MemoryLedger is a thread-safe in-memory implementation of Ledger.
// Its contents do not survive a restart.
type MemoryLedger struct {
	mu   sync.Mutex
	seen map[Position]struct{}
}

// NewMemoryLedger creates a new in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: make(map[Position]struct{})}
}

func (l *MemoryLedger) MarkProcessed(ctx context.Context, pos Position) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[pos]; ok {
		return false, nil
	}
	l.seen[pos] = struct{}{}
	return true, nil
}

// Len returns the number of recorded positions.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

// Close is a no-op for the in-memory ledger.
func (l *MemoryLedger) Close() error {
	return nil
}
