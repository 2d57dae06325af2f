// Package ledger records which consumed records were already handled, so a
// redelivered record can be recognised and skipped.
package ledger

import (
	"context"
	"fmt"

	"orderflow/src/config"
)

// Position identifies a record within a topic.
type Position struct {
	Topic     string
	Partition int32
	Offset    int64
}

func (p Position) String() string {
	return fmt.Sprintf("%s/%d/%d", p.Topic, p.Partition, p.Offset)
}

// Ledger defines the interface for duplicate tracking.
type Ledger interface {
	// MarkProcessed records pos and reports whether it was not recorded before.
	MarkProcessed(ctx context.Context, pos Position) (first bool, err error)

	// Close closes the ledger connection.
	Close() error
}

// Open creates the ledger selected by cfg.LedgerBackend.
func Open(ctx context.Context, cfg config.Config) (Ledger, error) {
	switch cfg.LedgerBackend {
	case config.LedgerMemory, "":
		return NewMemoryLedger(), nil
	case config.LedgerPostgres:
		l, err := NewPostgresLedger(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := l.EnsureSchema(ctx); err != nil {
			l.Close()
			return nil, err
		}
		return l, nil
	case config.LedgerRedis:
		return NewRedisLedger(ctx, cfg.RedisAddr, DefaultRedisTTL)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}
