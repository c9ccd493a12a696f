package signal

import (
	"context"

	"solana-auto-trader/internal/domain"
)

// Source emits trading signals. The channel is closed when the context
// is cancelled or the source shuts down.
type Source interface {
	Subscribe(ctx context.Context) (<-chan *domain.Signal, error)
}
