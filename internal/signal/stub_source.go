package signal

import (
	"context"
	"time"

	"solana-auto-trader/internal/domain"
)

// StubSource emits a fixed list of signals at a configured interval.
// Used in demo mode where no live feed is available.
type StubSource struct {
	signals  []*domain.Signal
	interval time.Duration
}

// NewStubSource creates a stub source. Signals are emitted in order,
// one per interval, then the channel closes.
func NewStubSource(signals []*domain.Signal, interval time.Duration) *StubSource {
	return &StubSource{signals: signals, interval: interval}
}

var _ Source = (*StubSource)(nil)

// Subscribe emits the configured signals and closes the channel.
func (s *StubSource) Subscribe(ctx context.Context) (<-chan *domain.Signal, error) {
	out := make(chan *domain.Signal, len(s.signals))

	go func() {
		defer close(out)
		for _, sig := range s.signals {
			if s.interval > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.interval):
				}
			}

			emitted := *sig
			if emitted.ReceivedAt == 0 {
				emitted.ReceivedAt = time.Now().UnixMilli()
			}
			select {
			case out <- &emitted:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
