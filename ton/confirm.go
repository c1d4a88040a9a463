package ton

import (
	"context"
	"fmt"
	"time"

	"github.com/AlexZinkM/ton-wallet/internal/model"
	"github.com/AlexZinkM/ton-wallet/internal/rpc"

	"github.com/tonkeeper/tongo"
	"go.uber.org/zap"
)

const (
	DefaultConfirmInterval = 3 * time.Second
	DefaultConfirmAttempts = 10
)

// ConfirmationTracker waits for a wallet's seqno to move past a submitted message.
type ConfirmationTracker struct {
	gateway  *rpc.Gateway
	interval time.Duration
	attempts int
	logger   *zap.Logger
}

// NewConfirmationTracker creates a tracker; non-positive values fall back to 3s and 10 polls.
func NewConfirmationTracker(gateway *rpc.Gateway, interval time.Duration, attempts int, logger *zap.Logger) *ConfirmationTracker {
	if interval <= 0 {
		interval = DefaultConfirmInterval
	}
	if attempts <= 0 {
		attempts = DefaultConfirmAttempts
	}
	return &ConfirmationTracker{
		gateway:  gateway,
		interval: interval,
		attempts: attempts,
		logger:   logger.Named("confirm"),
	}
}

// Await polls the seqno until it exceeds submitted, which proves the message signed with
// submitted was processed. A timeout does not mean the message failed.
func (t *ConfirmationTracker) Await(ctx context.Context, wallet tongo.AccountID, submitted uint32) error {
	timer := time.NewTimer(t.interval)
	defer timer.Stop()

	for attempt := 1; attempt <= t.attempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		seqno, err := t.gateway.Seqno(ctx, wallet)
		switch {
		case err != nil:
			t.logger.Warn("Seqno poll failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
		case seqno > submitted:
			t.logger.Info("Transaction confirmed",
				zap.Uint32("submitted_seqno", submitted),
				zap.Uint32("seqno", seqno),
				zap.Int("attempt", attempt))
			return nil
		default:
			t.logger.Debug("Waiting for seqno",
				zap.Uint32("submitted_seqno", submitted),
				zap.Uint32("seqno", seqno),
				zap.Int("attempt", attempt))
		}

		timer.Reset(t.interval)
	}

	return fmt.Errorf("%w: seqno did not pass %d after %d polls", model.ErrConfirmationTimeout, submitted, t.attempts)
}
