package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/AlexZinkM/ton-wallet/internal/model"

	"github.com/tonkeeper/tongo"
	"go.uber.org/zap"
)

// Gateway wraps a Node with the retry policy, logging and metrics.
type Gateway struct {
	node    Node
	policy  Policy
	logger  *zap.Logger
	metrics *Metrics
}

// NewGateway creates a Gateway. metrics may be nil.
func NewGateway(node Node, policy Policy, logger *zap.Logger, metrics *Metrics) *Gateway {
	return &Gateway{
		node:    node,
		policy:  policy,
		logger:  logger.Named("rpc"),
		metrics: metrics,
	}
}

// Call runs fn under the gateway's retry policy.
//
// Transient failures are retried; once attempts run out the last one is returned wrapped in
// model.ErrRPCExhausted. Any other failure is returned at once wrapped in model.ErrRPCPermanent.
func Call[T any](ctx context.Context, g *Gateway, method string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempt := func(ctx context.Context) (T, error) {
		res, err := fn(ctx)
		g.metrics.observe(method, err)
		return res, err
	}

	notify := func(err error, wait time.Duration) {
		g.metrics.retried(method)
		g.logger.Warn("RPC call failed, retrying",
			zap.String("method", method),
			zap.Duration("backoff", wait),
			zap.Error(err))
	}

	res, err := Retry(ctx, g.policy, attempt, notify)
	if err == nil {
		return res, nil
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return res, err
	case g.policy.retryable(err):
		g.logger.Error("RPC retries exhausted", zap.String("method", method), zap.Error(err))
		return res, fmt.Errorf("%w: %s after %d attempts: %w", model.ErrRPCExhausted, method, g.policy.attempts(), err)
	case errors.Is(err, model.ErrRPCPermanent):
		return res, err
	default:
		return res, fmt.Errorf("%w: %s: %w", model.ErrRPCPermanent, method, err)
	}
}

// Balance returns the native balance in nanoton
func (g *Gateway) Balance(ctx context.Context, account tongo.AccountID) (*big.Int, error) {
	return Call(ctx, g, "getAddressBalance", func(ctx context.Context) (*big.Int, error) {
		return g.node.GetBalance(ctx, account)
	})
}

// RunGetMethod invokes a contract get-method
func (g *Gateway) RunGetMethod(ctx context.Context, account tongo.AccountID, method string, stack []StackEntry) ([]StackEntry, error) {
	return Call(ctx, g, "runGetMethod:"+method, func(ctx context.Context) ([]StackEntry, error) {
		return g.node.RunGetMethod(ctx, account, method, stack)
	})
}

// SendBoc broadcasts a serialized external message. Rebroadcasting the same message is
// harmless: the wallet rejects a reused seqno.
func (g *Gateway) SendBoc(ctx context.Context, boc []byte) error {
	_, err := Call(ctx, g, "sendBoc", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.node.SendBoc(ctx, boc)
	})
	return err
}

// Seqno returns the wallet's current sequence number; an uninitialised wallet reports 0.
func (g *Gateway) Seqno(ctx context.Context, wallet tongo.AccountID) (uint32, error) {
	stack, err := g.RunGetMethod(ctx, wallet, "seqno", nil)
	if err != nil {
		if errors.Is(err, model.ErrContractNotFound) {
			return 0, nil
		}
		return 0, err
	}

	n, err := Num(stack, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: seqno: %w", model.ErrRPCPermanent, err)
	}
	if n.Sign() < 0 || !n.IsUint64() || n.Uint64() > 0xFFFFFFFF {
		return 0, fmt.Errorf("%w: seqno out of range: %s", model.ErrRPCPermanent, n)
	}
	return uint32(n.Uint64()), nil
}
