package ton

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/AlexZinkM/ton-wallet/internal/model"
	"github.com/AlexZinkM/ton-wallet/internal/rpc"

	"github.com/tonkeeper/tongo"
	"github.com/tonkeeper/tongo/boc"
	"go.uber.org/zap"
)

// Swap opcodes understood by the pool contract, one per input side.
const (
	OpSwapNative = 0xea06185d
	OpSwapJetton = 0xe3a0d482
)

const (
	bpsDenominator     = 10000
	DefaultSlippageBps = 100 // 1%

	swapMemo = "tonwallet swap"
)

// SwapEngine quotes and builds swaps against TON/jetton constant-product pools.
type SwapEngine struct {
	transfers   *TransferBuilder
	protocolFee *big.Int
	slippageBps uint
	logger      *zap.Logger
}

// NewSwapEngine creates an engine. protocolFee is the extra TON forwarded with jetton-input
// swaps to pay for the pool's execution.
func NewSwapEngine(transfers *TransferBuilder, protocolFee *big.Int, slippageBps uint, logger *zap.Logger) (*SwapEngine, error) {
	if slippageBps >= bpsDenominator {
		return nil, fmt.Errorf("slippage must be below %d bps, got %d", bpsDenominator, slippageBps)
	}
	return &SwapEngine{
		transfers:   transfers,
		protocolFee: new(big.Int).Set(protocolFee),
		slippageBps: slippageBps,
		logger:      logger.Named("swap"),
	}, nil
}

// Pool reads the pool reserves. get_pool_data returns token reserve, native reserve and LP
// supply as its first three entries.
func (e *SwapEngine) Pool(ctx context.Context, pool tongo.AccountID) (model.PoolState, error) {
	stack, err := e.transfers.gateway.RunGetMethod(ctx, pool, "get_pool_data", nil)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("failed to read pool: %w", err)
	}
	return parsePoolData(stack)
}

func parsePoolData(stack []rpc.StackEntry) (model.PoolState, error) {
	nums := make([]*big.Int, 3)
	for i := range nums {
		n, err := rpc.Num(stack, i)
		if err != nil {
			return model.PoolState{}, fmt.Errorf("%w: %w", model.ErrMalformedPoolData, err)
		}
		nums[i] = n
	}

	state := model.PoolState{TokenReserve: nums[0], NativeReserve: nums[1], LPSupply: nums[2]}
	if state.TokenReserve.Sign() <= 0 || state.NativeReserve.Sign() <= 0 {
		return model.PoolState{}, fmt.Errorf("%w: empty reserves", model.ErrMalformedPoolData)
	}
	return state, nil
}

// Quote computes the output for amount at the pool's current rate:
//
//	expected = amount * outReserve / inReserve
//	minimum  = expected * (10000 - slippageBps) / 10000
//
// Both divisions floor, in either direction.
func (e *SwapEngine) Quote(pool model.PoolState, amount *big.Int, dir model.SwapDirection) (model.SwapQuote, error) {
	return quote(pool, amount, dir, e.slippageBps)
}

func quote(pool model.PoolState, amount *big.Int, dir model.SwapDirection, slippageBps uint) (model.SwapQuote, error) {
	if amount == nil || amount.Sign() <= 0 {
		return model.SwapQuote{}, fmt.Errorf("%w: must be positive", model.ErrInvalidAmount)
	}
	in, out := pool.Reserves(dir)
	if in == nil || out == nil || in.Sign() <= 0 || out.Sign() < 0 {
		return model.SwapQuote{}, fmt.Errorf("%w: empty reserves", model.ErrMalformedPoolData)
	}

	expected := new(big.Int).Mul(amount, out)
	expected.Quo(expected, in)

	minimum := new(big.Int).Mul(expected, big.NewInt(int64(bpsDenominator-slippageBps)))
	minimum.Quo(minimum, big.NewInt(bpsDenominator))

	return model.SwapQuote{
		Direction:      dir,
		Input:          new(big.Int).Set(amount),
		ExpectedOutput: expected,
		MinimumOutput:  minimum,
	}, nil
}

// QuoteLive reads the jetton's pool and quotes against it.
func (e *SwapEngine) QuoteLive(ctx context.Context, jetton model.Asset, amount *big.Int, dir model.SwapDirection) (model.SwapQuote, error) {
	pool, err := poolOf(jetton)
	if err != nil {
		return model.SwapQuote{}, err
	}
	state, err := e.Pool(ctx, pool)
	if err != nil {
		return model.SwapQuote{}, err
	}
	return e.Quote(state, amount, dir)
}

// BuildSwap checks balances and returns a signed swap of q.Input against jetton's pool.
//
// TON input goes straight to the pool with the swap payload. Jetton input is a jetton
// transfer to the pool whose forward payload is the swap payload, with the protocol fee
// forwarded as TON.
func (e *SwapEngine) BuildSwap(ctx context.Context, id *model.WalletIdentity, q model.SwapQuote, jetton model.Asset) (*model.SignedMessage, error) {
	pool, err := poolOf(jetton)
	if err != nil {
		return nil, err
	}
	if q.Input == nil || q.Input.Sign() <= 0 {
		return nil, fmt.Errorf("%w: must be positive", model.ErrInvalidAmount)
	}
	if q.MinimumOutput == nil || q.ExpectedOutput == nil || q.MinimumOutput.Cmp(q.ExpectedOutput) > 0 {
		return nil, errors.New("quote minimum output exceeds expected output")
	}

	fee := e.transfers.networkFee
	if q.Direction == model.NativeToJetton {
		if err := e.transfers.requireNative(ctx, id.Address, q.Input, fee); err != nil {
			return nil, err
		}
		payload, err := swapPayload(OpSwapNative, q, id.Address)
		if err != nil {
			return nil, err
		}
		value := new(big.Int).Add(q.Input, fee)
		msg := internalMessage{dest: pool, amount: value, bounce: true, body: payload}
		return e.signSwap(ctx, id, msg, pool, q, fee, model.NativeAsset())
	}

	totalFee := new(big.Int).Add(fee, e.protocolFee)
	if err := e.transfers.requireNative(ctx, id.Address, nil, totalFee); err != nil {
		return nil, err
	}
	jw, err := e.transfers.requireJetton(ctx, id.Address, q.Input, jetton)
	if err != nil {
		return nil, err
	}

	payload, err := swapPayload(OpSwapJetton, q, id.Address)
	if err != nil {
		return nil, err
	}
	body, err := jettonTransferBody(q.Input, pool, e.protocolFee, payload)
	if err != nil {
		return nil, err
	}
	msg := internalMessage{dest: jw, amount: totalFee, bounce: true, body: body}
	return e.signSwap(ctx, id, msg, pool, q, totalFee, jetton)
}

func (e *SwapEngine) signSwap(ctx context.Context, id *model.WalletIdentity, msg internalMessage, pool tongo.AccountID, q model.SwapQuote, fee *big.Int, input model.Asset) (*model.SignedMessage, error) {
	e.logger.Info("Building swap",
		zap.Stringer("direction", q.Direction),
		zap.String("input", q.Input.String()),
		zap.String("min_output", q.MinimumOutput.String()))
	return e.transfers.sign(ctx, id, msg, pool, q.Input, fee, input)
}

// swapPayload encodes op | query_id | amount | min_out | beneficiary | ^memo.
func swapPayload(op uint64, q model.SwapQuote, beneficiary tongo.AccountID) (*boc.Cell, error) {
	memo, err := textCell(swapMemo)
	if err != nil {
		return nil, err
	}

	c := boc.NewCell()
	steps := []func() error{
		func() error { return c.WriteUint(op, 32) },
		func() error { return c.WriteUint(0, 64) }, // query_id
		func() error { return writeCoins(c, q.Input) },
		func() error { return writeCoins(c, q.MinimumOutput) },
		func() error { return writeAddress(c, &beneficiary) },
		func() error { return c.AddRef(memo) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, fmt.Errorf("failed to encode swap payload: %w", err)
		}
	}
	return c, nil
}

func poolOf(jetton model.Asset) (tongo.AccountID, error) {
	if jetton.IsNative() || jetton.Pool == nil {
		return tongo.AccountID{}, fmt.Errorf("no swap pool configured for %s", jetton.Symbol)
	}
	return *jetton.Pool, nil
}
