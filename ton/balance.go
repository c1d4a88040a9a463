package ton

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/AlexZinkM/ton-wallet/internal/model"
	"github.com/AlexZinkM/ton-wallet/internal/rpc"

	"github.com/shopspring/decimal"
	"github.com/tonkeeper/tongo"
	"go.uber.org/zap"
)

// BalanceAggregator reads native and jetton balances of a wallet.
type BalanceAggregator struct {
	gateway *rpc.Gateway
	jettons []model.Asset
	prices  *PriceCache
	logger  *zap.Logger
}

// NewBalanceAggregator creates an aggregator tracking the given jettons. prices may be nil.
func NewBalanceAggregator(gateway *rpc.Gateway, jettons []model.Asset, prices *PriceCache, logger *zap.Logger) *BalanceAggregator {
	return &BalanceAggregator{
		gateway: gateway,
		jettons: jettons,
		prices:  prices,
		logger:  logger.Named("balance"),
	}
}

// Jettons returns the tracked jettons
func (a *BalanceAggregator) Jettons() []model.Asset {
	return a.jettons
}

// Jetton looks up a tracked jetton by symbol, case-insensitively.
func (a *BalanceAggregator) Jetton(symbol string) (model.Asset, bool) {
	for _, j := range a.jettons {
		if strings.EqualFold(j.Symbol, symbol) {
			return j, true
		}
	}
	return model.Asset{}, false
}

// Asset resolves a symbol to TON or a tracked jetton.
func (a *BalanceAggregator) Asset(symbol string) (model.Asset, error) {
	if symbol == "" || strings.EqualFold(symbol, model.NativeSymbol) {
		return model.NativeAsset(), nil
	}
	if j, ok := a.Jetton(symbol); ok {
		return j, nil
	}
	return model.Asset{}, fmt.Errorf("unknown token %q", symbol)
}

// NativeBalance returns the TON balance in nanoton. RPC failures propagate.
func (a *BalanceAggregator) NativeBalance(ctx context.Context, owner tongo.AccountID) (*big.Int, error) {
	balance, err := a.gateway.Balance(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get native balance: %w", err)
	}
	return balance, nil
}

// JettonWallet resolves the owner's jetton wallet sub-contract through the master.
func (a *BalanceAggregator) JettonWallet(ctx context.Context, owner tongo.AccountID, jetton model.Asset) (tongo.AccountID, error) {
	arg, err := addressSlice(owner)
	if err != nil {
		return tongo.AccountID{}, err
	}

	stack, err := a.gateway.RunGetMethod(ctx, jetton.Master, "get_wallet_address", []rpc.StackEntry{rpc.SliceEntry(arg)})
	if err != nil {
		return tongo.AccountID{}, fmt.Errorf("failed to resolve %s wallet: %w", jetton.Symbol, err)
	}

	cell, err := rpc.Cell(stack, 0)
	if err != nil {
		return tongo.AccountID{}, fmt.Errorf("failed to resolve %s wallet: %w", jetton.Symbol, err)
	}
	cell.ResetCounters()
	addr, err := readAddress(cell)
	if err != nil {
		return tongo.AccountID{}, fmt.Errorf("failed to read %s wallet address: %w", jetton.Symbol, err)
	}
	return addr, nil
}

// JettonBalance reads the balance held by a jetton wallet sub-contract.
func (a *BalanceAggregator) JettonBalance(ctx context.Context, jettonWallet tongo.AccountID) (*big.Int, error) {
	stack, err := a.gateway.RunGetMethod(ctx, jettonWallet, "get_wallet_data", nil)
	if err != nil {
		return nil, err
	}
	balance, err := rpc.Num(stack, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: get_wallet_data: %w", model.ErrRPCPermanent, err)
	}
	if balance.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative jetton balance %s", model.ErrRPCPermanent, balance)
	}
	return balance, nil
}

// TokenBalance returns the owner's balance of one asset for display. Any failure on the
// jetton path reads as zero.
func (a *BalanceAggregator) TokenBalance(ctx context.Context, owner tongo.AccountID, asset model.Asset) (model.TokenBalance, error) {
	if asset.IsNative() {
		amount, err := a.NativeBalance(ctx, owner)
		if err != nil {
			return model.TokenBalance{}, err
		}
		return model.TokenBalance{Asset: asset, Amount: amount}, nil
	}

	tb, err := a.JettonHolding(ctx, owner, asset)
	if err != nil {
		a.logger.Debug("Jetton balance unavailable, reporting zero",
			zap.String("token", asset.Symbol), zap.Error(err))
		return model.TokenBalance{Asset: asset, Amount: new(big.Int), Wallet: tb.Wallet}, nil
	}
	return tb, nil
}

// JettonHolding returns the owner's jetton balance. A jetton the owner never held has no
// wallet contract and reports zero; every other failure is returned. Wallet is set whenever
// the jetton wallet address was resolved, also on error.
func (a *BalanceAggregator) JettonHolding(ctx context.Context, owner tongo.AccountID, asset model.Asset) (model.TokenBalance, error) {
	zero := model.TokenBalance{Asset: asset, Amount: new(big.Int)}

	jw, err := a.JettonWallet(ctx, owner, asset)
	if err != nil {
		if errors.Is(err, model.ErrContractNotFound) {
			return zero, nil
		}
		return zero, err
	}
	zero.Wallet = &jw

	amount, err := a.JettonBalance(ctx, jw)
	if err != nil {
		if errors.Is(err, model.ErrContractNotFound) {
			return zero, nil
		}
		return zero, err
	}
	return model.TokenBalance{Asset: asset, Amount: amount, Wallet: &jw}, nil
}

// GetBalances aggregates the native balance, every tracked jetton and the fiat value.
func (a *BalanceAggregator) GetBalances(ctx context.Context, owner tongo.AccountID) (*model.Balances, error) {
	native, err := a.TokenBalance(ctx, owner, model.NativeAsset())
	if err != nil {
		return nil, err
	}

	tokens := make([]model.TokenBalance, 0, len(a.jettons))
	for _, j := range a.jettons {
		tb, err := a.TokenBalance(ctx, owner, j)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tb)
	}

	balances := &model.Balances{
		Address: FriendlyAddress(owner),
		Native:  native,
		Tokens:  tokens,
		Price:   decimal.Zero,
	}
	if a.prices != nil {
		balances.Currency = a.prices.Currency()
		balances.Price = a.prices.Price(ctx)
	}
	balances.FiatValue = decimal.NewFromBigInt(native.Amount, -model.NativeDecimals).Mul(balances.Price)

	return balances, nil
}
