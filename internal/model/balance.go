package model

import (
	"math/big"

	"github.com/AlexZinkM/ton-wallet/internal/common"

	"github.com/shopspring/decimal"
	"github.com/tonkeeper/tongo"
)

const (
	NativeSymbol   = "TON"
	NativeDecimals = 9 // nanoton
)

// AssetKind distinguishes the native coin from jettons.
type AssetKind int

const (
	AssetNative AssetKind = iota
	AssetJetton
)

// Asset is either the native coin or a jetton identified by its master contract.
type Asset struct {
	Kind     AssetKind
	Symbol   string
	Decimals int32
	Master   tongo.AccountID  // jettons only
	Pool     *tongo.AccountID // AMM pool against TON, if any
}

// NativeAsset returns the TON asset.
func NativeAsset() Asset {
	return Asset{Kind: AssetNative, Symbol: NativeSymbol, Decimals: NativeDecimals}
}

// IsNative reports whether the asset is TON.
func (a Asset) IsNative() bool {
	return a.Kind == AssetNative
}

// TokenBalance is an amount of one asset in base units.
type TokenBalance struct {
	Asset  Asset
	Amount *big.Int
	Wallet *tongo.AccountID // jetton wallet sub-contract, nil when absent
}

// Display returns the amount in display units, e.g. 1500000000 nanoton -> "1.5".
func (b TokenBalance) Display() string {
	return common.FormatAmount(b.Amount, b.Asset.Decimals)
}

// Balances is the aggregated view of one wallet.
type Balances struct {
	Address   string
	Native    TokenBalance
	Tokens    []TokenBalance
	Price     decimal.Decimal // native coin price in Currency, zero when unavailable
	FiatValue decimal.Decimal
	Currency  string
}

// BalanceResponse is the display form of Balances.
type BalanceResponse struct {
	Address  string            `json:"address"`
	TON      string            `json:"ton"`
	Jettons  map[string]string `json:"jettons"`
	Rate     string            `json:"rate"`
	Fiat     string            `json:"fiat"`
	Currency string            `json:"currency"`
}

// Response converts balances to display strings.
func (b *Balances) Response() BalanceResponse {
	jettons := make(map[string]string, len(b.Tokens))
	for _, t := range b.Tokens {
		jettons[t.Asset.Symbol] = t.Display()
	}
	return BalanceResponse{
		Address:  b.Address,
		TON:      b.Native.Display(),
		Jettons:  jettons,
		Rate:     b.Price.StringFixed(2),
		Fiat:     b.FiatValue.StringFixed(2),
		Currency: b.Currency,
	}
}
