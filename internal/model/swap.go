package model

import "math/big"

// SwapDirection selects which side of a TON/jetton pool is the input.
type SwapDirection int

const (
	NativeToJetton SwapDirection = iota
	JettonToNative
)

func (d SwapDirection) String() string {
	if d == JettonToNative {
		return "jetton->ton"
	}
	return "ton->jetton"
}

// PoolState is a snapshot of a constant-product pool's reserves.
type PoolState struct {
	TokenReserve  *big.Int
	NativeReserve *big.Int
	LPSupply      *big.Int
}

// Reserves returns (input, output) reserves for the direction.
func (p PoolState) Reserves(dir SwapDirection) (in, out *big.Int) {
	if dir == JettonToNative {
		return p.TokenReserve, p.NativeReserve
	}
	return p.NativeReserve, p.TokenReserve
}

// SwapQuote is the expected and minimum acceptable output for an input amount.
// MinimumOutput <= ExpectedOutput always holds.
type SwapQuote struct {
	Direction      SwapDirection
	Input          *big.Int
	ExpectedOutput *big.Int
	MinimumOutput  *big.Int
}
