package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/AlexZinkM/ton-wallet/internal/model"

	"github.com/tonkeeper/tongo"
	"github.com/tonkeeper/tongo/boc"
)

// Node is the blockchain RPC surface the wallet consumes.
//
// Implementations report rate limiting and server unavailability wrapped in
// model.ErrRPCTransient and a failed get-method (non-zero exit code, uninitialised
// account) wrapped in model.ErrContractNotFound.
type Node interface {
	GetBalance(ctx context.Context, account tongo.AccountID) (*big.Int, error)
	RunGetMethod(ctx context.Context, account tongo.AccountID, method string, stack []StackEntry) ([]StackEntry, error)
	SendBoc(ctx context.Context, boc []byte) error
}

// StackKind is the TVM stack entry type.
type StackKind int

const (
	StackNum StackKind = iota
	StackCell
	StackSlice
)

// StackEntry is one TVM stack value passed to or returned from a get-method.
type StackEntry struct {
	Kind StackKind
	Num  *big.Int
	Cell *boc.Cell
}

// NumEntry builds an integer stack entry
func NumEntry(n *big.Int) StackEntry {
	return StackEntry{Kind: StackNum, Num: n}
}

// SliceEntry builds a slice stack entry
func SliceEntry(c *boc.Cell) StackEntry {
	return StackEntry{Kind: StackSlice, Cell: c}
}

// Num returns the integer at index i of a get-method result.
func Num(stack []StackEntry, i int) (*big.Int, error) {
	if i >= len(stack) {
		return nil, fmt.Errorf("stack has %d entries, want index %d", len(stack), i)
	}
	if stack[i].Kind != StackNum || stack[i].Num == nil {
		return nil, fmt.Errorf("stack entry %d is not a number", i)
	}
	return stack[i].Num, nil
}

// Cell returns the cell or slice at index i of a get-method result.
func Cell(stack []StackEntry, i int) (*boc.Cell, error) {
	if i >= len(stack) {
		return nil, fmt.Errorf("stack has %d entries, want index %d", len(stack), i)
	}
	if stack[i].Kind == StackNum || stack[i].Cell == nil {
		return nil, fmt.Errorf("stack entry %d is not a cell", i)
	}
	return stack[i].Cell, nil
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return err != nil && errors.Is(err, model.ErrRPCTransient)
}
