package model

import (
	"fmt"
	"math/big"
	"time"

	"github.com/AlexZinkM/ton-wallet/internal/common"
)

// TransactionType transaction type
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTypeExchange   TransactionType = "EXCHANGE"
)

// TransactionStatus transaction status
type TransactionStatus string

const (
	StatusPending TransactionStatus = "PENDING"
	StatusSuccess TransactionStatus = "SUCCESS"
	StatusFailed  TransactionStatus = "FAILED"
)

// IsFinal reports whether the status can no longer change.
func (s TransactionStatus) IsFinal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// TransactionRecord is what the ledger persists for a submitted transfer or swap.
// Amount and Fee are display strings of the asset named by Token.
type TransactionRecord struct {
	ID        int64             `json:"id"`
	UserID    int64             `json:"userId"`
	Type      TransactionType   `json:"type"`
	Amount    string            `json:"amount"`
	Token     string            `json:"token"`
	Fee       string            `json:"fee"`
	Address   string            `json:"address"`
	Status    TransactionStatus `json:"status"`
	Hash      string            `json:"hash"`
	Seqno     uint32            `json:"seqno"`
	Timestamp time.Time         `json:"timestamp"`
	Error     string            `json:"error,omitempty"`
}

// Resolve moves a pending record to SUCCESS, or to FAILED when cause is non-nil.
func (r *TransactionRecord) Resolve(cause error) error {
	if r.Status.IsFinal() {
		return fmt.Errorf("%w: %s is %s", ErrRecordFinal, r.Hash, r.Status)
	}
	if cause != nil {
		r.Status = StatusFailed
		r.Error = cause.Error()
		return nil
	}
	r.Status = StatusSuccess
	return nil
}

// TransactionFilter represents filter parameters for ledger history queries
type TransactionFilter struct {
	UserID    int64
	Type      *TransactionType
	Status    *TransactionStatus
	Token     *string
	From      *time.Time
	To        *time.Time
	MinAmount *string
	MaxAmount *string
}

// Validate validates TransactionFilter parameters.
func (f *TransactionFilter) Validate() error {
	if f.Type != nil {
		switch *f.Type {
		case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeExchange:
		default:
			return fmt.Errorf("type must be DEPOSIT, WITHDRAWAL or EXCHANGE")
		}
	}
	if f.Status != nil {
		switch *f.Status {
		case StatusPending, StatusSuccess, StatusFailed:
		default:
			return fmt.Errorf("status must be PENDING, SUCCESS or FAILED")
		}
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return fmt.Errorf("to date must be after or equal to from date")
	}
	if f.MinAmount != nil && f.MaxAmount != nil {
		cmp, err := common.CompareAmounts(*f.MinAmount, *f.MaxAmount)
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
		if cmp == 1 {
			return fmt.Errorf("minAmount must be less than or equal to maxAmount")
		}
	}
	return nil
}

// Match reports whether the record passes the filter.
func (f *TransactionFilter) Match(r *TransactionRecord) bool {
	if f.UserID != 0 && r.UserID != f.UserID {
		return false
	}
	if f.Type != nil && *f.Type != r.Type {
		return false
	}
	if f.Status != nil && *f.Status != r.Status {
		return false
	}
	if f.Token != nil && *f.Token != r.Token {
		return false
	}
	if f.From != nil && r.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && r.Timestamp.After(*f.To) {
		return false
	}
	if f.MinAmount != nil {
		if cmp, err := common.CompareAmounts(r.Amount, *f.MinAmount); err != nil || cmp < 0 {
			return false
		}
	}
	if f.MaxAmount != nil {
		if cmp, err := common.CompareAmounts(r.Amount, *f.MaxAmount); err != nil || cmp > 0 {
			return false
		}
	}
	return true
}

// SignedMessage is a signed external message ready for broadcast.
type SignedMessage struct {
	Boc         []byte
	Hash        []byte
	Seqno       uint32
	Destination string
	Amount      *big.Int
	Fee         *big.Int
	Asset       Asset
}
