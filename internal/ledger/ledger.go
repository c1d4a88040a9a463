// Package ledger is the persistence boundary for wallet activity. The wallet records what
// it sent; users, sessions and balance snapshots belong to the host application.
package ledger

import (
	"context"
	"time"

	"github.com/AlexZinkM/ton-wallet/internal/model"
)

// User is an account known to the host application
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ledger persists transaction records and balance snapshots.
type Ledger interface {
	// RecordTransaction inserts r when r.ID is zero and assigns the new ID, otherwise it
	// stores r's status, hash and error. A record already stored as final is not changed
	// and model.ErrRecordFinal is returned.
	RecordTransaction(ctx context.Context, r *model.TransactionRecord) error
	// FindUser returns model.ErrUserNotFound for an unknown id.
	FindUser(ctx context.Context, id int64) (*User, error)
	// UpdateBalance stores the latest known balance of one token, in display units.
	UpdateBalance(ctx context.Context, userID int64, token string, amount string) error
}

// History lists recorded transactions, newest first.
type History interface {
	Transactions(ctx context.Context, filter model.TransactionFilter) ([]*model.TransactionRecord, error)
}

// Verifier checks session init data issued by the host application and returns the user it
// belongs to.
type Verifier func(initData string) (*User, bool)
