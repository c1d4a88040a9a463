package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/AlexZinkM/ton-wallet/internal/ledger"
	"github.com/AlexZinkM/ton-wallet/internal/model"

	"github.com/jackc/pgx/v5"
)

// Ledger implements ledger.Ledger and ledger.History using PostgreSQL.
type Ledger struct {
	pool *Pool
}

// NewLedger creates a new Ledger.
func NewLedger(pool *Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Compile-time interface check.
var (
	_ ledger.Ledger  = (*Ledger)(nil)
	_ ledger.History = (*Ledger)(nil)
)

// RecordTransaction inserts a new record or moves a pending one to its new status.
func (l *Ledger) RecordTransaction(ctx context.Context, r *model.TransactionRecord) error {
	if r.ID == 0 {
		return l.insert(ctx, r)
	}

	tag, err := l.pool.Exec(ctx, `
		UPDATE transactions
		SET status = $2, hash = $3, error = $4
		WHERE id = $1 AND status = 'PENDING'
	`, r.ID, string(r.Status), r.Hash, r.Error)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var status string
	err = l.pool.QueryRow(ctx, `SELECT status FROM transactions WHERE id = $1`, r.ID).Scan(&status)
	if isNotFoundError(err) {
		return fmt.Errorf("transaction %d not found", r.ID)
	}
	if err != nil {
		return fmt.Errorf("get transaction status: %w", err)
	}
	return fmt.Errorf("%w: transaction %d is %s", model.ErrRecordFinal, r.ID, status)
}

func (l *Ledger) insert(ctx context.Context, r *model.TransactionRecord) error {
	fee := r.Fee
	if fee == "" {
		fee = "0"
	}

	err := l.pool.QueryRow(ctx, `
		INSERT INTO transactions (
			user_id, type, amount, token, fee, address,
			status, hash, seqno, error, created_at
		) VALUES (
			$1, $2, $3::text::numeric, $4, $5::text::numeric, $6,
			$7, $8, $9, $10, $11
		)
		RETURNING id
	`,
		r.UserID, string(r.Type), r.Amount, r.Token, fee, r.Address,
		string(r.Status), r.Hash, int64(r.Seqno), r.Error, r.Timestamp,
	).Scan(&r.ID)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: %d", model.ErrUserNotFound, r.UserID)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// FindUser returns a user by id.
func (l *Ledger) FindUser(ctx context.Context, id int64) (*ledger.User, error) {
	var u ledger.User
	err := l.pool.QueryRow(ctx, `
		SELECT id, username, address, created_at FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Username, &u.Address, &u.CreatedAt)
	if isNotFoundError(err) {
		return nil, fmt.Errorf("%w: %d", model.ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a user and assigns its id.
func (l *Ledger) CreateUser(ctx context.Context, u *ledger.User) error {
	err := l.pool.QueryRow(ctx, `
		INSERT INTO users (username, address) VALUES ($1, $2)
		RETURNING id, created_at
	`, u.Username, u.Address).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UpdateBalance upserts the balance snapshot for one token.
func (l *Ledger) UpdateBalance(ctx context.Context, userID int64, token string, amount string) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO balances (user_id, token, amount, updated_at)
		VALUES ($1, $2, $3::text::numeric, now())
		ON CONFLICT (user_id, token)
		DO UPDATE SET amount = EXCLUDED.amount, updated_at = EXCLUDED.updated_at
	`, userID, token, amount)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: %d", model.ErrUserNotFound, userID)
		}
		return fmt.Errorf("update balance: %w", err)
	}
	return nil
}

// Balance returns the stored balance snapshot of a token.
func (l *Ledger) Balance(ctx context.Context, userID int64, token string) (string, error) {
	var amount string
	err := l.pool.QueryRow(ctx, `
		SELECT amount::text FROM balances WHERE user_id = $1 AND token = $2
	`, userID, token).Scan(&amount)
	if isNotFoundError(err) {
		return "0", nil
	}
	if err != nil {
		return "", fmt.Errorf("get balance: %w", err)
	}
	return amount, nil
}

// Transactions lists records matching filter, newest first.
func (l *Ledger) Transactions(ctx context.Context, filter model.TransactionFilter) ([]*model.TransactionRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.UserID != 0 {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Type != nil {
		add("type = $%d", string(*filter.Type))
	}
	if filter.Status != nil {
		add("status = $%d", string(*filter.Status))
	}
	if filter.Token != nil {
		add("token = $%d", *filter.Token)
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at <= $%d", *filter.To)
	}
	if filter.MinAmount != nil {
		add("amount >= $%d::text::numeric", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		add("amount <= $%d::text::numeric", *filter.MaxAmount)
	}

	query := `
		SELECT id, user_id, type, amount::text, token, fee::text, address,
			status, hash, seqno, error, created_at
		FROM transactions`
	if len(conds) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conds, " AND ")
	}
	query += "\n\t\tORDER BY created_at DESC, id DESC"

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows pgx.Rows) ([]*model.TransactionRecord, error) {
	var result []*model.TransactionRecord
	for rows.Next() {
		var (
			r              model.TransactionRecord
			txType, status string
			seqno          int64
		)
		err := rows.Scan(
			&r.ID, &r.UserID, &txType, &r.Amount, &r.Token, &r.Fee, &r.Address,
			&status, &r.Hash, &seqno, &r.Error, &r.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		r.Type = model.TransactionType(txType)
		r.Status = model.TransactionStatus(status)
		r.Seqno = uint32(seqno)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return result, nil
}
