package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/AlexZinkM/ton-wallet/internal/model"
)

// Memory is an in-process Ledger for the CLI and tests.
type Memory struct {
	mu       sync.RWMutex
	nextID   int64
	records  map[int64]model.TransactionRecord
	users    map[int64]User
	balances map[int64]map[string]string
}

var (
	_ Ledger  = (*Memory)(nil)
	_ History = (*Memory)(nil)
)

// NewMemory creates a ledger knowing the given users
func NewMemory(users ...User) *Memory {
	m := &Memory{
		records:  make(map[int64]model.TransactionRecord),
		users:    make(map[int64]User, len(users)),
		balances: make(map[int64]map[string]string),
	}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

// RecordTransaction implements Ledger. Like the Postgres ledger it rejects records of
// unknown users and writes on a done context.
func (m *Memory) RecordTransaction(ctx context.Context, r *model.TransactionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if r.ID == 0 {
		if _, ok := m.users[r.UserID]; !ok {
			return fmt.Errorf("%w: %d", model.ErrUserNotFound, r.UserID)
		}
		m.nextID++
		r.ID = m.nextID
		m.records[r.ID] = *r
		return nil
	}

	stored, ok := m.records[r.ID]
	if !ok {
		return fmt.Errorf("transaction %d not found", r.ID)
	}
	if stored.Status.IsFinal() {
		return fmt.Errorf("%w: transaction %d is %s", model.ErrRecordFinal, r.ID, stored.Status)
	}

	stored.Status = r.Status
	stored.Hash = r.Hash
	stored.Error = r.Error
	m.records[r.ID] = stored
	return nil
}

// FindUser implements Ledger.
func (m *Memory) FindUser(_ context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", model.ErrUserNotFound, id)
	}
	return &u, nil
}

// UpdateBalance implements Ledger.
func (m *Memory) UpdateBalance(_ context.Context, userID int64, token string, amount string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return fmt.Errorf("%w: %d", model.ErrUserNotFound, userID)
	}
	if m.balances[userID] == nil {
		m.balances[userID] = make(map[string]string)
	}
	m.balances[userID][token] = amount
	return nil
}

// Balance returns the last stored snapshot of a token balance
func (m *Memory) Balance(userID int64, token string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	amount, ok := m.balances[userID][token]
	return amount, ok
}

// Transactions implements History.
func (m *Memory) Transactions(_ context.Context, filter model.TransactionFilter) ([]*model.TransactionRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*model.TransactionRecord, 0, len(m.records))
	for _, r := range m.records {
		if !filter.Match(&r) {
			continue
		}
		rec := r
		result = append(result, &rec)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].ID > result[j].ID
		}
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result, nil
}
