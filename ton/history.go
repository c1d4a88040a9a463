package ton

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlexZinkM/ton-wallet/internal/ledger"
	"github.com/AlexZinkM/ton-wallet/internal/model"

	"github.com/shopspring/decimal"
)

// History lists the session user's recorded transactions with per-token totals.
// The ledger must also implement ledger.History.
func (w *Wallet) History(ctx context.Context, s Session, filter model.TransactionFilter) (*model.HistoryResponse, error) {
	h, ok := w.ledger.(ledger.History)
	if !ok {
		return nil, errors.New("ledger does not keep history")
	}

	filter.UserID = s.UserID
	records, err := h.Transactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	return summarize(records), nil
}

// summarize totals successful records per token. Exchanges count as spent input.
func summarize(records []*model.TransactionRecord) *model.HistoryResponse {
	income := make(map[string]decimal.Decimal)
	spent := make(map[string]decimal.Decimal)

	for _, r := range records {
		if r.Status != model.StatusSuccess {
			continue
		}
		amount, err := decimal.NewFromString(r.Amount)
		if err != nil {
			continue
		}
		switch r.Type {
		case model.TransactionTypeDeposit:
			income[r.Token] = income[r.Token].Add(amount)
		case model.TransactionTypeWithdrawal, model.TransactionTypeExchange:
			spent[r.Token] = spent[r.Token].Add(amount)
		}
	}

	resp := &model.HistoryResponse{
		Transactions: records,
		TotalIncome:  make(map[string]string, len(income)),
		TotalSpent:   make(map[string]string, len(spent)),
	}
	for token, v := range income {
		resp.TotalIncome[token] = v.String()
	}
	for token, v := range spent {
		resp.TotalSpent[token] = v.String()
	}
	return resp
}
