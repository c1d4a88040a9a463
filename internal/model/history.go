package model

// HistoryResponse is a filtered page of ledger records with per-token totals.
type HistoryResponse struct {
	Transactions []*TransactionRecord `json:"transactions"`
	// token -> total withdrawn, in display units; successful records only
	TotalSpent map[string]string `json:"totalSpent"`
	// token -> total deposited, in display units; successful records only
	TotalIncome map[string]string `json:"totalIncome"`
}
