package model

// PayRequest represents a transfer request from the integration layer
type PayRequest struct {
	ToAddress string `json:"toAddress"`
	Amount    string `json:"amount"`
	Token     string `json:"token"` // empty or "TON" for native
}

// PayResponse represents the outcome of a transfer or swap
type PayResponse struct {
	TxHash string            `json:"txHash"`
	Seqno  uint32            `json:"seqno"`
	Status TransactionStatus `json:"status"`
	Error  string            `json:"error,omitempty"`
}

// NewPayResponse builds a PayResponse from a ledger record.
func NewPayResponse(r *TransactionRecord) *PayResponse {
	return &PayResponse{
		TxHash: r.Hash,
		Seqno:  r.Seqno,
		Status: r.Status,
		Error:  r.Error,
	}
}

// SwapRequest represents a swap request from the integration layer
type SwapRequest struct {
	Token     string        `json:"token"` // jetton symbol on the other side of TON
	Amount    string        `json:"amount"`
	Direction SwapDirection `json:"direction"`
}

// QuoteResponse is the display form of a SwapQuote
type QuoteResponse struct {
	Direction      string `json:"direction"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	MinimumOutput  string `json:"minimumOutput"`
}
