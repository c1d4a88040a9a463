package model

import "errors"

// Wallet operation failures. Call sites wrap these with context via fmt.Errorf("...: %w"),
// callers match them with errors.Is.
var (
	ErrInvalidAddress    = errors.New("invalid address")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAuthentication is returned when an encrypted key blob fails tag verification.
	ErrAuthentication = errors.New("authentication failed")

	ErrRPCTransient     = errors.New("rpc transient failure")
	ErrRPCExhausted     = errors.New("rpc retries exhausted")
	ErrRPCPermanent     = errors.New("rpc failure")
	ErrContractNotFound = errors.New("contract not found")

	// ErrConfirmationTimeout means the message was broadcast but inclusion was not observed.
	// The transfer may still land.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrMalformedPoolData   = errors.New("malformed pool data")

	ErrRecordFinal  = errors.New("transaction record is final")
	ErrUserNotFound = errors.New("user not found")
)

// ErrorResponse is the error shape returned to integration layers.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// NewErrorResponse maps an operation error to a stable code.
func NewErrorResponse(err error) ErrorResponse {
	resp := ErrorResponse{Error: err.Error()}
	switch {
	case errors.Is(err, ErrInvalidAddress):
		resp.Code = "INVALID_ADDRESS"
	case errors.Is(err, ErrInvalidAmount):
		resp.Code = "INVALID_AMOUNT"
	case errors.Is(err, ErrInsufficientFunds):
		resp.Code = "INSUFFICIENT_FUNDS"
	case errors.Is(err, ErrAuthentication):
		resp.Code = "AUTHENTICATION_ERROR"
	case errors.Is(err, ErrRPCExhausted):
		resp.Code = "RPC_EXHAUSTED"
	case errors.Is(err, ErrConfirmationTimeout):
		resp.Code = "CONFIRMATION_TIMEOUT"
	case errors.Is(err, ErrMalformedPoolData):
		resp.Code = "MALFORMED_POOL_DATA"
	case errors.Is(err, ErrUserNotFound):
		resp.Code = "USER_NOT_FOUND"
	case errors.Is(err, ErrRecordFinal):
		resp.Code = "RECORD_FINAL"
	case errors.Is(err, ErrRPCPermanent):
		resp.Code = "RPC_PERMANENT"
	}
	return resp
}
