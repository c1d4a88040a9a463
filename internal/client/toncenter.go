package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/AlexZinkM/ton-wallet/internal/model"
	"github.com/AlexZinkM/ton-wallet/internal/rpc"

	"github.com/tonkeeper/tongo"
	"github.com/tonkeeper/tongo/boc"
)

const (
	DefaultToncenterURL = "https://toncenter.com/api/v2/jsonRPC"
	defaultTimeout      = 15 * time.Second
)

// Toncenter is a client for the toncenter v2 JSON-RPC API
type Toncenter struct {
	endpoint  string
	apiKey    string
	client    *http.Client
	requestID atomic.Uint64
}

// ToncenterOption configures Toncenter
type ToncenterOption func(*Toncenter)

// WithHTTPClient sets a custom http.Client
func WithHTTPClient(client *http.Client) ToncenterOption {
	return func(t *Toncenter) {
		t.client = client
	}
}

// WithAPIKey sets the X-API-Key header value
func WithAPIKey(key string) ToncenterOption {
	return func(t *Toncenter) {
		t.apiKey = key
	}
}

// NewToncenter creates a new toncenter client
func NewToncenter(endpoint string, opts ...ToncenterOption) *Toncenter {
	if endpoint == "" {
		endpoint = DefaultToncenterURL
	}
	t := &Toncenter{
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ rpc.Node = (*Toncenter)(nil)

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type jsonRPCResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
	Code   int             `json:"code"`
}

type runGetMethodResult struct {
	Stack    [][]json.RawMessage `json:"stack"`
	ExitCode int                 `json:"exit_code"`
}

type cellValue struct {
	Bytes string `json:"bytes"`
}

// GetBalance gets the native balance in nanoton
func (t *Toncenter) GetBalance(ctx context.Context, account tongo.AccountID) (*big.Int, error) {
	var result string
	params := map[string]string{"address": account.ToRaw()}
	if err := t.call(ctx, "getAddressBalance", params, &result); err != nil {
		return nil, err
	}

	balance, ok := new(big.Int).SetString(result, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse balance %q", result)
	}
	return balance, nil
}

// RunGetMethod invokes a get-method on a contract
func (t *Toncenter) RunGetMethod(ctx context.Context, account tongo.AccountID, method string, stack []rpc.StackEntry) ([]rpc.StackEntry, error) {
	reqStack, err := encodeStack(stack)
	if err != nil {
		return nil, err
	}

	params := map[string]any{
		"address": account.ToRaw(),
		"method":  method,
		"stack":   reqStack,
	}

	var result runGetMethodResult
	if err := t.call(ctx, "runGetMethod", params, &result); err != nil {
		return nil, err
	}

	// exit codes 0 and 1 both mean success
	if result.ExitCode != 0 && result.ExitCode != 1 {
		return nil, fmt.Errorf("%w: %s exit code %d", model.ErrContractNotFound, method, result.ExitCode)
	}

	return decodeStack(result.Stack)
}

// SendBoc broadcasts a serialized message
func (t *Toncenter) SendBoc(ctx context.Context, payload []byte) error {
	params := map[string]string{"boc": base64.StdEncoding.EncodeToString(payload)}
	return t.call(ctx, "sendBoc", params, nil)
}

// call performs a single JSON-RPC call. Retrying is up to the caller.
func (t *Toncenter) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      t.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("X-API-Key", t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: %s: %w", model.ErrRPCTransient, method, err)
		}
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if isTransientStatus(resp.StatusCode) {
		return fmt.Errorf("%w: %s: status %d", model.ErrRPCTransient, method, resp.StatusCode)
	}

	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
		}
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !rpcResp.OK {
		switch {
		case isTransientStatus(rpcResp.Code):
			return fmt.Errorf("%w: %s: %s", model.ErrRPCTransient, method, rpcResp.Error)
		case isUninitialised(rpcResp.Error):
			return fmt.Errorf("%w: %s: %s", model.ErrContractNotFound, method, rpcResp.Error)
		default:
			return fmt.Errorf("%s failed (code %d): %s", method, rpcResp.Code, rpcResp.Error)
		}
	}

	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("failed to unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

func isTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// isUninitialised matches liteserver errors for accounts that have no code yet.
func isUninitialised(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "inactive") || strings.Contains(msg, "uninit")
}

func encodeStack(stack []rpc.StackEntry) ([][]string, error) {
	out := make([][]string, 0, len(stack))
	for i, e := range stack {
		switch e.Kind {
		case rpc.StackNum:
			out = append(out, []string{"num", e.Num.String()})
		case rpc.StackCell, rpc.StackSlice:
			raw, err := e.Cell.ToBoc()
			if err != nil {
				return nil, fmt.Errorf("failed to serialize stack entry %d: %w", i, err)
			}
			kind := "tvm.Cell"
			if e.Kind == rpc.StackSlice {
				kind = "tvm.Slice"
			}
			out = append(out, []string{kind, base64.StdEncoding.EncodeToString(raw)})
		default:
			return nil, fmt.Errorf("unsupported stack entry kind %d", e.Kind)
		}
	}
	return out, nil
}

func decodeStack(raw [][]json.RawMessage) ([]rpc.StackEntry, error) {
	stack := make([]rpc.StackEntry, 0, len(raw))
	for i, item := range raw {
		if len(item) != 2 {
			return nil, fmt.Errorf("stack entry %d: expected [type, value]", i)
		}

		var kind string
		if err := json.Unmarshal(item[0], &kind); err != nil {
			return nil, fmt.Errorf("stack entry %d: %w", i, err)
		}

		switch kind {
		case "num":
			var s string
			if err := json.Unmarshal(item[1], &s); err != nil {
				return nil, fmt.Errorf("stack entry %d: %w", i, err)
			}
			n, ok := new(big.Int).SetString(s, 0)
			if !ok {
				return nil, fmt.Errorf("stack entry %d: invalid number %q", i, s)
			}
			stack = append(stack, rpc.NumEntry(n))
		case "cell", "slice":
			var v cellValue
			if err := json.Unmarshal(item[1], &v); err != nil {
				return nil, fmt.Errorf("stack entry %d: %w", i, err)
			}
			cell, err := decodeCell(v.Bytes)
			if err != nil {
				return nil, fmt.Errorf("stack entry %d: %w", i, err)
			}
			entry := rpc.StackEntry{Kind: rpc.StackCell, Cell: cell}
			if kind == "slice" {
				entry.Kind = rpc.StackSlice
			}
			stack = append(stack, entry)
		default:
			// tuples and lists are not used by wallet get-methods; keep positions stable
			stack = append(stack, rpc.StackEntry{Kind: rpc.StackCell})
		}
	}
	return stack, nil
}

func decodeCell(b64 string) (*boc.Cell, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cell: %w", err)
	}
	cells, err := boc.DeserializeBoc(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize cell: %w", err)
	}
	if len(cells) == 0 {
		return nil, errors.New("empty boc")
	}
	return cells[0], nil
}
