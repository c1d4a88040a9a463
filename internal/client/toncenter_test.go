package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AlexZinkM/ton-wallet/internal/model"
	"github.com/AlexZinkM/ton-wallet/internal/rpc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonkeeper/tongo"
	"github.com/tonkeeper/tongo/boc"
)

var testAccount = tongo.AccountID{Workchain: 0, Address: [32]byte{1, 2, 3}}

func newTestServer(t *testing.T, handler func(req jsonRPCRequest, params map[string]any) (int, any)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw struct {
			jsonRPCRequest
			Params map[string]any `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode request: %v", err)
		}
		raw.jsonRPCRequest.Params = raw.Params

		status, resp := handler(raw.jsonRPCRequest, raw.Params)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestToncenter_GetBalance(t *testing.T) {
	server := newTestServer(t, func(req jsonRPCRequest, params map[string]any) (int, any) {
		assert.Equal(t, "getAddressBalance", req.Method)
		assert.Equal(t, testAccount.ToRaw(), params["address"])
		return http.StatusOK, map[string]any{"ok": true, "result": "1500000000"}
	})

	c := NewToncenter(server.URL)
	balance, err := c.GetBalance(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Equal(t, "1500000000", balance.String())
}

func TestToncenter_APIKey(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": "0"})
	}))
	defer server.Close()

	c := NewToncenter(server.URL, WithAPIKey("k3y"))
	_, err := c.GetBalance(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Equal(t, "k3y", gotKey)
}

func TestToncenter_TransientStatus(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusBadGateway} {
		server := newTestServer(t, func(jsonRPCRequest, map[string]any) (int, any) {
			return status, map[string]any{"ok": false, "error": "slow down", "code": status}
		})

		_, err := NewToncenter(server.URL).GetBalance(context.Background(), testAccount)
		assert.ErrorIs(t, err, model.ErrRPCTransient, "status %d", status)
	}
}

func TestToncenter_PermanentError(t *testing.T) {
	server := newTestServer(t, func(jsonRPCRequest, map[string]any) (int, any) {
		return http.StatusUnprocessableEntity, map[string]any{"ok": false, "error": "Incorrect address", "code": 422}
	})

	_, err := NewToncenter(server.URL).GetBalance(context.Background(), testAccount)
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrRPCTransient)
}

func TestToncenter_RunGetMethod(t *testing.T) {
	addrCell := boc.NewCell()
	require.NoError(t, addrCell.WriteUint(0b100, 3))
	raw, err := addrCell.ToBoc()
	require.NoError(t, err)
	cellB64 := base64.StdEncoding.EncodeToString(raw)

	server := newTestServer(t, func(req jsonRPCRequest, params map[string]any) (int, any) {
		assert.Equal(t, "runGetMethod", req.Method)
		assert.Equal(t, "get_wallet_address", params["method"])

		stack := params["stack"].([]any)
		require.Len(t, stack, 1)
		entry := stack[0].([]any)
		assert.Equal(t, "tvm.Slice", entry[0])

		return http.StatusOK, map[string]any{"ok": true, "result": map[string]any{
			"exit_code": 0,
			"stack": []any{
				[]any{"num", "0x1f"},
				[]any{"cell", map[string]any{"bytes": cellB64}},
				[]any{"num", "-0x2"},
			},
		}}
	})

	c := NewToncenter(server.URL)
	stack, err := c.RunGetMethod(context.Background(), testAccount, "get_wallet_address", []rpc.StackEntry{rpc.SliceEntry(addrCell)})
	require.NoError(t, err)
	require.Len(t, stack, 3)

	n, err := rpc.Num(stack, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(31), n.Int64())

	cell, err := rpc.Cell(stack, 1)
	require.NoError(t, err)
	v, err := cell.ReadUint(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0b100), v)

	n, err = rpc.Num(stack, 2)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(-2), n)
}

func TestToncenter_RunGetMethodExitCode(t *testing.T) {
	server := newTestServer(t, func(jsonRPCRequest, map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"ok": true, "result": map[string]any{"exit_code": -13, "stack": []any{}}}
	})

	_, err := NewToncenter(server.URL).RunGetMethod(context.Background(), testAccount, "get_wallet_data", nil)
	assert.ErrorIs(t, err, model.ErrContractNotFound)
}

func TestToncenter_RunGetMethodInactive(t *testing.T) {
	server := newTestServer(t, func(jsonRPCRequest, map[string]any) (int, any) {
		return http.StatusInternalServerError, map[string]any{"ok": false, "error": "cannot run get method on inactive account", "code": 500}
	})

	_, err := NewToncenter(server.URL).RunGetMethod(context.Background(), testAccount, "seqno", nil)
	assert.ErrorIs(t, err, model.ErrContractNotFound)
}

func TestToncenter_SendBoc(t *testing.T) {
	payload := []byte{0xb5, 0xee, 0x9c, 0x72}
	server := newTestServer(t, func(req jsonRPCRequest, params map[string]any) (int, any) {
		assert.Equal(t, "sendBoc", req.Method)
		assert.Equal(t, base64.StdEncoding.EncodeToString(payload), params["boc"])
		return http.StatusOK, map[string]any{"ok": true, "result": map[string]any{"@type": "ok"}}
	})

	require.NoError(t, NewToncenter(server.URL).SendBoc(context.Background(), payload))
}

func TestCoinGecko_TONPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "the-open-network", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		w.Write([]byte(`{"the-open-network":{"usd":5.12}}`))
	}))
	defer server.Close()

	price, err := NewCoinGeckoClient(server.URL).TONPrice(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, "5.12", price.String())
}

func TestCoinGecko_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewCoinGeckoClient(server.URL).TONPrice(context.Background(), "usd")
	assert.Error(t, err)
}
