package ton

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/AlexZinkM/ton-wallet/internal/crypto"
	"github.com/AlexZinkM/ton-wallet/internal/ledger"
	"github.com/AlexZinkM/ton-wallet/internal/model"
	"github.com/AlexZinkM/ton-wallet/internal/rpc"

	"github.com/stretchr/testify/require"
	"github.com/tonkeeper/tongo"
	"go.uber.org/zap"
)

var (
	testMaster       = tongo.AccountID{Workchain: 0, Address: [32]byte{0xAA}}
	testPool         = tongo.AccountID{Workchain: 0, Address: [32]byte{0xBB}}
	testJettonWallet = tongo.AccountID{Workchain: 0, Address: [32]byte{0xCC}}
	testRecipient    = tongo.AccountID{Workchain: 0, Address: [32]byte{0xDD}}
)

func testJetton() model.Asset {
	pool := testPool
	return model.Asset{Kind: model.AssetJetton, Symbol: "USDT", Decimals: 6, Master: testMaster, Pool: &pool}
}

func tons(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}

// fakeNode is an in-memory chain: native balances, one jetton and a seqno sequence.
type fakeNode struct {
	mu sync.Mutex

	native        map[tongo.AccountID]*big.Int
	nativeErr     error
	jettonBalance *big.Int // nil: the jetton wallet was never deployed
	jettonErr     error    // returned by get_wallet_data when set
	pool          []rpc.StackEntry

	seqnos     []uint32 // successive seqno answers, the last one repeats
	seqnoErrs  int      // leading seqno polls that fail
	seqnoCalls int

	sent      [][]byte
	sendErr   error
	afterSend func() // runs once a message is accepted
}

func newFakeNode() *fakeNode {
	return &fakeNode{native: make(map[tongo.AccountID]*big.Int), seqnos: []uint32{0}}
}

func (n *fakeNode) GetBalance(_ context.Context, account tongo.AccountID) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.nativeErr != nil {
		return nil, n.nativeErr
	}
	if b, ok := n.native[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (n *fakeNode) RunGetMethod(_ context.Context, account tongo.AccountID, method string, stack []rpc.StackEntry) ([]rpc.StackEntry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch method {
	case "seqno":
		call := n.seqnoCalls
		n.seqnoCalls++
		if call < n.seqnoErrs {
			return nil, fmt.Errorf("%w: node unavailable", model.ErrRPCPermanent)
		}
		i := call - n.seqnoErrs
		if i >= len(n.seqnos) {
			i = len(n.seqnos) - 1
		}
		return []rpc.StackEntry{rpc.NumEntry(big.NewInt(int64(n.seqnos[i])))}, nil

	case "get_wallet_address":
		if account != testMaster || len(stack) != 1 {
			return nil, fmt.Errorf("%w: exit code 11", model.ErrContractNotFound)
		}
		c, err := addressSlice(testJettonWallet)
		if err != nil {
			return nil, err
		}
		return []rpc.StackEntry{{Kind: rpc.StackSlice, Cell: c}}, nil

	case "get_wallet_data":
		if n.jettonErr != nil {
			return nil, n.jettonErr
		}
		if account != testJettonWallet || n.jettonBalance == nil {
			return nil, fmt.Errorf("%w: account is uninitialized", model.ErrContractNotFound)
		}
		return []rpc.StackEntry{rpc.NumEntry(new(big.Int).Set(n.jettonBalance))}, nil

	case "get_pool_data":
		if account != testPool || n.pool == nil {
			return nil, fmt.Errorf("%w: exit code -13", model.ErrContractNotFound)
		}
		return n.pool, nil
	}
	return nil, fmt.Errorf("%w: unknown method %s", model.ErrContractNotFound, method)
}

func (n *fakeNode) SendBoc(_ context.Context, boc []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.sendErr != nil {
		return n.sendErr
	}
	n.sent = append(n.sent, boc)
	if n.afterSend != nil {
		n.afterSend()
	}
	return nil
}

func (n *fakeNode) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func newTestGateway(node rpc.Node) *rpc.Gateway {
	return rpc.NewGateway(node, rpc.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond}, zap.NewNop(), nil)
}

func testIdentity(t *testing.T) *model.WalletIdentity {
	t.Helper()
	id, err := IdentityFromSeed(make([]byte, 32))
	require.NoError(t, err)
	return id
}

type testEnv struct {
	node      *fakeNode
	balances  *BalanceAggregator
	transfers *TransferBuilder
	swaps     *SwapEngine
	tracker   *ConfirmationTracker
	ledger    *ledger.Memory
	wallet    *Wallet
	session   Session
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	node := newFakeNode()
	gw := newTestGateway(node)

	balances := NewBalanceAggregator(gw, []model.Asset{testJetton()}, nil, logger)
	transfers := NewTransferBuilder(gw, balances, big.NewInt(50_000_000), logger)
	swaps, err := NewSwapEngine(transfers, big.NewInt(250_000_000), DefaultSlippageBps, logger)
	require.NoError(t, err)
	tracker := NewConfirmationTracker(gw, time.Millisecond, 10, logger)

	vault, err := crypto.NewVault([]byte("test-server-secret"))
	require.NoError(t, err)
	store := crypto.NewMemoryStore()
	l := ledger.NewMemory(ledger.User{ID: 1, Username: "alice"})

	w := NewWallet(Deps{
		Vault:     vault,
		Store:     store,
		Gateway:   gw,
		Balances:  balances,
		Transfers: transfers,
		Swaps:     swaps,
		Tracker:   tracker,
		Ledger:    l,
		Logger:    logger,
	})

	return &testEnv{
		node:      node,
		balances:  balances,
		transfers: transfers,
		swaps:     swaps,
		tracker:   tracker,
		ledger:    l,
		wallet:    w,
		session:   Session{UserID: 1, Owner: "alice", VaultContext: []byte("user=1")},
	}
}

// createWallet generates the session's wallet and funds it with TON.
func (e *testEnv) createWallet(t *testing.T, funds *big.Int) tongo.AccountID {
	t.Helper()

	resp, err := e.wallet.Create(context.Background(), e.session)
	require.NoError(t, err)
	addr, err := ParseAddress(resp.Address)
	require.NoError(t, err)

	e.node.native[addr] = funds
	return addr
}
