package ton

import (
	"context"
	"fmt"
	"testing"

	"github.com/AlexZinkM/ton-wallet/internal/ledger"
	"github.com/AlexZinkM/ton-wallet/internal/model"
	"github.com/AlexZinkM/ton-wallet/internal/rpc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWallet_TransferConfirmed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.createWallet(t, tons(3))
	env.node.seqnos = []uint32{4, 4, 5}

	resp, err := env.wallet.Transfer(ctx, env.session, model.PayRequest{
		ToAddress: FriendlyAddress(testRecipient),
		Amount:    "1.25",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, resp.Status)
	assert.Equal(t, uint32(4), resp.Seqno)
	assert.NotEmpty(t, resp.TxHash)
	assert.Equal(t, 1, env.node.sentCount())

	history, err := env.wallet.History(ctx, env.session, model.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, history.Transactions, 1)

	rec := history.Transactions[0]
	assert.Equal(t, model.TransactionTypeWithdrawal, rec.Type)
	assert.Equal(t, model.StatusSuccess, rec.Status)
	assert.Equal(t, "1.25", rec.Amount)
	assert.Equal(t, "TON", rec.Token)
	assert.Equal(t, "0.05", rec.Fee)
	assert.Equal(t, resp.TxHash, rec.Hash)
	assert.Equal(t, "1.25", history.TotalSpent["TON"])

	balance, ok := env.ledger.Balance(env.session.UserID, "TON")
	assert.True(t, ok)
	assert.Equal(t, "3", balance, "fake chain does not debit")
}

func TestWallet_TransferTimeout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.createWallet(t, tons(3))
	env.node.seqnos = []uint32{4}

	resp, err := env.wallet.Transfer(ctx, env.session, model.PayRequest{
		ToAddress: FriendlyAddress(testRecipient),
		Amount:    "1",
	})
	assert.ErrorIs(t, err, model.ErrConfirmationTimeout)
	require.NotNil(t, resp, "broadcast messages are reported")
	assert.Equal(t, model.StatusFailed, resp.Status)

	history, err := env.wallet.History(ctx, env.session, model.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, history.Transactions, 1)
	assert.Equal(t, model.StatusFailed, history.Transactions[0].Status)
	assert.Contains(t, history.Transactions[0].Error, "confirmation timeout")
	assert.Empty(t, history.TotalSpent)

	_, ok := env.ledger.Balance(env.session.UserID, "TON")
	assert.False(t, ok)
}

func TestWallet_CanceledWhileConfirmingStillRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newTestEnv(t)
	env.createWallet(t, tons(3))
	env.node.seqnos = []uint32{4}
	env.node.afterSend = cancel

	resp, err := env.wallet.Transfer(ctx, env.session, model.PayRequest{
		ToAddress: FriendlyAddress(testRecipient),
		Amount:    "1",
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, resp)

	history, err := env.wallet.History(context.Background(), env.session, model.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, history.Transactions, 1, "the broadcast message is recorded")
	assert.Equal(t, model.StatusFailed, history.Transactions[0].Status)
	assert.Equal(t, resp.TxHash, history.Transactions[0].Hash)
}

func TestWallet_TransferInsufficientFundsSendsNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.createWallet(t, tons(1))

	resp, err := env.wallet.Transfer(ctx, env.session, model.PayRequest{
		ToAddress: FriendlyAddress(testRecipient),
		Amount:    "1",
	})
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)
	assert.Nil(t, resp)
	assert.Zero(t, env.node.sentCount())

	history, err := env.wallet.History(ctx, env.session, model.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, history.Transactions)
}

func TestWallet_TransferValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.createWallet(t, tons(3))

	tests := []struct {
		name string
		req  model.PayRequest
		want error
	}{
		{"bad address", model.PayRequest{ToAddress: "nope", Amount: "1"}, model.ErrInvalidAddress},
		{"bad amount", model.PayRequest{ToAddress: FriendlyAddress(testRecipient), Amount: "abc"}, model.ErrInvalidAmount},
		{"zero amount", model.PayRequest{ToAddress: FriendlyAddress(testRecipient), Amount: "0"}, model.ErrInvalidAmount},
		{"negative amount", model.PayRequest{ToAddress: FriendlyAddress(testRecipient), Amount: "-1"}, model.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.wallet.Transfer(ctx, env.session, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, env.node.sentCount())
}

func TestWallet_BroadcastFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.createWallet(t, tons(3))
	env.node.sendErr = fmt.Errorf("%w: status 400", model.ErrRPCPermanent)

	_, err := env.wallet.Transfer(ctx, env.session, model.PayRequest{
		ToAddress: FriendlyAddress(testRecipient),
		Amount:    "1",
	})
	assert.ErrorIs(t, err, model.ErrRPCPermanent)

	history, err := env.wallet.History(ctx, env.session, model.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, history.Transactions, 1)
	assert.Equal(t, model.StatusFailed, history.Transactions[0].Status)
}

func TestWallet_WrongVaultContext(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.createWallet(t, tons(3))

	s := env.session
	s.VaultContext = []byte("someone else")
	_, err := env.wallet.Transfer(ctx, s, model.PayRequest{ToAddress: FriendlyAddress(testRecipient), Amount: "1"})
	assert.ErrorIs(t, err, model.ErrAuthentication)
}

func TestWallet_Swap(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.createWallet(t, tons(5))
	env.node.seqnos = []uint32{0, 1}
	env.node.pool = []rpc.StackEntry{
		rpc.NumEntry(tons(500)),
		rpc.NumEntry(tons(1000)),
		rpc.NumEntry(tons(1)),
	}

	quote, err := env.wallet.Quote(ctx, model.SwapRequest{Token: "USDT", Amount: "2", Direction: model.NativeToJetton})
	require.NoError(t, err)
	assert.Equal(t, "ton->jetton", quote.Direction)
	assert.Equal(t, "1000", quote.ExpectedOutput, "2 TON at 1:0.5 in 6-decimal units")
	assert.Equal(t, "990", quote.MinimumOutput)

	resp, err := env.wallet.Swap(ctx, env.session, model.SwapRequest{Token: "USDT", Amount: "2", Direction: model.NativeToJetton})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, resp.Status)

	history, err := env.wallet.History(ctx, env.session, model.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, history.Transactions, 1)
	assert.Equal(t, model.TransactionTypeExchange, history.Transactions[0].Type)
	assert.Equal(t, "TON", history.Transactions[0].Token)
}

func TestWallet_SwapNeedsJetton(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.wallet.Swap(context.Background(), env.session, model.SwapRequest{Token: "TON", Amount: "1"})
	assert.Error(t, err)
}

func TestWallet_Balances(t *testing.T) {
	env := newTestEnv(t)
	addr := env.createWallet(t, tons(3))

	b, err := env.wallet.Balances(context.Background(), FriendlyAddress(addr))
	require.NoError(t, err)
	assert.Equal(t, "3", b.Native.Display())

	address, err := env.wallet.Address(context.Background(), env.session)
	require.NoError(t, err)
	assert.Equal(t, FriendlyAddress(addr), address)

	_, err = env.wallet.Balances(context.Background(), "bogus")
	assert.ErrorIs(t, err, model.ErrInvalidAddress)
}

func TestSessionFor(t *testing.T) {
	verify := func(initData string) (*ledger.User, bool) {
		if initData != "valid" {
			return nil, false
		}
		return &ledger.User{ID: 42}, true
	}

	s, err := SessionFor(verify, "valid")
	require.NoError(t, err)
	assert.Equal(t, int64(42), s.UserID)
	assert.Equal(t, "42", s.Owner)
	assert.Equal(t, []byte("user:42"), s.VaultContext)

	_, err = SessionFor(verify, "forged")
	assert.ErrorIs(t, err, model.ErrAuthentication)
}
