package ton

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/AlexZinkM/ton-wallet/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonkeeper/tongo/boc"
)

func TestTransferBuilder_Native(t *testing.T) {
	env := newTestEnv(t)
	id := testIdentity(t)
	env.node.native[id.Address] = tons(2)
	env.node.seqnos = []uint32{9}

	msg, err := env.transfers.Build(context.Background(), id, FriendlyAddress(testRecipient), tons(1), model.NativeAsset())
	require.NoError(t, err)

	assert.Equal(t, uint32(9), msg.Seqno)
	assert.Equal(t, tons(1), msg.Amount)
	assert.Equal(t, env.transfers.NetworkFee(), msg.Fee, "fee excludes the amount sent")
	assert.Equal(t, FriendlyAddress(testRecipient), msg.Destination)
	assert.Len(t, msg.Hash, 32)

	cells, err := boc.DeserializeBoc(msg.Boc)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Zero(t, env.node.sentCount())
}

func TestTransferBuilder_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := testIdentity(t)
	fee := env.transfers.NetworkFee()

	// exactly amount + fee - 1
	env.node.native[id.Address] = new(big.Int).Sub(new(big.Int).Add(tons(1), fee), big.NewInt(1))
	_, err := env.transfers.Build(ctx, id, FriendlyAddress(testRecipient), tons(1), model.NativeAsset())
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)

	// not even the fee
	env.node.native[id.Address] = big.NewInt(1)
	_, err = env.transfers.Build(ctx, id, FriendlyAddress(testRecipient), big.NewInt(1), model.NativeAsset())
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)

	assert.Zero(t, env.node.sentCount())
	assert.Zero(t, env.node.seqnoCalls, "no message is prepared on a failed check")
}

func TestTransferBuilder_InvalidInput(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := testIdentity(t)
	env.node.native[id.Address] = tons(2)

	_, err := env.transfers.Build(ctx, id, "garbage", tons(1), model.NativeAsset())
	assert.ErrorIs(t, err, model.ErrInvalidAddress)

	_, err = env.transfers.Build(ctx, id, FriendlyAddress(testRecipient), big.NewInt(0), model.NativeAsset())
	assert.ErrorIs(t, err, model.ErrInvalidAmount)
}

func TestTransferBuilder_Jetton(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := testIdentity(t)
	env.node.native[id.Address] = big.NewInt(60_000_000)
	env.node.jettonBalance = big.NewInt(5_000_000)

	msg, err := env.transfers.Build(ctx, id, FriendlyAddress(testRecipient), big.NewInt(5_000_000), testJetton())
	require.NoError(t, err)
	assert.Equal(t, "USDT", msg.Asset.Symbol)
	assert.Equal(t, env.transfers.NetworkFee(), msg.Fee)
	assert.Equal(t, FriendlyAddress(testRecipient), msg.Destination)

	_, err = env.transfers.Build(ctx, id, FriendlyAddress(testRecipient), big.NewInt(5_000_001), testJetton())
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)
}

func TestTransferBuilder_JettonNeedsNativeFee(t *testing.T) {
	env := newTestEnv(t)
	id := testIdentity(t)
	env.node.jettonBalance = big.NewInt(5_000_000)

	_, err := env.transfers.Build(context.Background(), id, FriendlyAddress(testRecipient), big.NewInt(1), testJetton())
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)
}

func TestTransferBuilder_JettonWalletMissing(t *testing.T) {
	env := newTestEnv(t)
	id := testIdentity(t)
	env.node.native[id.Address] = tons(1)

	_, err := env.transfers.Build(context.Background(), id, FriendlyAddress(testRecipient), big.NewInt(1), testJetton())
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)
}

func TestTransferBuilder_JettonNodeFailurePropagates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := testIdentity(t)
	env.node.native[id.Address] = tons(1)
	env.node.jettonBalance = big.NewInt(5_000_000)
	env.node.jettonErr = fmt.Errorf("%w: timeout", model.ErrRPCTransient)

	_, err := env.transfers.Build(ctx, id, FriendlyAddress(testRecipient), big.NewInt(1), testJetton())
	assert.ErrorIs(t, err, model.ErrRPCExhausted)
	assert.NotErrorIs(t, err, model.ErrInsufficientFunds)

	// the display path still reads the failure as zero
	tb, err := env.balances.TokenBalance(ctx, id.Address, testJetton())
	require.NoError(t, err)
	assert.Zero(t, tb.Amount.Sign())
}

func TestTransferBuilder_JettonCanceled(t *testing.T) {
	env := newTestEnv(t)
	id := testIdentity(t)
	env.node.native[id.Address] = tons(1)
	env.node.jettonErr = context.Canceled

	_, err := env.transfers.Build(context.Background(), id, FriendlyAddress(testRecipient), big.NewInt(1), testJetton())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, model.ErrInsufficientFunds)
}
