package ton

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/AlexZinkM/ton-wallet/internal/common"
	"github.com/AlexZinkM/ton-wallet/internal/model"
	"github.com/AlexZinkM/ton-wallet/internal/rpc"

	"github.com/tonkeeper/tongo"
	"github.com/tonkeeper/tongo/boc"
	"go.uber.org/zap"
)

// OpJettonTransfer is the TEP-74 jetton transfer opcode
const OpJettonTransfer = 0x0f8a7ea5

// jettonForwardTon is the notification amount attached to a plain jetton transfer
var jettonForwardTon = big.NewInt(1)

// TransferBuilder validates, builds and signs outgoing native and jetton transfers.
type TransferBuilder struct {
	gateway    *rpc.Gateway
	balances   *BalanceAggregator
	networkFee *big.Int
	logger     *zap.Logger
	now        func() time.Time
}

// NewTransferBuilder creates a builder charging networkFee nanoton per message
func NewTransferBuilder(gateway *rpc.Gateway, balances *BalanceAggregator, networkFee *big.Int, logger *zap.Logger) *TransferBuilder {
	return &TransferBuilder{
		gateway:    gateway,
		balances:   balances,
		networkFee: new(big.Int).Set(networkFee),
		logger:     logger.Named("transfer"),
		now:        time.Now,
	}
}

// NetworkFee returns the fee reserved per message, in nanoton
func (b *TransferBuilder) NetworkFee() *big.Int {
	return new(big.Int).Set(b.networkFee)
}

// Build checks the wallet can afford the transfer and returns it signed. Nothing is
// broadcast; on any failed check no message is built.
func (b *TransferBuilder) Build(ctx context.Context, id *model.WalletIdentity, to string, amount *big.Int, asset model.Asset) (*model.SignedMessage, error) {
	dest, err := ParseAddress(to)
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: must be positive", model.ErrInvalidAmount)
	}

	if asset.IsNative() {
		if err := b.requireNative(ctx, id.Address, amount, b.networkFee); err != nil {
			return nil, err
		}
		msg := internalMessage{dest: dest, amount: amount, bounce: true}
		return b.sign(ctx, id, msg, dest, amount, b.networkFee, asset)
	}

	if err := b.requireNative(ctx, id.Address, nil, b.networkFee); err != nil {
		return nil, err
	}
	jw, err := b.requireJetton(ctx, id.Address, amount, asset)
	if err != nil {
		return nil, err
	}

	body, err := jettonTransferBody(amount, dest, jettonForwardTon, nil)
	if err != nil {
		return nil, err
	}
	msg := internalMessage{dest: jw, amount: b.networkFee, bounce: true, body: body}
	return b.sign(ctx, id, msg, dest, amount, b.networkFee, asset)
}

// requireNative checks the native balance covers spend plus fee. spend may be nil.
func (b *TransferBuilder) requireNative(ctx context.Context, owner tongo.AccountID, spend, fee *big.Int) error {
	balance, err := b.balances.NativeBalance(ctx, owner)
	if err != nil {
		return err
	}

	if balance.Cmp(fee) < 0 {
		return fmt.Errorf("%w: network fee is %s TON, have %s TON", model.ErrInsufficientFunds,
			common.NanoToTON(fee), common.NanoToTON(balance))
	}
	if spend == nil {
		return nil
	}

	required := new(big.Int).Add(spend, fee)
	if balance.Cmp(required) < 0 {
		maxSend := new(big.Int).Sub(balance, fee)
		return fmt.Errorf("%w: network fee is %s TON, max you can send is %s TON", model.ErrInsufficientFunds,
			common.NanoToTON(fee), common.NanoToTON(maxSend))
	}
	return nil
}

// requireJetton checks the jetton balance covers amount and returns the sender's jetton wallet.
// Only a missing contract counts as an empty balance; RPC failures propagate.
func (b *TransferBuilder) requireJetton(ctx context.Context, owner tongo.AccountID, amount *big.Int, asset model.Asset) (tongo.AccountID, error) {
	tb, err := b.balances.JettonHolding(ctx, owner, asset)
	if err != nil {
		return tongo.AccountID{}, err
	}
	if tb.Wallet == nil || tb.Amount.Cmp(amount) < 0 {
		return tongo.AccountID{}, fmt.Errorf("%w: have %s %s", model.ErrInsufficientFunds, tb.Display(), asset.Symbol)
	}
	return *tb.Wallet, nil
}

// sign fetches the current seqno and signs msg with it. fee is what the operation costs the
// sender in nanoton on top of amount, independent of the value msg carries.
func (b *TransferBuilder) sign(ctx context.Context, id *model.WalletIdentity, msg internalMessage, dest tongo.AccountID, amount, fee *big.Int, asset model.Asset) (*model.SignedMessage, error) {
	seqno, err := b.gateway.Seqno(ctx, id.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to get seqno: %w", err)
	}

	cell, err := msg.cell()
	if err != nil {
		return nil, err
	}
	raw, hash, err := signExternal(id, seqno, b.now().Add(messageTTL), cell)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("Signed message",
		zap.String("token", asset.Symbol),
		zap.Uint32("seqno", seqno),
		zap.String("hash", hex.EncodeToString(hash)))

	return &model.SignedMessage{
		Boc:         raw,
		Hash:        hash,
		Seqno:       seqno,
		Destination: FriendlyAddress(dest),
		Amount:      new(big.Int).Set(amount),
		Fee:         new(big.Int).Set(fee),
		Asset:       asset,
	}, nil
}

// jettonTransferBody encodes the TEP-74 transfer:
// op | query_id | amount | destination | response_destination | custom_payload | forward_ton_amount | forward_payload.
// The response destination is addr_none, so excess TON stays with the jetton wallet.
func jettonTransferBody(amount *big.Int, dest tongo.AccountID, forwardTon *big.Int, forwardPayload *boc.Cell) (*boc.Cell, error) {
	c := boc.NewCell()

	steps := []func() error{
		func() error { return c.WriteUint(OpJettonTransfer, 32) },
		func() error { return c.WriteUint(0, 64) }, // query_id
		func() error { return writeCoins(c, amount) },
		func() error { return writeAddress(c, &dest) },
		func() error { return writeAddress(c, nil) },
		func() error { return c.WriteBit(false) }, // no custom payload
		func() error { return writeCoins(c, forwardTon) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, fmt.Errorf("failed to encode jetton transfer: %w", err)
		}
	}

	if forwardPayload == nil {
		if err := c.WriteBit(false); err != nil {
			return nil, err
		}
		return c, nil
	}
	if err := c.WriteBit(true); err != nil {
		return nil, err
	}
	if err := c.AddRef(forwardPayload); err != nil {
		return nil, err
	}
	return c, nil
}
