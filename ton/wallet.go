package ton

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/AlexZinkM/ton-wallet/internal/common"
	"github.com/AlexZinkM/ton-wallet/internal/crypto"
	"github.com/AlexZinkM/ton-wallet/internal/ledger"
	"github.com/AlexZinkM/ton-wallet/internal/model"
	"github.com/AlexZinkM/ton-wallet/internal/rpc"

	"github.com/tonkeeper/tongo"
	"go.uber.org/zap"
)

// Session identifies whose wallet an operation runs on.
type Session struct {
	UserID int64
	// Owner is the key store entry of the user's encrypted seed
	Owner string
	// VaultContext is bound into the seed encryption; decrypting needs the same value
	VaultContext []byte
}

// SessionFor checks the host application's init data and returns the session of the user
// it belongs to. The vault context is bound to the user id, so a key encrypted for one user
// never decrypts for another.
func SessionFor(verify ledger.Verifier, initData string) (Session, error) {
	user, ok := verify(initData)
	if !ok || user == nil {
		return Session{}, fmt.Errorf("%w: session rejected", model.ErrAuthentication)
	}
	owner := strconv.FormatInt(user.ID, 10)
	return Session{
		UserID:       user.ID,
		Owner:        owner,
		VaultContext: []byte("user:" + owner),
	}, nil
}

// Wallet runs wallet operations end to end: unlock, build, broadcast, confirm and record.
//
// Operations on one Session must not run concurrently: each write reads the seqno on its
// own and two racing writes would sign with the same one.
type Wallet struct {
	vault     KeyVault
	store     crypto.KeyStore
	gateway   *rpc.Gateway
	balances  *BalanceAggregator
	transfers *TransferBuilder
	swaps     *SwapEngine
	tracker   *ConfirmationTracker
	ledger    ledger.Ledger
	logger    *zap.Logger
	now       func() time.Time
}

// Deps holds the collaborators of a Wallet.
type Deps struct {
	Vault     KeyVault
	Store     crypto.KeyStore
	Gateway   *rpc.Gateway
	Balances  *BalanceAggregator
	Transfers *TransferBuilder
	Swaps     *SwapEngine
	Tracker   *ConfirmationTracker
	Ledger    ledger.Ledger
	Logger    *zap.Logger
}

// NewWallet creates a Wallet from its collaborators
func NewWallet(d Deps) *Wallet {
	return &Wallet{
		vault:     d.Vault,
		store:     d.Store,
		gateway:   d.Gateway,
		balances:  d.Balances,
		transfers: d.Transfers,
		swaps:     d.Swaps,
		tracker:   d.Tracker,
		ledger:    d.Ledger,
		logger:    d.Logger.Named("wallet"),
		now:       time.Now,
	}
}

// Create generates a new wallet for the session and returns its address.
func (w *Wallet) Create(ctx context.Context, s Session) (*model.GenerateResponse, error) {
	address, err := GenerateWallet(ctx, w.vault, w.store, s.Owner, s.VaultContext)
	if err != nil {
		return nil, err
	}

	w.logger.Info("Wallet created", zap.Int64("user_id", s.UserID), zap.String("address", address))
	return &model.GenerateResponse{
		Success: true,
		Message: "Wallet generated",
		Address: address,
	}, nil
}

// Address unlocks the session's wallet only to derive its address.
func (w *Wallet) Address(ctx context.Context, s Session) (string, error) {
	id, err := Unlock(ctx, w.vault, w.store, s.Owner, s.VaultContext)
	if err != nil {
		return "", err
	}
	defer id.Wipe()
	return FriendlyAddress(id.Address), nil
}

// Balances aggregates the balances of any address; no key is needed.
func (w *Wallet) Balances(ctx context.Context, address string) (*model.Balances, error) {
	owner, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	return w.balances.GetBalances(ctx, owner)
}

// Quote quotes a swap of amount against the token's pool without building anything.
func (w *Wallet) Quote(ctx context.Context, req model.SwapRequest) (*model.QuoteResponse, error) {
	jetton, err := w.balances.Asset(req.Token)
	if err != nil {
		return nil, err
	}
	if jetton.IsNative() {
		return nil, errors.New("swaps need a jetton on the other side of TON")
	}
	in, out := swapAssets(jetton, req.Direction)

	amount, err := parseAmount(req.Amount, in)
	if err != nil {
		return nil, err
	}
	q, err := w.swaps.QuoteLive(ctx, jetton, amount, req.Direction)
	if err != nil {
		return nil, err
	}

	return &model.QuoteResponse{
		Direction:      q.Direction.String(),
		Input:          common.FormatAmount(q.Input, in.Decimals),
		ExpectedOutput: common.FormatAmount(q.ExpectedOutput, out.Decimals),
		MinimumOutput:  common.FormatAmount(q.MinimumOutput, out.Decimals),
	}, nil
}

// Transfer sends TON or a tracked jetton and waits for confirmation.
//
// When the message was broadcast the response is returned even if err is non-nil: a
// confirmation timeout leaves a FAILED record whose message may still land.
func (w *Wallet) Transfer(ctx context.Context, s Session, req model.PayRequest) (*model.PayResponse, error) {
	if _, err := ParseAddress(req.ToAddress); err != nil {
		return nil, err
	}
	asset, err := w.balances.Asset(req.Token)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(req.Amount, asset)
	if err != nil {
		return nil, err
	}

	return w.submit(ctx, s, model.TransactionTypeWithdrawal, func(id *model.WalletIdentity) (*model.SignedMessage, error) {
		return w.transfers.Build(ctx, id, req.ToAddress, amount, asset)
	})
}

// Swap quotes against the token's pool, sends the swap and waits for confirmation.
// The response and error follow Transfer.
func (w *Wallet) Swap(ctx context.Context, s Session, req model.SwapRequest) (*model.PayResponse, error) {
	jetton, err := w.balances.Asset(req.Token)
	if err != nil {
		return nil, err
	}
	if jetton.IsNative() {
		return nil, errors.New("swaps need a jetton on the other side of TON")
	}
	in, _ := swapAssets(jetton, req.Direction)

	amount, err := parseAmount(req.Amount, in)
	if err != nil {
		return nil, err
	}
	q, err := w.swaps.QuoteLive(ctx, jetton, amount, req.Direction)
	if err != nil {
		return nil, err
	}

	return w.submit(ctx, s, model.TransactionTypeExchange, func(id *model.WalletIdentity) (*model.SignedMessage, error) {
		return w.swaps.BuildSwap(ctx, id, q, jetton)
	})
}

// submit unlocks the key for the duration of build only, then broadcasts, records and
// tracks the message.
func (w *Wallet) submit(ctx context.Context, s Session, txType model.TransactionType, build func(*model.WalletIdentity) (*model.SignedMessage, error)) (*model.PayResponse, error) {
	id, err := Unlock(ctx, w.vault, w.store, s.Owner, s.VaultContext)
	if err != nil {
		return nil, err
	}
	msg, err := build(id)
	owner := id.Address
	id.Wipe()
	if err != nil {
		return nil, err
	}

	record := &model.TransactionRecord{
		UserID:    s.UserID,
		Type:      txType,
		Amount:    common.FormatAmount(msg.Amount, msg.Asset.Decimals),
		Token:     msg.Asset.Symbol,
		Fee:       common.NanoToTON(msg.Fee),
		Address:   msg.Destination,
		Status:    model.StatusPending,
		Hash:      hex.EncodeToString(msg.Hash),
		Seqno:     msg.Seqno,
		Timestamp: w.now().UTC(),
	}

	log := w.logger.With(
		zap.Int64("user_id", s.UserID),
		zap.String("type", string(txType)),
		zap.String("token", record.Token),
		zap.String("hash", record.Hash),
		zap.Uint32("seqno", record.Seqno))

	// Ledger writes outlive the caller: once a message may be on chain its record must land.
	recordCtx := context.WithoutCancel(ctx)

	if err := w.gateway.SendBoc(ctx, msg.Boc); err != nil {
		log.Error("Broadcast failed", zap.Error(err))
		record.Status = model.StatusFailed
		record.Error = err.Error()
		if recErr := w.ledger.RecordTransaction(recordCtx, record); recErr != nil {
			log.Error("Failed to record transaction", zap.Error(recErr))
		}
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	log.Info("Transaction sent")

	if err := w.ledger.RecordTransaction(recordCtx, record); err != nil {
		log.Error("Failed to record pending transaction", zap.Error(err))
	}

	confirmErr := w.tracker.Await(ctx, owner, msg.Seqno)
	if err := record.Resolve(confirmErr); err != nil {
		return nil, err
	}
	if record.ID != 0 {
		if err := w.ledger.RecordTransaction(recordCtx, record); err != nil {
			log.Error("Failed to record transaction status", zap.Error(err))
		}
	}

	if confirmErr != nil {
		log.Warn("Transaction not confirmed", zap.Error(confirmErr))
		return model.NewPayResponse(record), confirmErr
	}

	w.refreshBalances(ctx, s.UserID, owner, msg.Asset, log)
	return model.NewPayResponse(record), nil
}

// refreshBalances stores fresh snapshots of TON and the spent asset in the ledger.
func (w *Wallet) refreshBalances(ctx context.Context, userID int64, owner tongo.AccountID, spent model.Asset, log *zap.Logger) {
	assets := []model.Asset{model.NativeAsset()}
	if !spent.IsNative() {
		assets = append(assets, spent)
	}

	for _, asset := range assets {
		tb, err := w.balances.TokenBalance(ctx, owner, asset)
		if err != nil {
			log.Warn("Failed to refresh balance", zap.String("balance_token", asset.Symbol), zap.Error(err))
			continue
		}
		if err := w.ledger.UpdateBalance(ctx, userID, asset.Symbol, tb.Display()); err != nil {
			log.Warn("Failed to store balance", zap.String("balance_token", asset.Symbol), zap.Error(err))
		}
	}
}

// swapAssets returns the input and output asset of a swap against jetton.
func swapAssets(jetton model.Asset, dir model.SwapDirection) (in, out model.Asset) {
	if dir == model.JettonToNative {
		return jetton, model.NativeAsset()
	}
	return model.NativeAsset(), jetton
}

func parseAmount(s string, asset model.Asset) (*big.Int, error) {
	amount, err := common.ParseAmount(s, asset.Decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidAmount, err)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: must be positive", model.ErrInvalidAmount)
	}
	return amount, nil
}
