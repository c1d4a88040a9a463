package ton

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/AlexZinkM/ton-wallet/internal/model"

	"github.com/tonkeeper/tongo"
	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/tlb"
	tonutil "github.com/tonkeeper/tongo/ton"
	tonwallet "github.com/tonkeeper/tongo/wallet"
)

const (
	// walletV4SubwalletID is the default subwallet of V4R2 wallets on workchain 0
	walletV4SubwalletID = 698983191

	// sendMode pays forward fees separately and ignores action errors
	sendMode = 3

	messageTTL = 60 * time.Second

	maxCoinsBytes = 15 // VarUInteger 16
)

// writeCoins writes a VarUInteger 16 amount. Jetton amounts may exceed uint64, so this
// does not go through tlb.Grams.
func writeCoins(c *boc.Cell, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return c.WriteUint(0, 4)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative coins amount %s", amount)
	}
	b := amount.Bytes()
	if len(b) > maxCoinsBytes {
		return fmt.Errorf("coins amount %s too large", amount)
	}
	if err := c.WriteUint(uint64(len(b)), 4); err != nil {
		return err
	}
	return c.WriteBytes(b)
}

// writeAddress writes addr as a MsgAddress; nil writes addr_none.
func writeAddress(c *boc.Cell, addr *tongo.AccountID) error {
	return tlb.Marshal(c, addr.ToMsgAddress())
}

// readAddress reads an addr_std from a slice returned by a get-method.
func readAddress(c *boc.Cell) (tongo.AccountID, error) {
	var addr tongo.AccountID

	tag, err := c.ReadUint(2)
	if err != nil {
		return addr, err
	}
	if tag != 0b10 {
		return addr, fmt.Errorf("unsupported address tag %b", tag)
	}
	anycast, err := c.ReadBit()
	if err != nil {
		return addr, err
	}
	if anycast {
		return addr, errors.New("anycast addresses are not supported")
	}
	wc, err := c.ReadUint(8)
	if err != nil {
		return addr, err
	}
	hash, err := c.ReadBytes(32)
	if err != nil {
		return addr, err
	}

	addr.Workchain = int32(int8(uint8(wc)))
	copy(addr.Address[:], hash)
	return addr, nil
}

// addressSlice wraps an address in a cell for get-method arguments.
func addressSlice(addr tongo.AccountID) (*boc.Cell, error) {
	c := boc.NewCell()
	if err := writeAddress(c, &addr); err != nil {
		return nil, err
	}
	return c, nil
}

// textCell encodes a text comment: zero opcode followed by UTF-8 bytes.
func textCell(text string) (*boc.Cell, error) {
	c := boc.NewCell()
	if err := c.WriteUint(0, 32); err != nil {
		return nil, err
	}
	if err := c.WriteBytes([]byte(text)); err != nil {
		return nil, err
	}
	return c, nil
}

// internalMessage is an outgoing message from the wallet contract.
type internalMessage struct {
	dest   tongo.AccountID
	amount *big.Int
	bounce bool
	body   *boc.Cell // nil for an empty body
}

// cell encodes int_msg_info with zeroed fees and timestamps; the wallet fills those in.
func (m internalMessage) cell() (*boc.Cell, error) {
	if m.amount == nil || m.amount.Sign() < 0 || !m.amount.IsUint64() {
		return nil, fmt.Errorf("message value %v out of range", m.amount)
	}

	msg, _, err := tonwallet.Message{
		Amount:  tlb.Grams(m.amount.Uint64()),
		Address: m.dest,
		Body:    m.body,
		Bounce:  m.bounce,
		Mode:    sendMode,
	}.ToInternal()
	if err != nil {
		return nil, fmt.Errorf("failed to build internal message: %w", err)
	}

	c := boc.NewCell()
	if err := tlb.Marshal(c, msg); err != nil {
		return nil, fmt.Errorf("failed to encode internal message: %w", err)
	}
	return c, nil
}

// walletBody is the V4R2 signing payload for a plain transfer (op 0).
func walletBody(seqno uint32, validUntil time.Time, msgs []*boc.Cell) tonwallet.MessageV4 {
	raw := make(tonwallet.PayloadV1toV4, 0, len(msgs))
	for _, msg := range msgs {
		raw = append(raw, tonwallet.RawMessage{Message: msg, Mode: sendMode})
	}
	return tonwallet.MessageV4{
		SubWalletId: walletV4SubwalletID,
		ValidUntil:  uint32(validUntil.Unix()),
		Seqno:       seqno,
		Op:          0,
		RawMessages: raw,
	}
}

// signExternal signs the wallet body with the identity's key and wraps it in an inbound
// external message addressed to the wallet. Returns the serialized BOC and the message hash.
func signExternal(id *model.WalletIdentity, seqno uint32, validUntil time.Time, msgs ...*boc.Cell) ([]byte, []byte, error) {
	if len(id.SecretKey) != ed25519.PrivateKeySize {
		return nil, nil, errors.New("wallet secret key is not available")
	}
	if len(msgs) == 0 || len(msgs) > 4 {
		return nil, nil, fmt.Errorf("wallet can send 1 to 4 messages, got %d", len(msgs))
	}
	payload := walletBody(seqno, validUntil, msgs)

	unsigned := boc.NewCell()
	if err := tlb.Marshal(unsigned, payload); err != nil {
		return nil, nil, fmt.Errorf("failed to encode wallet body: %w", err)
	}
	digest, err := unsigned.Hash()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash wallet body: %w", err)
	}
	signature := ed25519.Sign(id.SecretKey, digest)

	body := boc.NewCell()
	if err := body.WriteBytes(signature); err != nil {
		return nil, nil, err
	}
	if err := tlb.Marshal(body, payload); err != nil {
		return nil, nil, fmt.Errorf("failed to encode signed body: %w", err)
	}

	extMsg, err := tonutil.CreateExternalMessage(id.Address, body, nil, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build external message: %w", err)
	}
	ext := boc.NewCell()
	if err := tlb.Marshal(ext, extMsg); err != nil {
		return nil, nil, fmt.Errorf("failed to encode external message: %w", err)
	}

	raw, err := ext.ToBoc()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize message: %w", err)
	}
	hash, err := ext.Hash()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash message: %w", err)
	}
	return raw, hash, nil
}
