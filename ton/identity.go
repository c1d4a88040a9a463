package ton

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/AlexZinkM/ton-wallet/internal/crypto"
	"github.com/AlexZinkM/ton-wallet/internal/model"

	"github.com/tonkeeper/tongo"
	tonwallet "github.com/tonkeeper/tongo/wallet"
)

const (
	walletVersion = tonwallet.V4R2
	workchain     = 0
)

// IdentityFromSeed derives the keypair and V4R2 address for a 32-byte seed.
// The same seed always yields the same identity.
func IdentityFromSeed(seed []byte) (*model.WalletIdentity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	secret := ed25519.NewKeyFromSeed(seed)
	public := secret.Public().(ed25519.PublicKey)

	address, err := tonwallet.GenerateWalletAddress(public, walletVersion, nil, workchain, nil)
	if err != nil {
		clear(secret)
		return nil, fmt.Errorf("failed to derive wallet address: %w", err)
	}

	return &model.WalletIdentity{
		Address:   address,
		PublicKey: public,
		SecretKey: secret,
	}, nil
}

// NewIdentity creates an identity from a fresh random seed.
func NewIdentity() (*model.WalletIdentity, error) {
	seed := make([]byte, ed25519.SeedSize)
	defer clear(seed)

	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, fmt.Errorf("failed to generate seed: %w", err)
	}
	return IdentityFromSeed(seed)
}

// ParseAddress parses a raw or user-friendly TON address.
func ParseAddress(s string) (tongo.AccountID, error) {
	addr, err := tongo.ParseAccountID(s)
	if err != nil {
		return tongo.AccountID{}, fmt.Errorf("%w: %q", model.ErrInvalidAddress, s)
	}
	return addr, nil
}

// FriendlyAddress formats a wallet address the way users expect to see it.
func FriendlyAddress(addr tongo.AccountID) string {
	return addr.ToHuman(false, false)
}

// KeyVault is the encryption capability the wallet needs from crypto.Vault.
type KeyVault interface {
	Encrypt(secret, context []byte) (model.EncryptedBlob, error)
	Decrypt(blob model.EncryptedBlob, context []byte) ([]byte, error)
}

// GenerateWallet creates a new identity and stores its encrypted seed for owner.
// vaultContext binds decryption to the caller (see crypto.Vault).
func GenerateWallet(ctx context.Context, vault KeyVault, store crypto.KeyStore, owner string, vaultContext []byte) (string, error) {
	id, err := NewIdentity()
	if err != nil {
		return "", err
	}
	defer id.Wipe()

	seed := id.Seed()
	defer clear(seed)

	blob, err := vault.Encrypt(seed, vaultContext)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt wallet: %w", err)
	}

	address := FriendlyAddress(id.Address)
	if err := store.Put(ctx, owner, address, blob); err != nil {
		return "", fmt.Errorf("failed to store wallet: %w", err)
	}
	return address, nil
}

// Unlock decrypts the stored seed for owner and re-derives the identity.
// The caller must Wipe the identity when done signing.
func Unlock(ctx context.Context, vault KeyVault, store crypto.KeyStore, owner string, vaultContext []byte) (*model.WalletIdentity, error) {
	blob, err := store.Get(ctx, owner)
	if err != nil {
		if errors.Is(err, crypto.ErrKeyNotFound) {
			return nil, fmt.Errorf("wallet not found: %w", err)
		}
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}

	seed, err := vault.Decrypt(blob, vaultContext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt wallet: %w", err)
	}
	defer clear(seed)

	return IdentityFromSeed(seed)
}
