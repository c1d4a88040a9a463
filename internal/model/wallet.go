package model

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/tonkeeper/tongo"
)

const (
	NonceSize = 12 // AES-GCM nonce (96 bit)
	TagSize   = 16 // AES-GCM tag (128 bit)
)

// CWTFile represents .cwt file structure
type CWTFile struct {
	Network   string `json:"network"`
	Address   string `json:"address"`
	QR        string `json:"QR"`
	Encrypted string `json:"encrypted"` // EncryptedBlob.String()
	CreatedAt string `json:"createdAt"`
}

// WalletIdentity is a TON wallet keypair with its derived address.
// SecretKey must only live for the duration of a signing operation; call Wipe afterwards.
type WalletIdentity struct {
	Address   tongo.AccountID
	PublicKey ed25519.PublicKey
	SecretKey ed25519.PrivateKey
}

// Equal reports whether both identities come from the same seed.
func (w *WalletIdentity) Equal(other *WalletIdentity) bool {
	if w == nil || other == nil {
		return w == other
	}
	return bytes.Equal(w.PublicKey, other.PublicKey)
}

// Seed returns the 32-byte seed the secret key was derived from.
func (w *WalletIdentity) Seed() []byte {
	if len(w.SecretKey) != ed25519.PrivateKeySize {
		return nil
	}
	return w.SecretKey.Seed()
}

// Wipe zeroes the secret key.
func (w *WalletIdentity) Wipe() {
	clear(w.SecretKey)
	w.SecretKey = nil
}

// EncryptedBlob is an AES-GCM sealed secret.
type EncryptedBlob struct {
	IV         [NonceSize]byte
	AuthTag    [TagSize]byte
	Ciphertext []byte
}

// String serializes the blob as hex(iv):hex(authTag):hex(ciphertext).
func (b EncryptedBlob) String() string {
	return hex.EncodeToString(b.IV[:]) + ":" + hex.EncodeToString(b.AuthTag[:]) + ":" + hex.EncodeToString(b.Ciphertext)
}

// ParseEncryptedBlob parses the colon-joined hex triple produced by EncryptedBlob.String.
func ParseEncryptedBlob(s string) (EncryptedBlob, error) {
	var blob EncryptedBlob

	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return blob, errors.New("encrypted blob must have 3 parts")
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != NonceSize {
		return blob, fmt.Errorf("invalid iv")
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != TagSize {
		return blob, fmt.Errorf("invalid auth tag")
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return blob, fmt.Errorf("invalid ciphertext: %w", err)
	}

	copy(blob.IV[:], iv)
	copy(blob.AuthTag[:], tag)
	blob.Ciphertext = ciphertext
	return blob, nil
}
