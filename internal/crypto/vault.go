package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/AlexZinkM/ton-wallet/internal/model"

	"golang.org/x/crypto/hkdf"
)

const (
	keyLen = 32 // AES-256

	// hkdfInfo domain-separates vault keys from any other use of the server secret
	hkdfInfo = "ton-wallet/key-vault/v1"
)

// Vault seals wallet secret keys with AES-256-GCM.
//
// The key is derived from the server secret and a per-request context (the caller's
// signed identity payload), so only a holder of both can decrypt.
type Vault struct {
	secret []byte
	rand   io.Reader
}

// NewVault creates a Vault from the server-held secret.
func NewVault(serverSecret []byte) (*Vault, error) {
	if len(serverSecret) == 0 {
		return nil, errors.New("server secret cannot be empty")
	}
	secret := make([]byte, len(serverSecret))
	copy(secret, serverSecret)
	return &Vault{secret: secret, rand: rand.Reader}, nil
}

// Encrypt seals secret under a key bound to context. A fresh random nonce is drawn per call.
func (v *Vault) Encrypt(secret, context []byte) (model.EncryptedBlob, error) {
	var blob model.EncryptedBlob

	aesGCM, err := v.newGCM(context)
	if err != nil {
		return blob, err
	}

	if _, err := io.ReadFull(v.rand, blob.IV[:]); err != nil {
		return blob, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends the tag to the ciphertext
	sealed := aesGCM.Seal(nil, blob.IV[:], secret, nil)
	split := len(sealed) - model.TagSize
	blob.Ciphertext = sealed[:split]
	copy(blob.AuthTag[:], sealed[split:])

	return blob, nil
}

// Decrypt opens a blob sealed by Encrypt with the same context.
// Returns model.ErrAuthentication if the tag does not verify.
func (v *Vault) Decrypt(blob model.EncryptedBlob, context []byte) ([]byte, error) {
	aesGCM, err := v.newGCM(context)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(blob.Ciphertext)+model.TagSize)
	sealed = append(sealed, blob.Ciphertext...)
	sealed = append(sealed, blob.AuthTag[:]...)

	plaintext, err := aesGCM.Open(nil, blob.IV[:], sealed, nil)
	if err != nil {
		return nil, model.ErrAuthentication
	}
	return plaintext, nil
}

// Rekey re-encrypts a blob from oldContext to newContext without exposing the plaintext
// beyond this call.
func (v *Vault) Rekey(blob model.EncryptedBlob, oldContext, newContext []byte) (model.EncryptedBlob, error) {
	plaintext, err := v.Decrypt(blob, oldContext)
	if err != nil {
		return model.EncryptedBlob{}, err
	}
	defer clear(plaintext)

	return v.Encrypt(plaintext, newContext)
}

func (v *Vault) newGCM(context []byte) (cipher.AEAD, error) {
	key, err := v.deriveKey(context)
	if err != nil {
		return nil, err
	}
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}

// deriveKey is a one-way function of (server secret, context).
func (v *Vault) deriveKey(context []byte) ([]byte, error) {
	key := make([]byte, keyLen)
	kdf := hkdf.New(sha256.New, v.secret, context, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}
