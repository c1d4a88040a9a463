package crypto

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AlexZinkM/ton-wallet/internal/model"
)

// ErrKeyNotFound is returned when no encrypted key is stored for an owner
var ErrKeyNotFound = errors.New("encrypted key not found")

// KeyStore persists encrypted wallet keys. Implementations never see plaintext.
type KeyStore interface {
	Put(ctx context.Context, owner string, address string, blob model.EncryptedBlob) error
	Get(ctx context.Context, owner string) (model.EncryptedBlob, error)
	Delete(ctx context.Context, owner string) error
}

type storedKey struct {
	address string
	blob    model.EncryptedBlob
}

// MemoryStore keeps encrypted keys in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]storedKey
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]storedKey)}
}

var _ KeyStore = (*MemoryStore)(nil)

// Put stores a blob; an existing key must be deleted first.
func (s *MemoryStore) Put(_ context.Context, owner string, address string, blob model.EncryptedBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[owner]; ok {
		return fmt.Errorf("key for %s already exists", owner)
	}
	s.keys[owner] = storedKey{address: address, blob: blob}
	return nil
}

// Get returns the stored blob
func (s *MemoryStore) Get(_ context.Context, owner string) (model.EncryptedBlob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.keys[owner]
	if !ok {
		return model.EncryptedBlob{}, ErrKeyNotFound
	}
	return k.blob, nil
}

// Address returns the wallet address stored next to the blob
func (s *MemoryStore) Address(owner string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.keys[owner]
	if !ok {
		return "", ErrKeyNotFound
	}
	return k.address, nil
}

// Delete removes the stored key (explicit wallet reset)
func (s *MemoryStore) Delete(_ context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.keys, owner)
	return nil
}
