package crypto

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AlexZinkM/ton-wallet/internal/model"

	"github.com/skip2/go-qrcode"
)

const networkTON = "ton"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileStore keeps a single encrypted wallet in a .cwt file.
// The owner argument is ignored: one file holds one wallet.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore for path, which must have the .cwt extension
func NewFileStore(path string) (*FileStore, error) {
	if filepath.Ext(path) != ".cwt" {
		return nil, errors.New("file must have .cwt extension")
	}
	return &FileStore{path: path}, nil
}

var _ KeyStore = (*FileStore)(nil)

// Put writes the encrypted key, the address and a QR code of the address.
// A non-empty file is never overwritten; Delete it first.
func (s *FileStore) Put(_ context.Context, _ string, address string, blob model.EncryptedBlob) error {
	// Check if file exists and is not empty
	if fileInfo, err := os.Stat(s.path); err == nil && fileInfo.Size() > 0 {
		return fmt.Errorf("file is not empty: %w", os.ErrExist)
	}

	qrCode, err := generateQRCode(address)
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}

	cwtFile := model.CWTFile{
		Network:   networkTON,
		Address:   address,
		QR:        qrCode,
		Encrypted: blob.String(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	fileData, err := json.MarshalIndent(cwtFile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cwt file: %w", err)
	}

	// Add UTF-8 BOM for proper display in Windows
	fileDataWithBOM := append(append([]byte{}, utf8BOM...), fileData...)

	if err := os.WriteFile(s.path, fileDataWithBOM, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Get reads the encrypted key from the file
func (s *FileStore) Get(_ context.Context, _ string) (model.EncryptedBlob, error) {
	cwtFile, err := s.read()
	if err != nil {
		return model.EncryptedBlob{}, err
	}

	blob, err := model.ParseEncryptedBlob(cwtFile.Encrypted)
	if err != nil {
		return model.EncryptedBlob{}, fmt.Errorf("failed to parse encrypted key: %w", err)
	}
	return blob, nil
}

// Delete removes the wallet file
func (s *FileStore) Delete(_ context.Context, _ string) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// ReadAddress reads only the address from .cwt file (without decryption)
func (s *FileStore) ReadAddress() (string, error) {
	cwtFile, err := s.read()
	if err != nil {
		return "", err
	}
	return cwtFile.Address, nil
}

// Replace swaps the encrypted key in place, keeping address and QR. Used by rekey.
func (s *FileStore) Replace(blob model.EncryptedBlob) error {
	cwtFile, err := s.read()
	if err != nil {
		return err
	}
	cwtFile.Encrypted = blob.String()

	fileData, err := json.MarshalIndent(cwtFile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cwt file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(append([]byte{}, utf8BOM...), fileData...), 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}

func (s *FileStore) read() (*model.CWTFile, error) {
	fileInfo, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	if fileInfo.Size() == 0 {
		return nil, errors.New("file is empty")
	}

	fileData, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Skip UTF-8 BOM if present
	fileData = []byte(strings.TrimPrefix(string(fileData), string(utf8BOM)))

	var cwtFile model.CWTFile
	if err := json.Unmarshal(fileData, &cwtFile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cwt file: %w", err)
	}
	if cwtFile.Network != networkTON {
		return nil, fmt.Errorf("unexpected network %q", cwtFile.Network)
	}

	return &cwtFile, nil
}

// generateQRCode generates QR code of address in base64
func generateQRCode(address string) (string, error) {
	qr, err := qrcode.New(address, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	png, err := qr.PNG(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate PNG: %w", err)
	}

	return base64.StdEncoding.EncodeToString(png), nil
}
