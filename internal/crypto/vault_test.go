package crypto

import (
	"bytes"
	"testing"

	"github.com/AlexZinkM/ton-wallet/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := NewVault([]byte("server-secret"))
	require.NoError(t, err)
	return v
}

func TestVault_RoundTrip(t *testing.T) {
	v := newTestVault(t)

	secrets := [][]byte{
		{},
		[]byte("x"),
		bytes.Repeat([]byte{0xAB}, 32),
		bytes.Repeat([]byte("seed"), 100),
	}
	contexts := [][]byte{
		nil,
		[]byte("user=1&hash=abc"),
		[]byte("query_id=AAH&user=%7B%22id%22%3A42%7D"),
	}

	for _, s := range secrets {
		for _, c := range contexts {
			blob, err := v.Encrypt(s, c)
			require.NoError(t, err)

			got, err := v.Decrypt(blob, c)
			require.NoError(t, err)
			assert.Equal(t, len(s), len(got))
			assert.True(t, bytes.Equal(s, got))
		}
	}
}

func TestVault_WrongContext(t *testing.T) {
	v := newTestVault(t)

	blob, err := v.Encrypt([]byte("secret key"), []byte("alice"))
	require.NoError(t, err)

	_, err = v.Decrypt(blob, []byte("bob"))
	assert.ErrorIs(t, err, model.ErrAuthentication)
}

func TestVault_CorruptedTag(t *testing.T) {
	v := newTestVault(t)

	blob, err := v.Encrypt([]byte("secret key"), []byte("alice"))
	require.NoError(t, err)

	blob.AuthTag[0] ^= 0x01
	_, err = v.Decrypt(blob, []byte("alice"))
	assert.ErrorIs(t, err, model.ErrAuthentication)
}

func TestVault_DifferentServerSecret(t *testing.T) {
	a := newTestVault(t)
	b, err := NewVault([]byte("other-secret"))
	require.NoError(t, err)

	blob, err := a.Encrypt([]byte("secret key"), []byte("alice"))
	require.NoError(t, err)

	_, err = b.Decrypt(blob, []byte("alice"))
	assert.ErrorIs(t, err, model.ErrAuthentication)
}

func TestVault_NonceIsFresh(t *testing.T) {
	v := newTestVault(t)

	first, err := v.Encrypt([]byte("same"), []byte("ctx"))
	require.NoError(t, err)
	second, err := v.Encrypt([]byte("same"), []byte("ctx"))
	require.NoError(t, err)

	assert.NotEqual(t, first.IV, second.IV)
	assert.NotEqual(t, first.Ciphertext, second.Ciphertext)
}

func TestVault_BlobStringRoundTrip(t *testing.T) {
	v := newTestVault(t)

	blob, err := v.Encrypt([]byte("secret key"), []byte("ctx"))
	require.NoError(t, err)

	parsed, err := model.ParseEncryptedBlob(blob.String())
	require.NoError(t, err)

	got, err := v.Decrypt(parsed, []byte("ctx"))
	require.NoError(t, err)
	assert.Equal(t, "secret key", string(got))
}

func TestParseEncryptedBlob_Malformed(t *testing.T) {
	for _, s := range []string{
		"",
		"aa:bb",
		"zz:00000000000000000000000000000000:00",
		"000000000000000000000000:0000:00",
		"000000000000000000000000:00000000000000000000000000000000:xyz",
	} {
		_, err := model.ParseEncryptedBlob(s)
		assert.Error(t, err, s)
	}
}

func TestVault_Rekey(t *testing.T) {
	v := newTestVault(t)

	blob, err := v.Encrypt([]byte("secret key"), []byte("old"))
	require.NoError(t, err)

	rekeyed, err := v.Rekey(blob, []byte("old"), []byte("new"))
	require.NoError(t, err)

	_, err = v.Decrypt(rekeyed, []byte("old"))
	assert.ErrorIs(t, err, model.ErrAuthentication)

	got, err := v.Decrypt(rekeyed, []byte("new"))
	require.NoError(t, err)
	assert.Equal(t, "secret key", string(got))
}

func TestNewVault_EmptySecret(t *testing.T) {
	_, err := NewVault(nil)
	assert.Error(t, err)
}
