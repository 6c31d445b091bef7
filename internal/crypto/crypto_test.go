package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	plaintext := []byte(`{"host-1":{"password":"hunter2"}}`)

	ciphertext, err := Encrypt(key, plaintext)
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "hunter2")

	got, err := Decrypt(key, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDecrypt_WrongKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	other, err := GenerateKey()
	require.NoError(t, err)

	ciphertext, err := Encrypt(key, []byte("secret"))
	require.NoError(t, err)

	_, err = Decrypt(other, ciphertext)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecrypt_Corrupted(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	ciphertext, err := Encrypt(key, []byte("secret"))
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 0xff

	_, err = Decrypt(key, ciphertext)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecrypt_TooShort(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	_, err = Decrypt(key, []byte("short"))
	require.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestEncrypt_InvalidKeySize(t *testing.T) {
	_, err := Encrypt([]byte("tiny"), []byte("data"))
	require.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestEncrypt_NonceIsRandom(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	a, err := Encrypt(key, []byte("same"))
	require.NoError(t, err)
	b, err := Encrypt(key, []byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDeriveKey(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	k1, err := DeriveKey([]byte("correct horse"), salt)
	require.NoError(t, err)
	require.Len(t, k1, KeySize)

	k2, err := DeriveKey([]byte("correct horse"), salt)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k3, err := DeriveKey([]byte("battery staple"), salt)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)

	_, err = DeriveKey([]byte("pw"), []byte("bad salt"))
	require.Error(t, err)
}
