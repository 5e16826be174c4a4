package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = bytes.Repeat([]byte("k"), 32)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte("apiVersion: v1\nkind: Config\n")

	sealed, err := Encrypt(key, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	opened, err := Decrypt(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestEncryptRejectsShortKey(t *testing.T) {
	_, err := Encrypt([]byte("short"), []byte("x"))
	assert.Error(t, err)
}

func TestDecryptRejectsTampering(t *testing.T) {
	sealed, err := Encrypt(key, []byte("secret"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xff
	_, err = Decrypt(key, sealed)
	assert.Error(t, err)
}

func TestDecryptRejectsTruncatedCiphertext(t *testing.T) {
	_, err := Decrypt(key, []byte("tiny"))
	assert.Error(t, err)
}
