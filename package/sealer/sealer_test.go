package sealer

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T, password string) ([]byte, string) {
	t.Helper()
	salt, err := NewSalt()
	require.NoError(t, err)
	key, err := DeriveKey(password, salt)
	require.NoError(t, err)
	return key, salt
}

func TestSealOpen(t *testing.T) {
	key, _ := testKey(t, "correct horse")

	for _, plaintext := range [][]byte{[]byte("Hello"), {0x00, 0xff}, make([]byte, 64)} {
		sealed, err := Seal(plaintext, key)
		require.NoError(t, err)

		got, err := Open(sealed, key)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	key, _ := testKey(t, "pw")
	a, err := Seal([]byte("Hello"), key)
	require.NoError(t, err)
	b, err := Seal([]byte("Hello"), key)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDeriveKey(t *testing.T) {
	key, salt := testKey(t, "pw")
	assert.Len(t, key, 32)

	again, err := DeriveKey("pw", salt)
	require.NoError(t, err)
	assert.Equal(t, key, again)

	other, err := DeriveKey("pw2", salt)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	_, err = DeriveKey("pw", "%%%")
	assert.Error(t, err)
}

func TestOpenErrors(t *testing.T) {
	key, _ := testKey(t, "pw")
	wrong, _ := testKey(t, "other")

	sealed, err := Seal([]byte("Hello"), key)
	require.NoError(t, err)

	_, err = Open(sealed, wrong)
	assert.Error(t, err)

	_, err = Open(base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), key)
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	_, err = Open("not base64!", key)
	assert.Error(t, err)

	_, err = Open(sealed, []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = Seal([]byte("Hello"), nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
}
