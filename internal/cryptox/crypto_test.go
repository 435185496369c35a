package cryptox

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/dmitrijs2005/rosterkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSalt_DefaultAndExplicitLength(t *testing.T) {
	s, err := GenerateSalt(0)
	require.NoError(t, err)
	assert.Len(t, s, SaltSize)

	s2, err := GenerateSalt(32)
	require.NoError(t, err)
	assert.Len(t, s2, 32)

	s3, err := GenerateSalt(SaltSize)
	require.NoError(t, err)
	assert.NotEqual(t, s, s3, "two salts should differ")
}

func TestDeriveVerifier_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	v1 := DeriveVerifier(password, salt)
	v2 := DeriveVerifier(password, salt)

	if !bytes.Equal(v1, v2) {
		t.Errorf("expected same result for same inputs, got different")
	}
	if len(v1) != KeySize {
		t.Errorf("expected %d bytes, got %d", KeySize, len(v1))
	}
}

func TestDeriveVerifier_DifferentInputs(t *testing.T) {
	password := []byte("secret-password")

	v1 := DeriveVerifier(password, []byte("salt-1"))
	v2 := DeriveVerifier(password, []byte("salt-2"))
	v3 := DeriveVerifier([]byte("other-password"), []byte("salt-1"))

	assert.NotEqual(t, hex.EncodeToString(v1), hex.EncodeToString(v2), "different salts must give different verifiers")
	assert.NotEqual(t, hex.EncodeToString(v1), hex.EncodeToString(v3), "different passwords must give different verifiers")
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	salt, err := GenerateSalt(0)
	require.NoError(t, err)
	key, err := DeriveEncryptionKey([]byte("Tr0ub4dor&3!!"), salt)
	require.NoError(t, err)

	payloads := [][]byte{
		{},
		[]byte("x"),
		[]byte(`{"people":[],"activities":[]}`),
		bytes.Repeat([]byte{0xAB}, 4096),
	}
	for _, m := range payloads {
		env, err := Encrypt(key, m)
		require.NoError(t, err)
		assert.Len(t, env.Nonce, NonceSize)

		got, err := Decrypt(key, env)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(m, got))
	}
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	key, err := DeriveEncryptionKey([]byte("pw"), []byte("salt"))
	require.NoError(t, err)

	a, err := Encrypt(key, []byte("same"))
	require.NoError(t, err)
	b, err := Encrypt(key, []byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	salt := []byte("0123456789abcdef")
	key, err := DeriveEncryptionKey([]byte("right"), salt)
	require.NoError(t, err)
	wrong, err := DeriveEncryptionKey([]byte("wrong"), salt)
	require.NoError(t, err)

	env, err := Encrypt(key, []byte("payload"))
	require.NoError(t, err)

	got, err := Decrypt(wrong, env)
	require.ErrorIs(t, err, common.ErrAuthenticationFailure)
	assert.Nil(t, got)
}

func TestDecrypt_TamperedFails(t *testing.T) {
	key, err := DeriveEncryptionKey([]byte("pw"), []byte("salt"))
	require.NoError(t, err)
	env, err := Encrypt(key, []byte("payload"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(e *Envelope)
	}{
		{"flip ciphertext bit", func(e *Envelope) { e.Ciphertext[0] ^= 0x01 }},
		{"flip nonce bit", func(e *Envelope) { e.Nonce[0] ^= 0x01 }},
		{"truncate", func(e *Envelope) { e.Ciphertext = e.Ciphertext[:len(e.Ciphertext)-1] }},
		{"short nonce", func(e *Envelope) { e.Nonce = e.Nonce[:4] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Envelope{
				Nonce:      append([]byte(nil), env.Nonce...),
				Ciphertext: append([]byte(nil), env.Ciphertext...),
			}
			tt.mutate(c)
			got, err := Decrypt(key, c)
			require.ErrorIs(t, err, common.ErrAuthenticationFailure)
			assert.Nil(t, got)
		})
	}

	_, err = Decrypt(key, nil)
	require.ErrorIs(t, err, common.ErrAuthenticationFailure)
}

func TestSessionKey_DestroyDisablesKey(t *testing.T) {
	key, err := DeriveEncryptionKey([]byte("pw"), []byte("salt"))
	require.NoError(t, err)
	require.True(t, key.Alive())

	env, err := Encrypt(key, []byte("x"))
	require.NoError(t, err)

	key.Destroy()
	assert.False(t, key.Alive())

	_, err = Encrypt(key, []byte("x"))
	require.Error(t, err)
	_, err = Decrypt(key, env)
	require.Error(t, err)

	var nilKey *SessionKey
	nilKey.Destroy()
	assert.False(t, nilKey.Alive())
}

func TestSealOpenJSON(t *testing.T) {
	type item struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	key, err := DeriveEncryptionKey([]byte("pw"), []byte("salt"))
	require.NoError(t, err)

	env, err := SealJSON(item{ID: "p1", Name: "Ana"}, key)
	require.NoError(t, err)

	var got item
	require.NoError(t, OpenJSON(env, key, &got))
	assert.Equal(t, item{ID: "p1", Name: "Ana"}, got)

	bad, err := Encrypt(key, []byte("not json"))
	require.NoError(t, err)
	require.ErrorIs(t, OpenJSON(bad, key, &got), common.ErrMalformedRecord)
}
