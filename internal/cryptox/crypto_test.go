package cryptox

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	key1 := DeriveKey(password, salt, 1000)
	key2 := DeriveKey(password, salt, 1000)

	if !bytes.Equal(key1, key2) {
		t.Errorf("expected same result for same inputs, got different")
	}
	assert.Len(t, key1, AESKeySize)
}

func TestDeriveKey_DifferentInputs(t *testing.T) {
	password := []byte("secret-password")

	a := DeriveKey(password, []byte("salt-1"), 1000)
	b := DeriveKey(password, []byte("salt-2"), 1000)
	c := DeriveKey(password, []byte("salt-1"), 1001)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestDeriveKey_KnownVector(t *testing.T) {
	// PBKDF2-HMAC-SHA512, P="password", S="salt", c=1, first 32 bytes.
	got := DeriveKey([]byte("password"), []byte("salt"), 1)
	assert.Equal(t, "867f70cf1ade02cff3752599a3a53dc4af34c7a669815ae5d513554e1c8cf252", hex.EncodeToString(got))
}

func TestEncryptDecryptEntry(t *testing.T) {
	type secret struct {
		Kty string `json:"kty"`
		D   string `json:"d"`
	}
	key := DeriveKey([]byte("pw"), []byte("salt"), 10)

	ct, nonce, err := EncryptEntry(secret{Kty: "EC", D: "abc"}, key)
	require.NoError(t, err)
	assert.Len(t, nonce, NonceSize)
	assert.Len(t, ct, len(`{"kty":"EC","d":"abc"}`)+TagLengthBits/8)

	var got secret
	require.NoError(t, DecryptEntry(ct, nonce, key, &got))
	assert.Equal(t, secret{Kty: "EC", D: "abc"}, got)
}

func TestDecryptEntry_WrongKey(t *testing.T) {
	key := DeriveKey([]byte("pw"), []byte("salt"), 10)
	ct, nonce, err := EncryptEntry(map[string]string{"a": "b"}, key)
	require.NoError(t, err)

	other := DeriveKey([]byte("other"), []byte("salt"), 10)
	var got map[string]string
	assert.Error(t, DecryptEntry(ct, nonce, other, &got))
	assert.Nil(t, got)
}

func TestDecryptEntry_BadKeyLength(t *testing.T) {
	assert.Error(t, DecryptEntry([]byte("x"), make([]byte, NonceSize), []byte("short"), new(any)))
}

func TestDecryptEntry_NonceSize(t *testing.T) {
	key := DeriveKey([]byte("pw"), []byte("salt"), 10)
	ct, nonce, err := EncryptEntry(map[string]string{"a": "b"}, key)
	require.NoError(t, err)

	for _, n := range [][]byte{nil, nonce[:8], append(append([]byte{}, nonce...), 0, 0, 0, 0)} {
		var got map[string]string
		assert.NotPanics(t, func() {
			assert.ErrorIs(t, DecryptEntry(ct, n, key, &got), ErrNonceSize)
		}, "nonce of %d bytes", len(n))
	}
}

func TestSignVerify(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)

	msg := []byte("alice")
	sig, err := Sign(priv, msg)
	require.NoError(t, err)
	assert.Len(t, sig, 132)

	assert.True(t, Verify(&priv.PublicKey, msg, sig))
	assert.False(t, Verify(&priv.PublicKey, []byte("alicf"), sig))
	assert.False(t, Verify(&priv.PublicKey, msg, sig[:131]))
	assert.False(t, Verify(nil, msg, sig))

	tampered := append([]byte{}, sig...)
	tampered[10] ^= 0x01
	assert.False(t, Verify(&priv.PublicKey, msg, tampered))

	other, err := GenerateKey()
	require.NoError(t, err)
	assert.False(t, Verify(&other.PublicKey, msg, sig))
}

func TestJWKRoundTrip(t *testing.T) {
	priv, err := GenerateKey()
	require.NoError(t, err)

	pubJWK, err := PublicJWK(&priv.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, "EC", pubJWK["kty"])
	assert.Equal(t, "P-521", pubJWK["crv"])
	assert.NotContains(t, pubJWK, "d")

	pub, err := ParsePublicJWK(pubJWK)
	require.NoError(t, err)
	assert.True(t, pub.Equal(&priv.PublicKey))

	privJWK, err := PrivateJWK(priv)
	require.NoError(t, err)
	assert.Contains(t, privJWK, "d")

	text, err := json.Marshal(privJWK)
	require.NoError(t, err)
	back, err := ParsePrivateJWK(text)
	require.NoError(t, err)
	assert.True(t, back.Equal(priv))

	// A private JWK also yields its public half.
	pub2, err := ParsePublicJWK(string(text))
	require.NoError(t, err)
	assert.True(t, pub2.Equal(&priv.PublicKey))
}

func TestParseJWK_Rejects(t *testing.T) {
	p256, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	jwk, err := PublicJWK(&p256.PublicKey)
	require.NoError(t, err)

	_, err = ParsePublicJWK(jwk)
	assert.ErrorIs(t, err, ErrUnsupportedKey)

	_, err = ParsePublicJWK(map[string]any{"kty": "oct", "k": "AAAA"})
	assert.ErrorIs(t, err, ErrUnsupportedKey)

	_, err = ParsePublicJWK(map[string]any{"kty": "EC"})
	assert.ErrorIs(t, err, ErrUnsupportedKey)

	priv, err := GenerateKey()
	require.NoError(t, err)
	pubOnly, err := PublicJWK(&priv.PublicKey)
	require.NoError(t, err)
	_, err = ParsePrivateJWK(pubOnly)
	assert.ErrorIs(t, err, ErrUnsupportedKey)
}
