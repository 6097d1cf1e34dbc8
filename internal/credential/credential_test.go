package credential

import (
	"encoding/json"
	"testing"

	"github.com/dmitrijs2005/sigauth/internal/common"
	"github.com/dmitrijs2005/sigauth/internal/cryptox"
	"github.com/dmitrijs2005/sigauth/internal/validator"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIterations = 1000

func enroll(t *testing.T, password string) KeyCredential {
	t.Helper()
	cred, _, err := Enroll([]byte(password), testIterations)
	require.NoError(t, err)
	return cred
}

// wireForm returns the credential as decoded JSON, the shape a handler sees.
func wireForm(t *testing.T, cred KeyCredential) map[string]any {
	t.Helper()
	data, err := json.Marshal(cred)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestEnroll_Shape(t *testing.T) {
	cred := enroll(t, "correct horse")

	assert.Equal(t, PBKDF2Name, cred.PBKDF2Params.Name)
	assert.Equal(t, HashSHA512, cred.PBKDF2Params.Hash)
	assert.Len(t, cred.PBKDF2Params.Salt, SaltSize)
	assert.Equal(t, testIterations, cred.PBKDF2Params.Iterations)
	assert.Equal(t, AlgorithmParameters{Name: "ECDSA", NamedCurve: "P-521"}, cred.KeyPair.AlgorithmParameters)
	assert.Equal(t, SignatureParameters{Name: "ECDSA", Hash: "SHA-512"}, cred.KeyPair.SignatureParameters)
	assert.Len(t, cred.KeyPair.PrivateKey.EncryptionParameters.IV, cryptox.NonceSize)
	assert.Equal(t, 128, cred.KeyPair.PrivateKey.EncryptionParameters.TagLength)
	assert.NotContains(t, cred.KeyPair.PublicKeyJWK, "d")
}

func TestEnroll_RejectsZeroIterations(t *testing.T) {
	_, _, err := Enroll([]byte("pw"), 0)
	assert.Error(t, err)
}

func TestSchema_RoundTrip(t *testing.T) {
	cred := enroll(t, "pw")

	data, err := json.Marshal(cred)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"salt":"`+validator.EncodeHex(cred.PBKDF2Params.Salt)+`"`)

	back, err := Decode(data)
	require.NoError(t, err)
	if diff := cmp.Diff(cred, back); diff != "" {
		t.Fatalf("credential changed through JSON (-want +got):\n%s", diff)
	}
}

func TestSchema_PinsAlgorithms(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m map[string]any)
		path    []string
		message string
	}{
		{
			name:    "pbkdf2 hash downgrade",
			mutate:  func(m map[string]any) { m["pbkdf2Params"].(map[string]any)["hash"] = "SHA-1" },
			path:    []string{"pbkdf2Params", "hash"},
			message: `must be literal "SHA-512"`,
		},
		{
			name: "curve downgrade",
			mutate: func(m map[string]any) {
				m["keyPair"].(map[string]any)["algorithmParameters"].(map[string]any)["namedCurve"] = "P-256"
			},
			path:    []string{"keyPair", "algorithmParameters", "namedCurve"},
			message: `must be literal "P-521"`,
		},
		{
			name: "short tag",
			mutate: func(m map[string]any) {
				pk := m["keyPair"].(map[string]any)["privateKey"].(map[string]any)
				pk["encryptionParameters"].(map[string]any)["tagLength"] = 96.0
			},
			path:    []string{"keyPair", "privateKey", "encryptionParameters", "tagLength"},
			message: "must be literal 128",
		},
		{
			name:    "fractional iterations",
			mutate:  func(m map[string]any) { m["pbkdf2Params"].(map[string]any)["iterations"] = 1.5 },
			path:    []string{"pbkdf2Params", "iterations"},
			message: "must be a positive integer",
		},
		{
			name:    "salt not hex",
			mutate:  func(m map[string]any) { m["pbkdf2Params"].(map[string]any)["salt"] = "XYZ" },
			path:    []string{"pbkdf2Params", "salt"},
			message: "invalid hex bytes",
		},
		{
			name: "iv longer than 12 bytes",
			mutate: func(m map[string]any) {
				ep := m["keyPair"].(map[string]any)["privateKey"].(map[string]any)["encryptionParameters"].(map[string]any)
				ep["iv"] = ep["iv"].(string) + "00000000"
			},
			path:    []string{"keyPair", "privateKey", "encryptionParameters", "iv"},
			message: "must be 12 bytes",
		},
		{
			name:    "public key missing",
			mutate:  func(m map[string]any) { delete(m["keyPair"].(map[string]any), "publicKeyJwt") },
			path:    []string{"keyPair", "publicKeyJwt"},
			message: "must be any object",
		},
	}

	cred := enroll(t, "pw")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := wireForm(t, cred)
			tt.mutate(m)

			_, err := Schema().Validate(m, []string{"keyCredential"})
			var ve *validator.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, append([]string{"keyCredential"}, tt.path...), ve.Path)
			assert.Equal(t, tt.message, ve.Message)
		})
	}
}

func TestUnwrap(t *testing.T) {
	cred, priv, err := Enroll([]byte("pw"), testIterations)
	require.NoError(t, err)

	got, err := cred.Unwrap([]byte("pw"))
	require.NoError(t, err)
	assert.True(t, got.Equal(priv))

	_, err = cred.Unwrap([]byte("nope"))
	assert.ErrorIs(t, err, common.ErrWrongPassword)
}

func TestUnwrap_OddIVLength(t *testing.T) {
	cred := enroll(t, "pw")
	cred.KeyPair.PrivateKey.EncryptionParameters.IV = append(cred.KeyPair.PrivateKey.EncryptionParameters.IV, 0, 0, 0, 0)

	_, err := Decode(mustJSON(t, cred))
	require.Error(t, err, "a 16-byte iv does not pass the schema")

	assert.NotPanics(t, func() {
		_, err = cred.Unwrap([]byte("pw"))
	})
	assert.ErrorIs(t, err, cryptox.ErrNonceSize)
	assert.NotErrorIs(t, err, common.ErrWrongPassword)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestVerify(t *testing.T) {
	cred, priv, err := Enroll([]byte("pw"), testIterations)
	require.NoError(t, err)

	sig, err := cryptox.Sign(priv, []byte("alice"))
	require.NoError(t, err)

	require.NoError(t, cred.Verify([]byte("alice"), sig))
	assert.ErrorIs(t, cred.Verify([]byte("bob"), sig), ErrSignatureMismatch)
	assert.ErrorIs(t, cred.Verify([]byte("alice"), []byte{1, 2, 3}), ErrSignatureMismatch)

	broken := cred
	broken.KeyPair.PublicKeyJWK = map[string]any{"kty": "EC", "crv": "P-521"}
	assert.ErrorIs(t, broken.Verify([]byte("alice"), sig), cryptox.ErrUnsupportedKey)
}
