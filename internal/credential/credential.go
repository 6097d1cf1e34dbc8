// Package credential defines the KeyCredential: a user's ECDSA P-521 key
// pair whose private half is wrapped with AES-GCM under a key derived from
// the user's password with PBKDF2. The server stores and hands out
// credentials but can never open the wrapped key.
//
// Every algorithm identifier in a credential is a pinned literal. A
// credential naming any other suite fails validation instead of being
// silently accepted, which keeps clients from negotiating a weaker scheme.
package credential

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sigauth/internal/common"
	"github.com/dmitrijs2005/sigauth/internal/cryptox"
	"github.com/dmitrijs2005/sigauth/internal/validator"
)

// Pinned algorithm identifiers, spelled as WebCrypto spells them.
const (
	PBKDF2Name = "PBKDF2"
	HashSHA512 = "SHA-512"
	ECDSAName  = "ECDSA"
	NamedCurve = cryptox.CurveName
	AESGCMName = "AES-GCM"
	TagLength  = cryptox.TagLengthBits
)

// Enrollment defaults used by Enroll.
const (
	DefaultIterations = 800_000
	SaltSize          = 16
)

// ErrSignatureMismatch is returned by Verify when the key imports fine but
// the signature does not cover the message.
var ErrSignatureMismatch = errors.New("signature does not verify")

type PBKDF2Params struct {
	Name       string          `json:"name"`
	Hash       string          `json:"hash"`
	Salt       validator.Bytes `json:"salt"`
	Iterations int             `json:"iterations"`
}

type AlgorithmParameters struct {
	Name       string `json:"name"`
	NamedCurve string `json:"namedCurve"`
}

type SignatureParameters struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

type EncryptionParameters struct {
	Name      string          `json:"name"`
	IV        validator.Bytes `json:"iv"`
	TagLength int             `json:"tagLength"`
}

// WrappedKey is the private key JWK sealed under the password-derived key.
type WrappedKey struct {
	EncryptionParameters EncryptionParameters `json:"encryptionParameters"`
	EncryptedBlob        validator.Bytes      `json:"encryptedBlob"`
}

type KeyPair struct {
	AlgorithmParameters AlgorithmParameters `json:"algorithmParameters"`
	SignatureParameters SignatureParameters `json:"signatureParameters"`
	PrivateKey          WrappedKey          `json:"privateKey"`
	PublicKeyJWK        map[string]any      `json:"publicKeyJwt"`
}

// KeyCredential is the complete credential as submitted at signup and as
// stored for the user.
type KeyCredential struct {
	PBKDF2Params PBKDF2Params `json:"pbkdf2Params"`
	KeyPair      KeyPair      `json:"keyPair"`
}

// PublicKey imports the credential's public JWK.
func (c KeyCredential) PublicKey() (*ecdsa.PublicKey, error) {
	return cryptox.ParsePublicJWK(c.KeyPair.PublicKeyJWK)
}

// Verify checks that sig is the credential key's signature over msg. An
// unusable public key yields an error wrapping cryptox.ErrUnsupportedKey;
// a well-formed key that rejects the signature yields ErrSignatureMismatch.
func (c KeyCredential) Verify(msg, sig []byte) error {
	pub, err := c.PublicKey()
	if err != nil {
		return err
	}
	if !cryptox.Verify(pub, msg, sig) {
		return ErrSignatureMismatch
	}
	return nil
}

// Enroll creates a new key pair and wraps its private half under password.
// The returned private key is for immediate use by the caller (for example
// to sign the username proof) and must not be persisted.
func Enroll(password []byte, iterations int) (KeyCredential, *ecdsa.PrivateKey, error) {
	if iterations <= 0 {
		return KeyCredential{}, nil, fmt.Errorf("iterations must be positive, got %d", iterations)
	}

	salt := common.GenerateRandByteArray(SaltSize)
	wrappingKey := cryptox.DeriveKey(password, salt, iterations)
	defer common.WipeByteArray(wrappingKey)

	priv, err := cryptox.GenerateKey()
	if err != nil {
		return KeyCredential{}, nil, err
	}
	privJWK, err := cryptox.PrivateJWK(priv)
	if err != nil {
		return KeyCredential{}, nil, err
	}
	blob, iv, err := cryptox.EncryptEntry(privJWK, wrappingKey)
	if err != nil {
		return KeyCredential{}, nil, err
	}
	pubJWK, err := cryptox.PublicJWK(&priv.PublicKey)
	if err != nil {
		return KeyCredential{}, nil, err
	}

	return KeyCredential{
		PBKDF2Params: PBKDF2Params{
			Name:       PBKDF2Name,
			Hash:       HashSHA512,
			Salt:       salt,
			Iterations: iterations,
		},
		KeyPair: KeyPair{
			AlgorithmParameters: AlgorithmParameters{Name: ECDSAName, NamedCurve: NamedCurve},
			SignatureParameters: SignatureParameters{Name: ECDSAName, Hash: HashSHA512},
			PrivateKey: WrappedKey{
				EncryptionParameters: EncryptionParameters{Name: AESGCMName, IV: iv, TagLength: TagLength},
				EncryptedBlob:        blob,
			},
			PublicKeyJWK: pubJWK,
		},
	}, priv, nil
}

// Unwrap derives the wrapping key from password and opens the private key.
// A wrong password returns common.ErrWrongPassword.
func (c KeyCredential) Unwrap(password []byte) (*ecdsa.PrivateKey, error) {
	wrappingKey := cryptox.DeriveKey(password, c.PBKDF2Params.Salt, c.PBKDF2Params.Iterations)
	defer common.WipeByteArray(wrappingKey)

	var jwk map[string]any
	wrapped := c.KeyPair.PrivateKey
	if err := cryptox.DecryptEntry(wrapped.EncryptedBlob, wrapped.EncryptionParameters.IV, wrappingKey, &jwk); err != nil {
		if errors.Is(err, cryptox.ErrNonceSize) {
			return nil, fmt.Errorf("unwrap private key: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrWrongPassword, err)
	}
	return cryptox.ParsePrivateJWK(jwk)
}
