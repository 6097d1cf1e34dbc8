// Package cryptox holds the cryptographic primitives of the key-credential
// protocol: PBKDF2 password hashing, AES-GCM key wrapping, ECDSA P-521
// signatures in the raw r||s form produced by WebCrypto, and JWK import and
// export of ECDSA keys.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha512"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sigauth/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// AESKeySize is the length of the password-derived wrapping key (AES-256).
	AESKeySize = 32
	// NonceSize is the AES-GCM IV length.
	NonceSize = 12
	// TagLengthBits is the AES-GCM authentication tag length.
	TagLengthBits = 128
)

// DeriveKey stretches password into an AES-256 key with PBKDF2-HMAC-SHA512.
func DeriveKey(password, salt []byte, iterations int) []byte {
	return pbkdf2.Key(password, salt, iterations, AESKeySize, sha512.New)
}

// EncryptEntry serializes entry to JSON and seals it with AES-GCM under key
// using a fresh random nonce. The ciphertext carries the 16-byte tag at its
// end, the same layout WebCrypto produces for wrapKey.
//
//	blob, iv, err := cryptox.EncryptEntry(privateJWK, key)
func EncryptEntry(entry any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(entry)
	if err != nil {
		return nil, nil, err
	}
	defer common.WipeByteArray(plaintext)

	nonce = common.GenerateRandByteArray(NonceSize)
	ciphertext, err = seal(key, nonce, plaintext)
	if err != nil {
		return nil, nil, err
	}
	return ciphertext, nonce, nil
}

// ErrNonceSize is returned for an AES-GCM IV that is not NonceSize bytes.
var ErrNonceSize = errors.New("invalid AES-GCM nonce size")

// DecryptEntry opens a ciphertext produced by EncryptEntry and unmarshals
// the JSON plaintext into v. A wrong key fails authentication and returns
// an error without touching v.
func DecryptEntry(ciphertext, nonce, key []byte, v any) error {
	if len(nonce) != NonceSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrNonceSize, len(nonce), NonceSize)
	}
	aesgcm, err := newGCM(key)
	if err != nil {
		return err
	}
	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plaintext)

	return json.Unmarshal(plaintext, v)
}

func seal(key, nonce, plaintext []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aesgcm.Seal(nil, nonce, plaintext, nil), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, NonceSize)
}
