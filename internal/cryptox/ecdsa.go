package cryptox

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha512"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/go-jose/go-jose/v4"
)

// CurveName is the only named curve the protocol accepts.
const CurveName = "P-521"

// ErrUnsupportedKey is returned for JWKs that are not ECDSA P-521 keys.
var ErrUnsupportedKey = errors.New("unsupported key")

func coordinateSize(c elliptic.Curve) int {
	return (c.Params().BitSize + 7) / 8
}

// GenerateKey returns a fresh P-521 key pair.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
}

// Sign hashes msg with SHA-512 and signs it, returning the fixed-width
// r||s encoding (IEEE P1363) that WebCrypto uses for ECDSA.
func Sign(priv *ecdsa.PrivateKey, msg []byte) ([]byte, error) {
	digest := sha512.Sum512(msg)
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		return nil, err
	}
	size := coordinateSize(priv.Curve)
	sig := make([]byte, 2*size)
	r.FillBytes(sig[:size])
	s.FillBytes(sig[size:])
	return sig, nil
}

// Verify checks an r||s signature over the SHA-512 digest of msg. Any
// malformed signature is simply reported as invalid.
func Verify(pub *ecdsa.PublicKey, msg, sig []byte) bool {
	if pub == nil {
		return false
	}
	size := coordinateSize(pub.Curve)
	if len(sig) != 2*size {
		return false
	}
	r := new(big.Int).SetBytes(sig[:size])
	s := new(big.Int).SetBytes(sig[size:])
	digest := sha512.Sum512(msg)
	return ecdsa.Verify(pub, digest[:], r, s)
}

// ParsePublicJWK imports an ECDSA P-521 public key from a JWK. raw may be
// JSON text or an already decoded JSON object.
func ParsePublicJWK(raw any) (*ecdsa.PublicKey, error) {
	key, err := parseJWK(raw)
	if err != nil {
		return nil, err
	}
	switch k := key.Key.(type) {
	case *ecdsa.PublicKey:
		return checkCurve(k)
	case *ecdsa.PrivateKey:
		return checkCurve(&k.PublicKey)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key.Key)
}

// ParsePrivateJWK imports an ECDSA P-521 private key from a JWK.
func ParsePrivateJWK(raw any) (*ecdsa.PrivateKey, error) {
	key, err := parseJWK(raw)
	if err != nil {
		return nil, err
	}
	k, ok := key.Key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: expected an ECDSA private key, got %T", ErrUnsupportedKey, key.Key)
	}
	if _, err := checkCurve(&k.PublicKey); err != nil {
		return nil, err
	}
	return k, nil
}

// PublicJWK exports pub as a decoded JWK object.
func PublicJWK(pub *ecdsa.PublicKey) (map[string]any, error) {
	return jwkObject(jose.JSONWebKey{Key: pub})
}

// PrivateJWK exports priv as a decoded JWK object, including "d".
func PrivateJWK(priv *ecdsa.PrivateKey) (map[string]any, error) {
	return jwkObject(jose.JSONWebKey{Key: priv})
}

func jwkObject(k jose.JSONWebKey) (map[string]any, error) {
	data, err := k.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseJWK(raw any) (*jose.JSONWebKey, error) {
	var data []byte
	switch v := raw.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return nil, err
		}
	}

	var key jose.JSONWebKey
	if err := key.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedKey, err)
	}
	if !key.Valid() {
		return nil, fmt.Errorf("%w: invalid JWK", ErrUnsupportedKey)
	}
	return &key, nil
}

func checkCurve(pub *ecdsa.PublicKey) (*ecdsa.PublicKey, error) {
	if pub.Curve != elliptic.P521() {
		return nil, fmt.Errorf("%w: curve %s, want %s", ErrUnsupportedKey, pub.Curve.Params().Name, CurveName)
	}
	return pub, nil
}
