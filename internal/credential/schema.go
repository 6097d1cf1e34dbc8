package credential

import (
	"math"

	"github.com/dmitrijs2005/sigauth/internal/cryptox"
	"github.com/dmitrijs2005/sigauth/internal/validator"
)

// MaxIterations bounds the PBKDF2 work factor a client may ask the server
// to store.
const MaxIterations = 100_000_000

var iterationsNode = validator.Map(
	validator.Refine(validator.Number(), func(f float64) bool {
		return f >= 1 && f <= MaxIterations && f == math.Trunc(f)
	}, "must be a positive integer"),
	func(f float64) (int, error) { return int(f), nil },
)

var ivNode = validator.Refine(validator.HexBytes(), func(b validator.Bytes) bool {
	return len(b) == cryptox.NonceSize
}, "must be 12 bytes")

var pbkdf2ParamsNode = validator.Map(
	validator.Record(
		validator.F("name", validator.Literal(PBKDF2Name)),
		validator.F("hash", validator.Literal(HashSHA512)),
		validator.F("salt", validator.HexBytes()),
		validator.F("iterations", iterationsNode),
	),
	func(o validator.Object) (PBKDF2Params, error) {
		return PBKDF2Params{
			Name:       PBKDF2Name,
			Hash:       HashSHA512,
			Salt:       validator.Get[validator.Bytes](o, "salt"),
			Iterations: validator.Get[int](o, "iterations"),
		}, nil
	},
)

var keyPairNode = validator.Map(
	validator.Record(
		validator.F("algorithmParameters", validator.Record(
			validator.F("name", validator.Literal(ECDSAName)),
			validator.F("namedCurve", validator.Literal(NamedCurve)),
		)),
		validator.F("signatureParameters", validator.Record(
			validator.F("name", validator.Literal(ECDSAName)),
			validator.F("hash", validator.Literal(HashSHA512)),
		)),
		validator.F("privateKey", validator.Record(
			validator.F("encryptedBlob", validator.HexBytes()),
			validator.F("encryptionParameters", validator.Record(
				validator.F("name", validator.Literal(AESGCMName)),
				validator.F("iv", ivNode),
				validator.F("tagLength", validator.Literal(TagLength)),
			)),
		)),
		validator.F("publicKeyJwt", validator.AnyObject()),
	),
	func(o validator.Object) (KeyPair, error) {
		priv := validator.Get[validator.Object](o, "privateKey")
		enc := validator.Get[validator.Object](priv, "encryptionParameters")
		jwk := validator.Get[map[string]any](o, "publicKeyJwt")
		return KeyPair{
			AlgorithmParameters: AlgorithmParameters{Name: ECDSAName, NamedCurve: NamedCurve},
			SignatureParameters: SignatureParameters{Name: ECDSAName, Hash: HashSHA512},
			PrivateKey: WrappedKey{
				EncryptionParameters: EncryptionParameters{
					Name:      AESGCMName,
					IV:        validator.Get[validator.Bytes](enc, "iv"),
					TagLength: TagLength,
				},
				EncryptedBlob: validator.Get[validator.Bytes](priv, "encryptedBlob"),
			},
			PublicKeyJWK: jwk,
		}, nil
	},
)

var keyCredentialNode = validator.Map(
	validator.Record(
		validator.F("pbkdf2Params", pbkdf2ParamsNode),
		validator.F("keyPair", keyPairNode),
	),
	func(o validator.Object) (KeyCredential, error) {
		return KeyCredential{
			PBKDF2Params: validator.Get[PBKDF2Params](o, "pbkdf2Params"),
			KeyPair:      validator.Get[KeyPair](o, "keyPair"),
		}, nil
	},
)

// Schema validates a KeyCredential in its JSON form and yields a
// KeyCredential. It is used both for request bodies and for credentials
// read back from storage.
func Schema() *validator.Node { return keyCredentialNode }

// Decode parses stored credential JSON. path names the storage location
// and prefixes any validation error path.
func Decode(data []byte, path ...string) (KeyCredential, error) {
	return validator.DecodeJSON[KeyCredential](keyCredentialNode, data, path...)
}
