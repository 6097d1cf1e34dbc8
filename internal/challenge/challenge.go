// Package challenge issues and verifies stateless login challenges.
//
// A challenge token is
//
//	hex(signature) + "/" + {"userID":"<id>","expires":<epoch millis>}
//
// where signature is the server's ECDSA P-521/SHA-512 signature over the
// JSON bytes. Nothing is stored: a token is valid when its signature
// checks out under the server key, it names the expected user and its
// expiry has not passed.
package challenge

import (
	"regexp"
	"time"

	"github.com/dmitrijs2005/sigauth/internal/cryptox"
	"github.com/dmitrijs2005/sigauth/internal/validator"
)

// TTL is how long a challenge stays usable after it is issued.
const TTL = 5 * time.Minute

// Status is the outcome of Verify.
type Status int

const (
	Invalid Status = iota
	Expired
	OK
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case Expired:
		return "expired"
	default:
		return "invalid"
	}
}

var tokenPattern = regexp.MustCompile(`^((?:[0-9a-f]{2})+)/(.+)$`)

type payload struct {
	UserID  string `json:"userID"`
	Expires int64  `json:"expires"`
}

var payloadNode = validator.Record(
	validator.F("userID", validator.String()),
	validator.F("expires", validator.Number()),
)

// Challenge is a freshly issued token and the instant it stops being valid.
type Challenge struct {
	Token     string
	ExpiresAt time.Time
}

// Issuer creates and verifies challenges with one key pair. It is safe for
// concurrent use.
type Issuer struct {
	keys KeyPair
	now  func() time.Time
}

type Option func(*Issuer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(keys KeyPair, opts ...Option) *Issuer {
	i := &Issuer{keys: keys, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Create issues a challenge for userID expiring TTL from now.
func (i *Issuer) Create(userID string) (Challenge, error) {
	expires := i.now().Add(TTL).UnixMilli()

	body, err := validator.Serialize(payload{UserID: userID, Expires: expires})
	if err != nil {
		return Challenge{}, err
	}
	sig, err := cryptox.Sign(i.keys.signing, body)
	if err != nil {
		return Challenge{}, err
	}

	return Challenge{
		Token:     validator.EncodeHex(sig) + "/" + string(body),
		ExpiresAt: time.UnixMilli(expires).UTC(),
	}, nil
}

// Verify checks token for userID. Integrity failures (shape, signature,
// payload, user) all report Invalid; Expired is only reported for a token
// that is otherwise genuine.
func (i *Issuer) Verify(userID, token string) Status {
	m := tokenPattern.FindStringSubmatch(token)
	if m == nil {
		return Invalid
	}
	sig, err := validator.DecodeHex(m[1])
	if err != nil {
		return Invalid
	}
	body := []byte(m[2])
	if !cryptox.Verify(i.keys.verifying, body, sig) {
		return Invalid
	}

	p, err := validator.DecodeJSON[validator.Object](payloadNode, body)
	if err != nil {
		return Invalid
	}
	if validator.Get[string](p, "userID") != userID {
		return Invalid
	}
	if validator.Get[float64](p, "expires") < float64(i.now().UnixMilli()) {
		return Expired
	}
	return OK
}
