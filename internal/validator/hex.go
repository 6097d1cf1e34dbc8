package validator

import (
	"encoding/hex"
	"encoding/json"
	"regexp"
)

var hexBytesPattern = regexp.MustCompile(`^(?:[0-9a-f]{2})*$`)

// Bytes is a byte slice that travels through JSON as lowercase hex text.
type Bytes []byte

func (b Bytes) String() string {
	return EncodeHex(b)
}

func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(EncodeHex(b))
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := DecodeHex(s)
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

// EncodeHex renders b as lowercase, high-nibble-first hex.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

// DecodeHex is the inverse of EncodeHex. Uppercase digits, odd lengths and
// any other character fail with a *ValidationError.
func DecodeHex(s string) ([]byte, error) {
	if !hexBytesPattern.MatchString(s) {
		return nil, &ValidationError{Path: []string{}, Message: "invalid hex bytes"}
	}
	return hex.DecodeString(s)
}

var hexBytesNode = Map(
	Matching(hexBytesPattern, "invalid hex bytes"),
	func(s string) (Bytes, error) {
		b, err := hex.DecodeString(s)
		return Bytes(b), err
	},
)

// HexBytes accepts lowercase even-length hex text and yields Bytes.
func HexBytes() *Node { return hexBytesNode }
