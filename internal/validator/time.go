package validator

import (
	"encoding/json"
	"regexp"
	"time"
)

// TimestampLayout is the ISO-8601 form used for every timestamp we emit:
// UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var timestampPattern = regexp.MustCompile(
	`^[0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9]{2}:[0-9]{2}:[0-9]{2}(\.[0-9]+)?(Z|[+-][0-9]{2}:?[0-9]{2})$`)

var userIDPattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// Time wraps time.Time so it serializes as an ISO-8601 timestamp.
type Time struct {
	time.Time
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(FormatTimestamp(t.Time))
}

func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	tm, err := Decode[Time](timestampNode, s)
	if err != nil {
		return err
	}
	*t = tm
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05.999999999Z0700", s)
}

var timestampNode = Map(
	Refine(Matching(timestampPattern, "invalid timestamp"), func(s string) bool {
		_, err := parseTimestamp(s)
		return err == nil
	}, "invalid timestamp"),
	func(s string) (Time, error) {
		t, err := parseTimestamp(s)
		return Time{t}, err
	},
)

// Timestamp accepts ISO-8601 text and yields a Time.
func Timestamp() *Node { return timestampNode }

var userIDNode = Matching(userIDPattern, "invalid UserID")

// UserID accepts upper-case alphanumeric identifiers.
func UserID() *Node { return userIDNode }
