package validator

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func requireValidationError(t *testing.T, err error, path []string, message string) {
	t.Helper()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	if diff := cmp.Diff(path, ve.Path); diff != "" {
		t.Fatalf("path mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, message, ve.Message)
}

func TestPrimitives(t *testing.T) {
	tests := []struct {
		name    string
		node    *Node
		in      any
		want    any
		wantMsg string
	}{
		{"string ok", String(), "x", "x", ""},
		{"string rejects number", String(), 1.0, nil, "must be a string"},
		{"string rejects null", String(), nil, nil, "must be a string"},
		{"string rejects absent", String(), Undefined, nil, "must be a string"},
		{"number ok", Number(), 2.5, 2.5, ""},
		{"number accepts int", Number(), 7, 7.0, ""},
		{"number accepts json.Number", Number(), json.Number("12"), 12.0, ""},
		{"number rejects string", Number(), "1", nil, "must be a number"},
		{"number rejects NaN", Number(), math.NaN(), nil, "must be a finite number"},
		{"number rejects Inf", Number(), math.Inf(-1), nil, "must be a finite number"},
		{"boolean ok", Boolean(), true, true, ""},
		{"boolean rejects string", Boolean(), "true", nil, "must be a boolean"},
		{"any object rejects string", AnyObject(), "{}", nil, "must be any object"},
		{"literal string", Literal("PBKDF2"), "PBKDF2", "PBKDF2", ""},
		{"literal string mismatch", Literal("PBKDF2"), "pbkdf2", nil, `must be literal "PBKDF2"`},
		{"literal number", Literal(128), 128.0, 128.0, ""},
		{"literal number mismatch", Literal(128), 96.0, nil, "must be literal 128"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.node.Validate(tt.in, []string{"f"})
			if tt.wantMsg != "" {
				requireValidationError(t, err, []string{"f"}, tt.wantMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnyObject_Copies(t *testing.T) {
	in := map[string]any{"kty": "EC", "nested": map[string]any{"a": 1.0}}
	got, err := AnyObject().Validate(in, nil)
	require.NoError(t, err)

	in["nested"].(map[string]any)["a"] = 2.0
	assert.Equal(t, 1.0, got.(map[string]any)["nested"].(map[string]any)["a"])
}

func TestRecord_DropsUnknownFields(t *testing.T) {
	n := Record(F("a", Number()))
	got, err := n.Validate(mustParse(t, `{"a":1,"b":2}`), nil)
	require.NoError(t, err)
	assert.Equal(t, NewObject(map[string]any{"a": 1.0}), got)
	assert.Equal(t, []string{"a"}, got.(Object).Keys())
}

func TestRecord_MissingFieldIsUndefined(t *testing.T) {
	n := Record(F("a", Number()), F("b", String()))
	_, err := n.Validate(mustParse(t, `{"a":1}`), []string{"body"})
	requireValidationError(t, err, []string{"body", "b"}, "must be a string")
}

func TestRecord_RejectsNonObjects(t *testing.T) {
	n := Record(F("a", Number()))
	for _, in := range []any{nil, "x", 1.0, []any{}} {
		_, err := n.Validate(in, nil)
		requireValidationError(t, err, []string{}, "must be an object")
	}
}

func TestRecord_PathDoesNotLeakBetweenFields(t *testing.T) {
	inner := Record(F("x", Number()))
	n := Record(F("first", Optional(inner)), F("second", String()))

	_, err := n.Validate(mustParse(t, `{"first":{"x":1},"second":3}`), nil)
	requireValidationError(t, err, []string{"second"}, "must be a string")
}

func TestRecord_CallerPathUntouched(t *testing.T) {
	path := make([]string, 1, 8)
	path[0] = "root"
	n := Record(F("a", Record(F("b", String()))))

	_, err := n.Validate(mustParse(t, `{"a":{"b":1}}`), path)
	requireValidationError(t, err, []string{"root", "a", "b"}, "must be a string")
	assert.Equal(t, []string{"root"}, path)
	assert.Equal(t, "root", path[:cap(path)][0])
	assert.Empty(t, path[:cap(path)][1])
}

func TestOptional(t *testing.T) {
	n := Record(F("name", String()), F("nick", Optional(String())))

	got, err := n.Validate(mustParse(t, `{"name":"a"}`), nil)
	require.NoError(t, err)
	obj := got.(Object)
	assert.False(t, obj.Has("nick"))

	_, err = n.Validate(mustParse(t, `{"name":"a","nick":null}`), nil)
	requireValidationError(t, err, []string{"nick"}, "must be a string")

	got, err = n.Validate(mustParse(t, `{"name":"a","nick":"b"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "b", Get[string](got.(Object), "nick"))
}

func TestArray(t *testing.T) {
	n := Array(Number())

	got, err := n.Validate(mustParse(t, `[3,1,2]`), nil)
	require.NoError(t, err)
	assert.Equal(t, NewList(3.0, 1.0, 2.0), got)

	_, err = n.Validate(mustParse(t, `[1,"x",true]`), []string{"list"})
	requireValidationError(t, err, []string{"list", "1"}, "must be a number")

	_, err = n.Validate(mustParse(t, `{"0":1}`), nil)
	requireValidationError(t, err, []string{}, "must be an array")
}

func TestRecordAndArray_ResultsAreIsolated(t *testing.T) {
	n := Record(F("tags", Array(String())), F("meta", AnyObject()))
	raw := mustParse(t, `{"tags":["a","b"],"meta":{"k":"v"}}`)

	got, err := Decode[Object](n, raw)
	require.NoError(t, err)

	raw.(map[string]any)["tags"].([]any)[0] = "changed"
	raw.(map[string]any)["meta"].(map[string]any)["k"] = "changed"

	tags := Get[List](got, "tags")
	copied := tags.Slice()
	copied[1] = "changed"

	assert.Equal(t, []any{"a", "b"}, tags.Slice())
	assert.Equal(t, "a", tags.At(0))
	assert.Equal(t, "v", Get[map[string]any](got, "meta")["k"])

	fields := map[string]any{"x": 1.0}
	obj := NewObject(fields)
	fields["x"] = 2.0
	fields["y"] = 3.0
	assert.Equal(t, 1.0, Get[float64](obj, "x"))
	assert.Equal(t, 1, obj.Len())

	again, err := Decode[Object](n, got)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestUnion_FirstMatchWins(t *testing.T) {
	n := Union(
		Map(Literal("a"), func(string) (string, error) { return "first", nil }),
		Map(String(), func(string) (string, error) { return "second", nil }),
	)
	got, err := n.Validate("a", nil)
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	got, err = n.Validate("b", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestUnion_CommonPrefixError(t *testing.T) {
	n := Union(
		Record(F("x", Record(F("y", String())))),
		Record(F("x", Record(F("z", Number())))),
	)
	_, err := n.Validate(mustParse(t, `{"x":{}}`), nil)
	requireValidationError(t, err, []string{"x"}, "y: must be a string OR z: must be a number")
}

func TestUnion_TagMismatchAtSameField(t *testing.T) {
	n := Union(
		Record(F("tag", Literal("created"))),
		Record(F("tag", Literal("problem"))),
	)
	_, err := n.Validate(mustParse(t, `{"tag":"other"}`), []string{"resp"})
	requireValidationError(t, err, []string{"resp", "tag"}, `: must be literal "created" OR : must be literal "problem"`)
}

func TestUnion_ShorterPathBoundsPrefix(t *testing.T) {
	n := Union(
		Record(F("x", Record(F("y", String())))),
		Record(F("x", String())),
	)
	_, err := n.Validate(mustParse(t, `{"x":{"y":1}}`), nil)
	requireValidationError(t, err, []string{"x"}, "y: must be a string OR : must be a string")
}

func TestUnion_RequiresTwoAlternatives(t *testing.T) {
	assert.Panics(t, func() { Union(String()) })
	assert.Panics(t, func() { Union() })
}

func TestUnion_DoesNotSwallowFaults(t *testing.T) {
	boom := errors.New("boom")
	n := Union(
		Map(String(), func(string) (string, error) { return "", boom }),
		String(),
	)
	_, err := n.Validate("x", nil)
	require.ErrorIs(t, err, boom)
}

func TestRefine(t *testing.T) {
	positive := Refine(Number(), func(f float64) bool { return f > 0 }, "")
	_, err := positive.Validate(-1.0, []string{"n"})
	requireValidationError(t, err, []string{"n"}, "invalid")

	got, err := positive.Validate(3.0, nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)

	re := regexp.MustCompile(`^[a-z]+$`)
	lower := Matching(re, "must be lowercase")
	_, err = lower.Validate("ABC", nil)
	requireValidationError(t, err, []string{}, "must be lowercase")
}

func TestMap_PropagatesTransformError(t *testing.T) {
	boom := errors.New("transform failed")
	n := Record(F("a", Map(String(), func(string) (int, error) { return 0, boom })))
	_, err := n.Validate(mustParse(t, `{"a":"x"}`), nil)
	require.ErrorIs(t, err, boom)

	var ve *ValidationError
	assert.False(t, errors.As(err, &ve))
}

func TestMap_TypeMismatchIsFault(t *testing.T) {
	n := Map(Number(), func(s string) (string, error) { return s, nil })
	_, err := n.Validate(1.0, nil)
	require.Error(t, err)

	var ve *ValidationError
	assert.False(t, errors.As(err, &ve))
}

func TestRecord_PanicsOnDuplicateField(t *testing.T) {
	assert.Panics(t, func() { Record(F("a", String()), F("a", Number())) })
}

func TestDecode(t *testing.T) {
	type pair struct {
		Name  string
		Count int
	}
	n := Map(Record(F("name", String()), F("count", Number())), func(o Object) (pair, error) {
		return pair{Name: Get[string](o, "name"), Count: int(Get[float64](o, "count"))}, nil
	})

	got, err := DecodeJSON[pair](n, []byte(`{"name":"a","count":2,"extra":true}`))
	require.NoError(t, err)
	assert.Equal(t, pair{Name: "a", Count: 2}, got)

	_, err = DecodeJSON[pair](n, []byte(`{"name":`))
	require.Error(t, err)
	var syntax *json.SyntaxError
	assert.ErrorAs(t, err, &syntax)

	_, err = Decode[string](n, mustParse(t, `{"name":"a","count":2}`))
	require.Error(t, err)
}

func TestValidate_Deterministic(t *testing.T) {
	n := Record(F("a", String()), F("b", String()), F("c", String()))
	in := mustParse(t, `{"a":1,"b":2,"c":3}`)
	for i := 0; i < 20; i++ {
		_, err := n.Validate(in, nil)
		requireValidationError(t, err, []string{"a"}, "must be a string")
	}
}

func TestValidationError_Error(t *testing.T) {
	assert.Equal(t, "<root>: bad", (&ValidationError{Message: "bad"}).Error())
	assert.Equal(t, "a.0.b: bad", (&ValidationError{Path: []string{"a", "0", "b"}, Message: "bad"}).Error())
}
