package contract

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockResolver maps account ids through a fixed table.
type mockResolver struct {
	addresses map[string]string
	err       error
}

func (m *mockResolver) ToEVMAddress(ctx context.Context, id string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if len(id) >= 32 {
		return id, nil
	}
	addr, ok := m.addresses[id]
	if !ok {
		return "", errors.New("unknown account " + id)
	}
	return addr, nil
}

const (
	addr1234 = "0x00000000000000000000000000000000000004d2"
	addr99   = "0x0000000000000000000000000000000000000063"
)

func newResolver() *mockResolver {
	return &mockResolver{addresses: map[string]string{
		"0.0.1234": addr1234,
		"0.0.99":   addr99,
	}}
}

func TestParseAndEncode_IndexAligned(t *testing.T) {
	input := `[
		{"type":"address","value":["0.0.1234"]},
		{"type":"uint256","value":["1000000000000000000000"]},
		{"type":"address[]","value":["0.0.99","0.0.1234"]},
		{"type":"string","value":["memo"]},
		{"type":"string[]","value":["a","b"]},
		{"type":"uint64[]","value":["1",2]},
		{"type":"uint8","value":[7]},
		{"type":"int64","value":["-3"]}
	]`

	call, err := ParseAndEncode(context.Background(), []byte(input), newResolver())
	require.NoError(t, err)

	assert.Equal(t, []string{"address", "uint256", "address[]", "string", "string[]", "uint64[]", "uint8", "int64"}, call.Types)
	require.Len(t, call.Values, len(call.Types))
	assert.Equal(t, addr1234, call.Values[0])
	assert.Equal(t, "1000000000000000000000", call.Values[1])
	assert.Equal(t, []string{addr99, addr1234}, call.Values[2])
	assert.Equal(t, "memo", call.Values[3])
	assert.Equal(t, []string{"a", "b"}, call.Values[4])
	assert.Equal(t, []string{"1", "2"}, call.Values[5])
	assert.Equal(t, "7", call.Values[6])
	assert.Equal(t, "-3", call.Values[7])
}

func TestParseAndEncode_NestedTupleIsWrappedInPlace(t *testing.T) {
	inner := `[{"type":"uint64","value":["1"]},{"type":"address","value":["0.0.99"]}]`
	input := `[
		{"type":"string","value":["before"]},
		{"type":"tuple","value":[` + quote(inner) + `]},
		{"type":"string","value":["after"]}
	]`
	ctx := context.Background()

	call, err := ParseAndEncode(ctx, []byte(input), newResolver())
	require.NoError(t, err)

	direct, err := ParseAndEncode(ctx, []byte(inner), newResolver())
	require.NoError(t, err)

	assert.Equal(t, []string{"string", "(" + strings.Join(direct.Types, ",") + ")", "string"}, call.Types)
	assert.Equal(t, "(uint64,address)", call.Types[1])
	assert.Equal(t, direct.Values, call.Values[1])
	assert.Equal(t, "after", call.Values[2])
}

func TestParse_InlineTuple(t *testing.T) {
	input := `[{"type":"tuple","value":[{"type":"uint64","value":["1"]},{"type":"string","value":["x"]}]}]`

	params, err := Parse([]byte(input))
	require.NoError(t, err)
	require.Len(t, params, 1)

	tuple, ok := params[0].(Tuple)
	require.True(t, ok)
	assert.Equal(t, []Param{Uint{Type: "uint64", Value: "1"}, String{Value: "x"}}, tuple.Params)
}

func TestParseAndEncode_TupleArrayUsesFirstSignature(t *testing.T) {
	first := `[{"type":"uint64","value":["1"]}]`
	second := `[{"type":"string","value":["not a number"]}]`
	input := `[{"type":"tuple[]","value":[` + quote(first) + `,` + quote(second) + `]}]`

	call, err := ParseAndEncode(context.Background(), []byte(input), newResolver())
	require.NoError(t, err)

	assert.Equal(t, []string{"(uint64)[]"}, call.Types)
	assert.Equal(t, [][]any{{"1"}, {"not a number"}}, call.Values[0])

	// Packing applies the first signature to every element.
	_, err = Pack(call)
	assert.Error(t, err)
}

func TestParseAndEncode_EmptyTupleArray(t *testing.T) {
	_, err := ParseAndEncode(context.Background(), []byte(`[{"type":"tuple[]","value":[]}]`), newResolver())
	assert.ErrorIs(t, err, ErrEmptyValue)
}

func TestParse_UnsupportedType(t *testing.T) {
	_, err := Parse([]byte(`[{"type":"address","value":["0.0.1"]},{"type":"bool","value":["true"]}]`))
	require.Error(t, err)

	var unsupported *UnsupportedTypeError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "bool", unsupported.Type)
	assert.Contains(t, err.Error(), "type not implemented")
}

func TestParse_UnsupportedTypeInsideTuple(t *testing.T) {
	inner := `[{"type":"bytes","value":["AA=="]}]`
	_, err := Parse([]byte(`[{"type":"tuple","value":[` + quote(inner) + `]}]`))

	var unsupported *UnsupportedTypeError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "bytes", unsupported.Type)
}

func TestParse_MissingValue(t *testing.T) {
	_, err := Parse([]byte(`[{"type":"address","value":[]}]`))
	assert.ErrorIs(t, err, ErrEmptyValue)
}

func TestEncode_Bytes32(t *testing.T) {
	ints := make([]string, 32)
	for i := range ints {
		ints[i] = string(rune('0' + i%10))
	}
	payload := base64.StdEncoding.EncodeToString([]byte("[" + strings.Join(ints, ",") + "]"))

	call, err := ParseAndEncode(context.Background(), []byte(`[{"type":"bytes32","value":["`+payload+`"]}]`), newResolver())
	require.NoError(t, err)

	b, ok := call.Values[0].([]byte)
	require.True(t, ok)
	require.Len(t, b, 32)
	assert.Equal(t, byte(9), b[9])

	packed, err := Pack(call)
	require.NoError(t, err)
	assert.Equal(t, b, packed)
}

func TestEncode_Bytes32Invalid(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "not base64", value: "%%%"},
		{name: "not a json array", value: base64.StdEncoding.EncodeToString([]byte("hello"))},
		{name: "byte out of range", value: base64.StdEncoding.EncodeToString([]byte("[256]"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAndEncode(context.Background(), []byte(`[{"type":"bytes32","value":["`+tt.value+`"]}]`), newResolver())
			assert.Error(t, err)
		})
	}
}

func TestEncode_ResolverFailurePropagates(t *testing.T) {
	r := &mockResolver{err: errors.New("mirror unavailable")}
	_, err := ParseAndEncode(context.Background(), []byte(`[{"type":"address[]","value":["0.0.1"]}]`), r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mirror unavailable")
}

func TestSelector(t *testing.T) {
	assert.Equal(t, "a9059cbb", hex.EncodeToString(Selector("transfer(address,uint256)")))
	assert.Equal(t, "70a08231", hex.EncodeToString(Selector("balanceOf(address)")))
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
