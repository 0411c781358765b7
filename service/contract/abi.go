package contract

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Selector returns the 4-byte function selector for a signature such as
// "transfer(address,uint256)".
func Selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// CallData returns selector ‖ abi-encoded arguments for functionName.
func CallData(functionName string, call *EncodedCall) ([]byte, error) {
	packed, err := Pack(call)
	if err != nil {
		return nil, err
	}
	selector := Selector(call.Signature(functionName))
	out := make([]byte, 0, len(selector)+len(packed))
	out = append(out, selector...)
	return append(out, packed...), nil
}

// Pack ABI-encodes the call's values.
func Pack(call *EncodedCall) ([]byte, error) {
	if len(call.components) != len(call.Values) {
		return nil, fmt.Errorf("call has %d values but %d type descriptions", len(call.Values), len(call.components))
	}
	args := make(abi.Arguments, 0, len(call.components))
	values := make([]any, 0, len(call.Values))
	for i, c := range call.components {
		t, err := abi.NewType(c.Type, "", c.Components)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		v, err := toABIValue(t, call.Values[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, call.Types[i], err)
		}
		args = append(args, abi.Argument{Name: c.Name, Type: t})
		values = append(values, v.Interface())
	}
	return args.Pack(values...)
}

// toABIValue converts codec values (strings, byte slices, nested lists) into
// the Go types go-ethereum packs for t.
func toABIValue(t abi.Type, v any) (reflect.Value, error) {
	switch t.T {
	case abi.AddressTy:
		s, ok := v.(string)
		if !ok || !common.IsHexAddress(s) {
			return reflect.Value{}, fmt.Errorf("invalid address %v", v)
		}
		return reflect.ValueOf(common.HexToAddress(s)), nil

	case abi.UintTy, abi.IntTy:
		s, ok := v.(string)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected numeric string, got %T", v)
		}
		return toInteger(t, s)

	case abi.StringTy:
		s, ok := v.(string)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected string, got %T", v)
		}
		return reflect.ValueOf(s), nil

	case abi.FixedBytesTy:
		b, ok := v.([]byte)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected bytes, got %T", v)
		}
		if len(b) != t.Size {
			return reflect.Value{}, fmt.Errorf("expected %d bytes, got %d", t.Size, len(b))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr, nil

	case abi.SliceTy:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice {
			return reflect.Value{}, fmt.Errorf("expected list, got %T", v)
		}
		out := reflect.MakeSlice(t.GetType(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ev, err := toABIValue(*t.Elem, rv.Index(i).Interface())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(ev)
		}
		return out, nil

	case abi.TupleTy:
		items, ok := v.([]any)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected tuple values, got %T", v)
		}
		if len(items) != len(t.TupleElems) {
			return reflect.Value{}, fmt.Errorf("tuple has %d components but %d values", len(t.TupleElems), len(items))
		}
		out := reflect.New(t.GetType()).Elem()
		for i, et := range t.TupleElems {
			fv, err := toABIValue(*et, items[i])
			if err != nil {
				return reflect.Value{}, fmt.Errorf("component %d: %w", i, err)
			}
			out.Field(i).Set(fv)
		}
		return out, nil

	default:
		return reflect.Value{}, &UnsupportedTypeError{Type: t.String()}
	}
}

func toInteger(t abi.Type, s string) (reflect.Value, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return reflect.Value{}, fmt.Errorf("invalid integer %q", s)
	}
	if t.T == abi.UintTy && n.Sign() < 0 {
		return reflect.Value{}, fmt.Errorf("negative value %s for %s", s, t.String())
	}

	if t.Size > 64 {
		limit := t.Size
		if t.T == abi.IntTy {
			limit--
		}
		if n.BitLen() > limit {
			return reflect.Value{}, fmt.Errorf("value %s overflows %s", s, t.String())
		}
		return reflect.ValueOf(n), nil
	}

	out := reflect.New(t.GetType()).Elem()
	if t.T == abi.UintTy {
		if !n.IsUint64() || out.OverflowUint(n.Uint64()) {
			return reflect.Value{}, fmt.Errorf("value %s overflows %s", s, t.String())
		}
		out.SetUint(n.Uint64())
		return out, nil
	}
	if !n.IsInt64() || out.OverflowInt(n.Int64()) {
		return reflect.Value{}, fmt.Errorf("value %s overflows %s", s, t.String())
	}
	out.SetInt(n.Int64())
	return out, nil
}
