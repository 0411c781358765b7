package contract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// AddressResolver maps account ids to EVM addresses.
type AddressResolver interface {
	ToEVMAddress(ctx context.Context, accountIDOrAddress string) (string, error)
}

// EncodedCall is the index-aligned type signature and value lists for one
// call. A tuple occupies a single position: its type is "(inner,...)" and its
// value the inner []any.
type EncodedCall struct {
	Types  []string
	Values []any

	// components describes each position for ABI packing.
	components []abi.ArgumentMarshaling
}

// Signature returns "name(type,...)".
func (e *EncodedCall) Signature(functionName string) string {
	return functionName + "(" + strings.Join(e.Types, ",") + ")"
}

func (e *EncodedCall) append(typ string, value any, component abi.ArgumentMarshaling) {
	e.Types = append(e.Types, typ)
	e.Values = append(e.Values, value)
	e.components = append(e.components, component)
}

// ParseAndEncode parses a JSON descriptor list and encodes it.
func ParseAndEncode(ctx context.Context, data []byte, resolver AddressResolver) (*EncodedCall, error) {
	params, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Encode(ctx, params, resolver)
}

// Encode resolves addresses and builds the type and value lists for params.
func Encode(ctx context.Context, params []Param, resolver AddressResolver) (*EncodedCall, error) {
	call := &EncodedCall{
		Types:  make([]string, 0, len(params)),
		Values: make([]any, 0, len(params)),
	}
	for i, p := range params {
		if err := encodeParam(ctx, call, i, p, resolver); err != nil {
			return nil, fmt.Errorf("parameter %d (%s): %w", i, p.Tag(), err)
		}
	}
	return call, nil
}

func encodeParam(ctx context.Context, call *EncodedCall, index int, p Param, resolver AddressResolver) error {
	name := fmt.Sprintf("f%d", index)

	switch p := p.(type) {
	case Address:
		addr, err := resolver.ToEVMAddress(ctx, p.Value)
		if err != nil {
			return err
		}
		call.append("address", addr, abi.ArgumentMarshaling{Name: name, Type: "address"})
	case AddressArray:
		addrs := make([]string, 0, len(p.Values))
		for _, v := range p.Values {
			addr, err := resolver.ToEVMAddress(ctx, v)
			if err != nil {
				return err
			}
			addrs = append(addrs, addr)
		}
		call.append("address[]", addrs, abi.ArgumentMarshaling{Name: name, Type: "address[]"})
	case Bytes32:
		b, err := decodeBytes32(p.Value)
		if err != nil {
			return err
		}
		call.append("bytes32", b, abi.ArgumentMarshaling{Name: name, Type: "bytes32"})
	case Uint:
		call.append(p.Type, p.Value, abi.ArgumentMarshaling{Name: name, Type: p.Type})
	case UintArray:
		call.append(p.Type, p.Values, abi.ArgumentMarshaling{Name: name, Type: p.Type})
	case String:
		call.append("string", p.Value, abi.ArgumentMarshaling{Name: name, Type: "string"})
	case StringArray:
		call.append("string[]", p.Values, abi.ArgumentMarshaling{Name: name, Type: "string[]"})
	case Tuple:
		inner, err := Encode(ctx, p.Params, resolver)
		if err != nil {
			return err
		}
		call.append(inner.tupleType(), inner.Values, abi.ArgumentMarshaling{
			Name:       name,
			Type:       "tuple",
			Components: inner.components,
		})
	case TupleArray:
		if len(p.Elements) == 0 {
			return ErrEmptyValue
		}
		values := make([][]any, 0, len(p.Elements))
		var first *EncodedCall
		for i, elem := range p.Elements {
			inner, err := Encode(ctx, elem, resolver)
			if err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			if first == nil {
				first = inner
			}
			values = append(values, inner.Values)
		}
		call.append(first.tupleType()+"[]", values, abi.ArgumentMarshaling{
			Name:       name,
			Type:       "tuple[]",
			Components: first.components,
		})
	default:
		return &UnsupportedTypeError{Type: p.Tag()}
	}
	return nil
}

func (e *EncodedCall) tupleType() string {
	return "(" + strings.Join(e.Types, ",") + ")"
}

// decodeBytes32 undoes the host's encoding: base64 text of a JSON array of
// byte values.
func decodeBytes32(value string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid bytes32 base64: %w", err)
	}
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, fmt.Errorf("invalid bytes32 payload: %w", err)
	}
	out := make([]byte, len(ints))
	for i, n := range ints {
		if n < 0 || n > 255 {
			return nil, fmt.Errorf("invalid bytes32 payload: byte %d out of range: %d", i, n)
		}
		out[i] = byte(n)
	}
	return out, nil
}
