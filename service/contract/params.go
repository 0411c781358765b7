// Package contract turns host-supplied parameter descriptors into ABI call
// data and drives contract calls through the ledger SDK.
package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Param is one typed contract parameter. The set of implementations is closed;
// Parse is the only producer.
type Param interface {
	// Tag is the descriptor type tag, e.g. "address" or "tuple[]".
	Tag() string
	param()
}

// Address is a single account id or EVM address.
type Address struct{ Value string }

// AddressArray is an ordered list of account ids or EVM addresses.
type AddressArray struct{ Values []string }

// Bytes32 holds the base64 text of a JSON byte array.
type Bytes32 struct{ Value string }

// Uint is a scalar integer passed through as a decimal string. Type is one of
// uint8, int64, uint64 or uint256.
type Uint struct {
	Type  string
	Value string
}

// UintArray is uint64[] or uint256[].
type UintArray struct {
	Type   string
	Values []string
}

// String is a UTF-8 string.
type String struct{ Value string }

// StringArray is a list of strings.
type StringArray struct{ Values []string }

// Tuple is a nested, ordered parameter list.
type Tuple struct{ Params []Param }

// TupleArray is a list of tuples. Only the first element's signature is used
// when encoding.
type TupleArray struct{ Elements [][]Param }

func (Address) Tag() string      { return "address" }
func (AddressArray) Tag() string { return "address[]" }
func (Bytes32) Tag() string      { return "bytes32" }
func (p Uint) Tag() string       { return p.Type }
func (p UintArray) Tag() string  { return p.Type }
func (String) Tag() string       { return "string" }
func (StringArray) Tag() string  { return "string[]" }
func (Tuple) Tag() string        { return "tuple" }
func (TupleArray) Tag() string   { return "tuple[]" }

func (Address) param()      {}
func (AddressArray) param() {}
func (Bytes32) param()      {}
func (Uint) param()         {}
func (UintArray) param()    {}
func (String) param()       {}
func (StringArray) param()  {}
func (Tuple) param()        {}
func (TupleArray) param()   {}

// UnsupportedTypeError reports a descriptor tag with no encoding.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("type not implemented: %q", e.Type)
}

// ErrEmptyValue is returned when a descriptor carries no value.
var ErrEmptyValue = errors.New("parameter has no value")

type descriptor struct {
	Type  string            `json:"type"`
	Value []json.RawMessage `json:"value"`
}

// Parse decodes a JSON descriptor list such as
//
//	[{"type":"address","value":["0.0.1234"]},{"type":"uint256","value":["10"]}]
//
// into typed parameters, preserving order. Tuple values are either a JSON
// string holding a nested descriptor list or the nested list inline.
func Parse(data []byte) ([]Param, error) {
	var descriptors []descriptor
	if err := json.Unmarshal(data, &descriptors); err != nil {
		return nil, fmt.Errorf("invalid parameter list: %w", err)
	}
	params := make([]Param, 0, len(descriptors))
	for i, d := range descriptors {
		p, err := parseDescriptor(d)
		if err != nil {
			return nil, fmt.Errorf("parameter %d (%s): %w", i, d.Type, err)
		}
		params = append(params, p)
	}
	return params, nil
}

func parseDescriptor(d descriptor) (Param, error) {
	switch d.Type {
	case "address":
		v, err := firstString(d.Value)
		if err != nil {
			return nil, err
		}
		return Address{Value: v}, nil
	case "address[]":
		vs, err := allStrings(d.Value)
		if err != nil {
			return nil, err
		}
		return AddressArray{Values: vs}, nil
	case "bytes32":
		v, err := firstString(d.Value)
		if err != nil {
			return nil, err
		}
		return Bytes32{Value: v}, nil
	case "uint8", "int64", "uint64", "uint256":
		v, err := firstString(d.Value)
		if err != nil {
			return nil, err
		}
		return Uint{Type: d.Type, Value: v}, nil
	case "uint64[]", "uint256[]":
		vs, err := allStrings(d.Value)
		if err != nil {
			return nil, err
		}
		return UintArray{Type: d.Type, Values: vs}, nil
	case "string":
		v, err := firstString(d.Value)
		if err != nil {
			return nil, err
		}
		return String{Value: v}, nil
	case "string[]":
		vs, err := allStrings(d.Value)
		if err != nil {
			return nil, err
		}
		return StringArray{Values: vs}, nil
	case "tuple":
		if len(d.Value) == 0 {
			return nil, ErrEmptyValue
		}
		// An inline descriptor list spreads its entries across the value array.
		if isObject(d.Value[0]) {
			inner, err := parseDescriptorList(d.Value)
			if err != nil {
				return nil, err
			}
			return Tuple{Params: inner}, nil
		}
		inner, err := parseNested(d.Value[0])
		if err != nil {
			return nil, err
		}
		return Tuple{Params: inner}, nil
	case "tuple[]":
		if len(d.Value) == 0 {
			return nil, ErrEmptyValue
		}
		elems := make([][]Param, 0, len(d.Value))
		for i, raw := range d.Value {
			inner, err := parseNested(raw)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			elems = append(elems, inner)
		}
		return TupleArray{Elements: elems}, nil
	default:
		return nil, &UnsupportedTypeError{Type: d.Type}
	}
}

// parseNested parses a nested descriptor list given as a JSON string or array.
func parseNested(raw json.RawMessage) ([]Param, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return Parse([]byte(s))
	}
	return Parse(raw)
}

func parseDescriptorList(raws []json.RawMessage) ([]Param, error) {
	data, err := json.Marshal(raws)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func firstString(values []json.RawMessage) (string, error) {
	if len(values) == 0 {
		return "", ErrEmptyValue
	}
	return scalarString(values[0])
}

func allStrings(values []json.RawMessage) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, raw := range values {
		s, err := scalarString(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// scalarString accepts JSON strings and numbers; numbers keep their literal
// text so large integers are not rounded.
func scalarString(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	default:
		return "", fmt.Errorf("expected string or number, got %s", string(raw))
	}
}
