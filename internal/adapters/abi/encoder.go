package abi

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

var bigIntType = reflect.TypeOf((*big.Int)(nil))

const maxExactFloat = 1 << 53

// Encoder packs literal step arguments (strings, numbers, bools, lists and
// maps as decoded from YAML) against a contract ABI
type Encoder struct{}

// NewEncoder creates a new argument encoder
func NewEncoder() *Encoder {
	return &Encoder{}
}

// EncodeConstructor returns the ABI-encoded constructor arguments to append
// to creation bytecode
func (e *Encoder) EncodeConstructor(abiJSON json.RawMessage, args []any) ([]byte, error) {
	parsed, err := parseABI(abiJSON)
	if err != nil {
		return nil, err
	}

	inputs := parsed.Constructor.Inputs
	if len(inputs) != len(args) {
		return nil, fmt.Errorf("constructor takes %d arguments, got %d", len(inputs), len(args))
	}
	if len(args) == 0 {
		return nil, nil
	}

	values, err := convertArgs(inputs, args)
	if err != nil {
		return nil, err
	}
	return inputs.Pack(values...)
}

// EncodeCall returns calldata for method, which is either a name or a full
// signature such as "mint(string,string)"
func (e *Encoder) EncodeCall(abiJSON json.RawMessage, method string, args []any) ([]byte, error) {
	parsed, err := parseABI(abiJSON)
	if err != nil {
		return nil, err
	}

	m, values, err := resolveMethod(parsed, method, args)
	if err != nil {
		return nil, err
	}

	packed, err := m.Inputs.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", m.Sig, err)
	}
	return append(append([]byte{}, m.ID...), packed...), nil
}

func parseABI(abiJSON json.RawMessage) (*abi.ABI, error) {
	if len(bytes.TrimSpace(abiJSON)) == 0 {
		return &abi.ABI{}, nil
	}
	parsed, err := abi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return &parsed, nil
}

// resolveMethod picks the overload matching the name or signature whose
// inputs accept the given arguments
func resolveMethod(parsed *abi.ABI, method string, args []any) (*abi.Method, []any, error) {
	signature := strings.ReplaceAll(method, " ", "")
	bySig := strings.Contains(signature, "(")

	var named []abi.Method
	for _, m := range parsed.Methods {
		if bySig && m.Sig == signature || !bySig && m.RawName == method {
			named = append(named, m)
		}
	}
	if len(named) == 0 {
		return nil, nil, fmt.Errorf("method %s not found in ABI", method)
	}
	sort.Slice(named, func(i, j int) bool { return named[i].Sig < named[j].Sig })

	var (
		matched []abi.Method
		values  []any
		lastErr error
	)
	for _, m := range named {
		if len(m.Inputs) != len(args) {
			lastErr = fmt.Errorf("%s takes %d arguments, got %d", m.Sig, len(m.Inputs), len(args))
			continue
		}
		converted, err := convertArgs(m.Inputs, args)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", m.Sig, err)
			continue
		}
		matched = append(matched, m)
		values = converted
	}

	switch len(matched) {
	case 0:
		return nil, nil, lastErr
	case 1:
		return &matched[0], values, nil
	default:
		sigs := lo.Map(matched, func(m abi.Method, _ int) string { return m.Sig })
		return nil, nil, fmt.Errorf("method %s is ambiguous, use one of: %s", method, strings.Join(sigs, ", "))
	}
}

func convertArgs(inputs abi.Arguments, args []any) ([]any, error) {
	values := make([]any, len(args))
	for i, input := range inputs {
		v, err := convertValue(input.Type, args[i])
		if err != nil {
			name := input.Name
			if name == "" {
				name = strconv.Itoa(i)
			}
			return nil, fmt.Errorf("argument %s (%s): %w", name, input.Type.String(), err)
		}
		values[i] = v.Interface()
	}
	return values, nil
}

// convertValue turns a literal into the Go value go-ethereum packs for t
func convertValue(t abi.Type, v any) (reflect.Value, error) {
	switch t.T {
	case abi.IntTy, abi.UintTy:
		n, err := toBigInt(v)
		if err != nil {
			return reflect.Value{}, err
		}
		return fitInteger(t, n)

	case abi.BoolTy:
		switch b := v.(type) {
		case bool:
			return reflect.ValueOf(b), nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("invalid bool %q", b)
			}
			return reflect.ValueOf(parsed), nil
		}

	case abi.StringTy:
		if s, ok := v.(string); ok {
			return reflect.ValueOf(s), nil
		}

	case abi.AddressTy:
		switch a := v.(type) {
		case common.Address:
			return reflect.ValueOf(a), nil
		case string:
			if !common.IsHexAddress(a) {
				return reflect.Value{}, fmt.Errorf("invalid address %q", a)
			}
			return reflect.ValueOf(common.HexToAddress(a)), nil
		}

	case abi.BytesTy:
		b, err := toBytes(v)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b), nil

	case abi.FixedBytesTy:
		b, err := toBytes(v)
		if err != nil {
			return reflect.Value{}, err
		}
		if len(b) > t.Size {
			return reflect.Value{}, fmt.Errorf("%d bytes do not fit in bytes%d", len(b), t.Size)
		}
		out := reflect.New(t.GetType()).Elem()
		reflect.Copy(out, reflect.ValueOf(b))
		return out, nil

	case abi.SliceTy, abi.ArrayTy:
		list, ok := v.([]any)
		if !ok {
			break
		}
		if t.T == abi.ArrayTy && len(list) != t.Size {
			return reflect.Value{}, fmt.Errorf("expected %d elements, got %d", t.Size, len(list))
		}
		var out reflect.Value
		if t.T == abi.SliceTy {
			out = reflect.MakeSlice(t.GetType(), len(list), len(list))
		} else {
			out = reflect.New(t.GetType()).Elem()
		}
		for i, item := range list {
			elem, err := convertValue(*t.Elem, item)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(elem)
		}
		return out, nil

	case abi.TupleTy:
		return convertTuple(t, v)
	}

	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t.String())
}

// convertTuple accepts a positional list or a map keyed by component name
func convertTuple(t abi.Type, v any) (reflect.Value, error) {
	out := reflect.New(t.GetType()).Elem()
	for i, elem := range t.TupleElems {
		var item any
		switch fields := v.(type) {
		case []any:
			if len(fields) != len(t.TupleElems) {
				return reflect.Value{}, fmt.Errorf("expected %d tuple fields, got %d", len(t.TupleElems), len(fields))
			}
			item = fields[i]
		case map[string]any:
			var ok bool
			if item, ok = fields[t.TupleRawNames[i]]; !ok {
				return reflect.Value{}, fmt.Errorf("missing tuple field %s", t.TupleRawNames[i])
			}
		default:
			return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t.String())
		}

		converted, err := convertValue(*elem, item)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("field %s: %w", t.TupleRawNames[i], err)
		}
		out.Field(i).Set(converted)
	}
	return out, nil
}

func toBigInt(v any) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		return new(big.Int).Set(n), nil
	case int:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case int32:
		return big.NewInt(int64(n)), nil
	case uint:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), nil
	case float64:
		f := big.NewFloat(n)
		if !f.IsInt() {
			return nil, fmt.Errorf("%v is not an integer", n)
		}
		// beyond 2^53 a float64 no longer holds every integer exactly
		if math.Abs(n) > maxExactFloat {
			return nil, fmt.Errorf("%v is too large to be exact, write it as a string", n)
		}
		i, _ := f.Int(nil)
		return i, nil
	case json.Number:
		return toBigInt(n.String())
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), "_", "")
		i, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", n)
		}
		return i, nil
	}
	return nil, fmt.Errorf("cannot use %T as an integer", v)
}

// fitInteger range-checks n and converts it to the Go type go-ethereum
// expects for t (uint8, int64, *big.Int, ...)
func fitInteger(t abi.Type, n *big.Int) (reflect.Value, error) {
	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return reflect.Value{}, fmt.Errorf("%s out of range for %s", n, t.String())
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
			return reflect.Value{}, fmt.Errorf("%s out of range for %s", n, t.String())
		}
	}

	goType := t.GetType()
	if goType == bigIntType {
		return reflect.ValueOf(n), nil
	}
	if t.T == abi.UintTy {
		return reflect.ValueOf(n.Uint64()).Convert(goType), nil
	}
	return reflect.ValueOf(n.Int64()).Convert(goType), nil
}

func toBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		if !strings.HasPrefix(b, "0x") && !strings.HasPrefix(b, "0X") {
			return nil, fmt.Errorf("bytes literal %q must be 0x-prefixed hex", b)
		}
		decoded, err := decodeHex(b[2:])
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q: %w", b, err)
		}
		return decoded, nil
	}
	return nil, fmt.Errorf("cannot use %T as bytes", v)
}

func decodeHex(s string) ([]byte, error) {
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

var _ usecase.ArgsEncoder = (*Encoder)(nil)
