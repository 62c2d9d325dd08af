// Package codec converts native Go values to and from the Data API's tagged
// field representation.
//
// The mapping is a closed table. Encoding accepts string, []byte, bool, the
// float kinds, the integer kinds and nil; decoding yields string, []byte,
// bool, float64, int64 or nil. Nothing is coerced across kinds, so an int64
// never comes back as a float64 and vice versa. Supporting another native type
// means extending both Encode and Decode.
package codec

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/tomyedwab/rdsdataapi/types"
)

// ErrUnsupportedType is returned by Encode for values outside the closed
// mapping table.
var ErrUnsupportedType = errors.New("unsupported parameter type")

// Encode converts a native value to its tagged field.
func Encode(v any) (types.Field, error) {
	switch val := v.(type) {
	case nil:
		return types.NullField(), nil
	case string:
		return types.StringField(val), nil
	case []byte:
		return types.BlobField(val), nil
	case bool:
		return types.BooleanField(val), nil
	case float64:
		return types.DoubleField(val), nil
	case float32:
		return types.DoubleField(float64(val)), nil
	case int:
		return types.LongField(int64(val)), nil
	case int8:
		return types.LongField(int64(val)), nil
	case int16:
		return types.LongField(int64(val)), nil
	case int32:
		return types.LongField(int64(val)), nil
	case int64:
		return types.LongField(val), nil
	case uint:
		return encodeUnsigned(uint64(val))
	case uint8:
		return types.LongField(int64(val)), nil
	case uint16:
		return types.LongField(int64(val)), nil
	case uint32:
		return types.LongField(int64(val)), nil
	case uint64:
		return encodeUnsigned(val)
	default:
		return types.Field{}, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

func encodeUnsigned(v uint64) (types.Field, error) {
	if v > math.MaxInt64 {
		return types.Field{}, fmt.Errorf("%w: uint64 value %d overflows a long", ErrUnsupportedType, v)
	}
	return types.LongField(int64(v)), nil
}

// Decode converts a tagged field to its native value. Null yields nil.
func Decode(f types.Field) any {
	return f.Value()
}

// EncodeParams encodes a named parameter map. Parameters are ordered by name
// so identical maps always produce identical requests.
func EncodeParams(params map[string]any) ([]types.SqlParameter, error) {
	if len(params) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]types.SqlParameter, 0, len(params))
	for _, name := range names {
		field, err := Encode(params[name])
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		out = append(out, types.SqlParameter{Name: name, Value: field})
	}
	return out, nil
}

// DecodeRow decodes every column of a record.
func DecodeRow(record []types.Field) []any {
	row := make([]any, len(record))
	for i, f := range record {
		row[i] = Decode(f)
	}
	return row
}
