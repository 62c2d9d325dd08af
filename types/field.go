package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedField is returned when a wire value does not carry exactly one
// variant (or the null marker).
var ErrMalformedField = errors.New("malformed field")

// FieldKind identifies which variant of a Field is populated.
type FieldKind int

const (
	FieldNull FieldKind = iota
	FieldString
	FieldBlob
	FieldBoolean
	FieldDouble
	FieldLong
)

func (k FieldKind) String() string {
	switch k {
	case FieldNull:
		return "isNull"
	case FieldString:
		return "stringValue"
	case FieldBlob:
		return "blobValue"
	case FieldBoolean:
		return "booleanValue"
	case FieldDouble:
		return "doubleValue"
	case FieldLong:
		return "longValue"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// Field is the tagged value exchanged with the Data API. Exactly one variant
// is set; the zero Field is null. Build it with the constructors below.
type Field struct {
	kind FieldKind
	str  string
	blob []byte
	b    bool
	dbl  float64
	long int64
}

func NullField() Field {
	return Field{kind: FieldNull}
}

func StringField(v string) Field {
	return Field{kind: FieldString, str: v}
}

func BlobField(v []byte) Field {
	return Field{kind: FieldBlob, blob: v}
}

func BooleanField(v bool) Field {
	return Field{kind: FieldBoolean, b: v}
}

func DoubleField(v float64) Field {
	return Field{kind: FieldDouble, dbl: v}
}

func LongField(v int64) Field {
	return Field{kind: FieldLong, long: v}
}

func (f Field) Kind() FieldKind {
	return f.kind
}

func (f Field) IsNull() bool {
	return f.kind == FieldNull
}

// Value returns the populated variant as a native Go value: nil, string,
// []byte, bool, float64 or int64.
func (f Field) Value() any {
	switch f.kind {
	case FieldString:
		return f.str
	case FieldBlob:
		return f.blob
	case FieldBoolean:
		return f.b
	case FieldDouble:
		return f.dbl
	case FieldLong:
		return f.long
	default:
		return nil
	}
}

func (f Field) String() string {
	if f.kind == FieldNull {
		return "NULL"
	}
	return fmt.Sprintf("%s(%v)", f.kind, f.Value())
}

func (f Field) MarshalJSON() ([]byte, error) {
	switch f.kind {
	case FieldNull:
		return json.Marshal(struct {
			IsNull bool `json:"isNull"`
		}{true})
	case FieldString:
		return json.Marshal(struct {
			V string `json:"stringValue"`
		}{f.str})
	case FieldBlob:
		blob := f.blob
		if blob == nil {
			blob = []byte{}
		}
		return json.Marshal(struct {
			V []byte `json:"blobValue"`
		}{blob})
	case FieldBoolean:
		return json.Marshal(struct {
			V bool `json:"booleanValue"`
		}{f.b})
	case FieldDouble:
		return json.Marshal(struct {
			V float64 `json:"doubleValue"`
		}{f.dbl})
	case FieldLong:
		return json.Marshal(struct {
			V int64 `json:"longValue"`
		}{f.long})
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformedField, int(f.kind))
	}
}

func (f *Field) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedField, err)
	}

	// isNull wins regardless of whatever else the payload carries.
	if v, ok := raw["isNull"]; ok {
		var isNull bool
		if err := json.Unmarshal(v, &isNull); err != nil {
			return fmt.Errorf("%w: isNull: %v", ErrMalformedField, err)
		}
		if isNull {
			*f = NullField()
			return nil
		}
		delete(raw, "isNull")
	}

	if len(raw) != 1 {
		return fmt.Errorf("%w: expected exactly one variant, got %d", ErrMalformedField, len(raw))
	}

	for key, v := range raw {
		var err error
		switch key {
		case "stringValue":
			var s string
			err = json.Unmarshal(v, &s)
			*f = StringField(s)
		case "blobValue":
			var b []byte
			err = json.Unmarshal(v, &b)
			*f = BlobField(b)
		case "booleanValue":
			var b bool
			err = json.Unmarshal(v, &b)
			*f = BooleanField(b)
		case "doubleValue":
			var d float64
			err = json.Unmarshal(v, &d)
			*f = DoubleField(d)
		case "longValue":
			var l int64
			err = json.Unmarshal(v, &l)
			*f = LongField(l)
		default:
			return fmt.Errorf("%w: unsupported variant %q", ErrMalformedField, key)
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedField, key, err)
		}
	}
	return nil
}
