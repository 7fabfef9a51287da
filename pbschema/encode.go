// SPDX-License-Identifier: GPL-3.0-or-later

package pbschema

import (
	"fmt"

	"github.com/bassosimone/conduit"
)

// wire types, per the protobuf wire format.
const (
	wireVarint   = 0
	wireLenDelim = 2
)

func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func appendKey(buf []byte, tag int, wireType int) []byte {
	return appendVarint(buf, uint64(tag)<<3|uint64(wireType))
}

func appendLenDelim(buf []byte, tag int, payload []byte) []byte {
	buf = appendKey(buf, tag, wireLenDelim)
	buf = appendVarint(buf, uint64(len(payload)))
	return append(buf, payload...)
}

// Encode encodes v against f, producing the wire bytes a conforming
// protobuf reader would decode back to v's scalar/struct shape.
//
// For String and every date/time/numeric/geography/bignumeric field, v
// must be a string; it is encoded length-delimited as raw UTF-8 bytes.
// For Int64, v must be an int64, int, int32, uint or uint64; for
// Bool, v must be a bool. For Struct, v must be a map[string]any: each
// present sub-field named in f.Sub is encoded and emitted as one nested
// length-delimited entry; fields present in v but absent from the schema
// are dropped. [EncodeStruct] reports a warning for each dropped field,
// but Encode discards those warnings and does not return or log them.
// JSON and Interval fields are recognized in
// the descriptor but are never encoded: Encode on one returns a
// [*conduit.UnsupportedFieldError].
//
// The only other error this function returns is a
// [*conduit.TypeMismatchError] reporting that v's semantic kind does not
// match f.Type.
func Encode(f *Field, v any) ([]byte, error) {
	switch f.Type {
	case Int64:
		n, ok := asInt64(v)
		if !ok {
			return nil, mismatch(f.Name, "int64", v)
		}
		buf := appendKey(nil, f.Tag, wireVarint)
		return appendVarint(buf, uint64(n)), nil

	case Bool:
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch(f.Name, "bool", v)
		}
		buf := appendKey(nil, f.Tag, wireVarint)
		n := uint64(0)
		if b {
			n = 1
		}
		return appendVarint(buf, n), nil

	case String, Date, Time, Numeric, Geography, BigNumeric:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch(f.Name, f.Type.String(), v)
		}
		return appendLenDelim(nil, f.Tag, []byte(s)), nil

	case Struct:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, mismatch(f.Name, "struct", v)
		}
		sub, warnings := EncodeStruct(f.Sub, m)
		_ = warnings // discarded; only EncodeStruct's direct callers see them
		return appendLenDelim(nil, f.Tag, sub), nil

	case JSON, Interval:
		return nil, &conduit.UnsupportedFieldError{Field: f.Name, Type: f.Type.String()}

	default:
		return nil, &conduit.UnsupportedFieldError{Field: f.Name, Type: f.Type.String()}
	}
}

// EncodeStruct encodes every field of d present in m, in descriptor order,
// skipping sub-fields present in m but absent from d (with a warning) and
// fields d declares that m does not supply (silently, since a partially
// populated struct is valid). It never returns an error: unsupported or
// mismatched sub-fields are dropped with a warning rather than failing the
// whole struct, matching the "extras ignored with a warning" rule.
func EncodeStruct(d *Descriptor, m map[string]any) ([]byte, []string) {
	var out []byte
	var warnings []string
	for _, f := range d.Fields {
		v, ok := m[f.Name]
		if !ok {
			continue
		}
		b, err := Encode(&f, v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("field %q: %v", f.Name, err))
			continue
		}
		out = append(out, b...)
	}
	for name := range m {
		if _, ok := d.byName[name]; !ok {
			warnings = append(warnings, fmt.Sprintf("field %q: not present in schema, dropped", name))
		}
	}
	return out, warnings
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case uint:
		return int64(n), true
	}
	return 0, false
}

func mismatch(field, expected string, v any) error {
	return &conduit.TypeMismatchError{Field: field, Expected: expected, Actual: fmt.Sprintf("%T", v)}
}
